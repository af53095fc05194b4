package controllers

import (
	"testing"

	"smartbull_go/models"
)

func TestGradeSaveDecision(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		privileged bool
		want       string
	}{
		{name: "teacher rewrites a draft", status: models.GradeStatusDraft, privileged: false, want: saveAsDraft},
		{name: "admin rewrites a draft", status: models.GradeStatusDraft, privileged: true, want: saveAsDraft},
		{name: "teacher cannot touch a validated grade", status: models.GradeStatusValidated, privileged: false, want: saveSkip},
		{name: "admin corrects a validated grade in place", status: models.GradeStatusValidated, privileged: true, want: saveKeepStatus},
		{name: "locked grade skipped for teacher", status: models.GradeStatusLocked, privileged: false, want: saveSkip},
		{name: "locked grade skipped even for admin", status: models.GradeStatusLocked, privileged: true, want: saveSkip},
		{name: "unknown status skipped", status: "archived", privileged: true, want: saveSkip},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := gradeSaveDecision(tc.status, tc.privileged); got != tc.want {
				t.Fatalf("status %s privileged=%v: expected %s, got %s", tc.status, tc.privileged, tc.want, got)
			}
		})
	}
}
