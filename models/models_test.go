package models

import "testing"

func TestCanTransitionGradeStatus(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{name: "draft stays draft", from: GradeStatusDraft, to: GradeStatusDraft, want: true},
		{name: "draft to validated", from: GradeStatusDraft, to: GradeStatusValidated, want: true},
		{name: "draft cannot skip to locked", from: GradeStatusDraft, to: GradeStatusLocked, want: false},
		{name: "validated stays validated", from: GradeStatusValidated, to: GradeStatusValidated, want: true},
		{name: "validated to locked", from: GradeStatusValidated, to: GradeStatusLocked, want: true},
		{name: "validated cannot revert to draft", from: GradeStatusValidated, to: GradeStatusDraft, want: false},
		{name: "locked stays locked", from: GradeStatusLocked, to: GradeStatusLocked, want: true},
		{name: "locked cannot revert to validated", from: GradeStatusLocked, to: GradeStatusValidated, want: false},
		{name: "locked cannot revert to draft", from: GradeStatusLocked, to: GradeStatusDraft, want: false},
		{name: "unknown source status", from: "archived", to: GradeStatusDraft, want: false},
		{name: "unknown target status", from: GradeStatusDraft, to: "published", want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransitionGradeStatus(tc.from, tc.to); got != tc.want {
				t.Fatalf("transition %s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
			}
		})
	}
}

func TestGradeNeverEntered(t *testing.T) {
	updater := uint(7)

	tests := []struct {
		name  string
		grade Grade
		want  bool
	}{
		{name: "provisioned zero with no updater", grade: Grade{Value: 0}, want: true},
		{name: "explicitly entered zero counts as entered", grade: Grade{Value: 0, UpdatedByID: &updater}, want: false},
		{name: "nonzero value counts as entered", grade: Grade{Value: 12.5}, want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.grade.NeverEntered(); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestStudentFullName(t *testing.T) {
	s := Student{LastName: "Ngono", FirstName: "Estelle"}
	if got := s.FullName(); got != "Ngono Estelle" {
		t.Fatalf("expected %q, got %q", "Ngono Estelle", got)
	}
}
