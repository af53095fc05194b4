package services

import (
	"testing"

	"smartbull_go/models"
)

func TestResolveSanction(t *testing.T) {
	sanctions := []models.Sanction{
		{Text: "Avertissement de conduite", MinAbsenceHours: 10},
		{Text: "Blâme", MinAbsenceHours: 20},
		{Text: "Exclusion temporaire de 3 jours", MinAbsenceHours: 30},
		{Text: "Conseil de discipline", MinAbsenceHours: 40},
	}

	tests := []struct {
		name         string
		absenceHours uint
		want         string
		wantNil      bool
	}{
		{name: "below every threshold", absenceHours: 9, wantNil: true},
		{name: "zero absences", absenceHours: 0, wantNil: true},
		{name: "exactly first threshold", absenceHours: 10, want: "Avertissement de conduite"},
		{name: "between thresholds", absenceHours: 25, want: "Blâme"},
		{name: "exactly top threshold", absenceHours: 40, want: "Conseil de discipline"},
		{name: "far past top threshold", absenceHours: 120, want: "Conseil de discipline"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveSanction(sanctions, tc.absenceHours)
			if tc.wantNil {
				if got != nil {
					t.Fatalf("expected no sanction, got %q", got.Text)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected %q, got nil", tc.want)
			}
			if got.Text != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got.Text)
			}
		})
	}
}

func TestResolveSanctionEmptyList(t *testing.T) {
	if got := ResolveSanction(nil, 50); got != nil {
		t.Fatalf("expected nil with no configured sanctions, got %q", got.Text)
	}
}

func TestResolveSanctionDoesNotMutateInput(t *testing.T) {
	sanctions := []models.Sanction{
		{Text: "B", MinAbsenceHours: 20},
		{Text: "A", MinAbsenceHours: 10},
	}
	ResolveSanction(sanctions, 15)
	if sanctions[0].Text != "B" || sanctions[1].Text != "A" {
		t.Fatalf("input slice was reordered: %q, %q", sanctions[0].Text, sanctions[1].Text)
	}
}
