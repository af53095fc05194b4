package services

import (
	"testing"

	"smartbull_go/models"
)

func defaultMentionRules() []models.MentionRule {
	return []models.MentionRule{
		{Label: "Excellent", MinAvg: 18, MaxAvg: 20},
		{Label: "TB", MinAvg: 16, MaxAvg: 17.99},
		{Label: "Bien", MinAvg: 14, MaxAvg: 15.99},
		{Label: "AB", MinAvg: 12, MaxAvg: 13.99},
		{Label: "Passable", MinAvg: 10, MaxAvg: 11.99},
		{Label: "Insuffisant", MinAvg: 0, MaxAvg: 9.99},
	}
}

func TestResolveMention(t *testing.T) {
	tests := []struct {
		name    string
		average float64
		want    string
		wantNil bool
	}{
		{name: "excellent lower bound", average: 18, want: "Excellent"},
		{name: "top of scale", average: 20, want: "Excellent"},
		{name: "tres bien", average: 16.5, want: "TB"},
		{name: "bien", average: 15.5, want: "Bien"},
		{name: "assez bien upper bound", average: 13.99, want: "AB"},
		{name: "passable lower bound", average: 10, want: "Passable"},
		{name: "insuffisant", average: 8.2, want: "Insuffisant"},
		{name: "zero", average: 0, want: "Insuffisant"},
		{name: "gap between bands", average: 17.995, wantNil: true},
		{name: "above scale", average: 21, wantNil: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveMention(defaultMentionRules(), tc.average)
			if tc.wantNil {
				if got != nil {
					t.Fatalf("expected no mention, got %q", *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected %q, got nil", tc.want)
			}
			if *got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, *got)
			}
		})
	}
}

func TestResolveMentionOverlappingBands(t *testing.T) {
	// Overlapping bands resolve to the one with the lowest min, regardless of
	// the order they were stored in.
	rules := []models.MentionRule{
		{Label: "Haut", MinAvg: 12, MaxAvg: 20},
		{Label: "Bas", MinAvg: 10, MaxAvg: 15},
	}
	got := ResolveMention(rules, 13)
	if got == nil || *got != "Bas" {
		t.Fatalf("expected Bas, got %v", got)
	}
}

func TestResolveMentionEmptyRules(t *testing.T) {
	if got := ResolveMention(nil, 12); got != nil {
		t.Fatalf("expected nil with no rules, got %q", *got)
	}
}

func TestAppreciation(t *testing.T) {
	avg := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		average *float64
		want    string
	}{
		{name: "excellent", average: avg(17), want: "Excellent travail, continuez ainsi !"},
		{name: "excellent lower bound", average: avg(16), want: "Excellent travail, continuez ainsi !"},
		{name: "tres bon", average: avg(14.5), want: "Très bon travail, poursuivez vos efforts."},
		{name: "bon", average: avg(12), want: "Bon travail, mais attention aux points faibles."},
		{name: "suffisant", average: avg(10), want: "Travail suffisant, il faut progresser."},
		{name: "insuffisant", average: avg(9.99), want: "Résultats insuffisants, nécessite un accompagnement."},
		{name: "no data", average: nil, want: "Pas de données disponibles"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := Appreciation(tc.average); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
