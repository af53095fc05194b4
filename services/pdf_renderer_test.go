package services

import (
	"bytes"
	"testing"
)

func sampleBulletinData() BulletinData {
	avg := 14.25
	rank := uint(2)
	return BulletinData{
		Title:         "Bulletin de notes - Séquence 1",
		StudentName:   "Ngono Estelle",
		Matricule:     "MAT-0042",
		ClassroomName: "6ème A",
		PeriodName:    "S1",
		Rows: []BulletinRow{
			{Subject: "Mathématiques", Note: 15, Coefficient: 4, WeightedNote: 60, CoefSum: 7, SubjectRank: 1},
			{Subject: "Français", Note: 13, Coefficient: 3, WeightedNote: 39, CoefSum: 7, SubjectRank: 3},
		},
		Summaries: []SequenceSummary{
			{Sequence: "S1", Average: &avg, Rank: &rank},
		},
		Average:      14.14,
		Rank:         2,
		RosterSize:   35,
		Mention:      "Bien",
		Appreciation: "Très bon travail, poursuivez vos efforts.",
		HeaderText:   "République du Cameroun\nPaix - Travail - Patrie",
		FooterText:   "Le Chef d'établissement",
	}
}

func TestRenderBulletin(t *testing.T) {
	renderer := NewPDFRenderer()

	out, err := renderer.RenderBulletin(sampleBulletinData())
	if err != nil {
		t.Fatalf("RenderBulletin failed: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("RenderBulletin returned no bytes")
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output is not a PDF, starts with %q", out[:min(8, len(out))])
	}
}

func TestRenderBulletinWithoutOptionalBlocks(t *testing.T) {
	renderer := NewPDFRenderer()

	data := sampleBulletinData()
	data.Rows = nil
	data.Summaries = nil
	data.Mention = ""
	data.FooterText = ""
	data.HeaderText = ""

	out, err := renderer.RenderBulletin(data)
	if err != nil {
		t.Fatalf("RenderBulletin failed on minimal data: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatal("minimal bulletin output is not a PDF")
	}
}

func TestRenderGradeSheet(t *testing.T) {
	renderer := NewPDFRenderer()

	rows := []GradeSheetRow{
		{Student: "Abanda Jean", Value: 12.5, Coefficient: 4, Status: "validated"},
		{Student: "Biya Marie", Value: 16, Coefficient: 4, Status: "draft"},
	}
	out, err := renderer.RenderGradeSheet("Fiche de notes - Mathématiques", "6ème A - S1", rows)
	if err != nil {
		t.Fatalf("RenderGradeSheet failed: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatal("grade sheet output is not a PDF")
	}
}

func TestFmtAvg(t *testing.T) {
	if got := fmtAvg(nil); got != "Données insuffisantes" {
		t.Fatalf("expected placeholder for nil average, got %q", got)
	}
	v := 12.5
	if got := fmtAvg(&v); got != "12.50" {
		t.Fatalf("expected 12.50, got %q", got)
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: nil},
		{name: "single line", input: "abc", want: []string{"abc"}},
		{name: "two lines", input: "a\nb", want: []string{"a", "b"}},
		{name: "trailing newline keeps empty line", input: "a\n", want: []string{"a", ""}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := splitLines(tc.input)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d lines, got %d (%q)", len(tc.want), len(got), got)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Fatalf("line %d: expected %q, got %q", i, tc.want[i], got[i])
				}
			}
		})
	}
}
