package services

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildImportWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	header := []interface{}{"Matricule", "Nom", "Prénom", "Sexe", "Lieu de naissance"}
	all := append([][]interface{}{header}, rows...)
	for rowIdx, row := range all {
		for colIdx, v := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return &buf
}

func TestParseStudentsWorkbook(t *testing.T) {
	buf := buildImportWorkbook(t, [][]interface{}{
		{"MAT-001", "Ngono", "Estelle", "F", "Yaoundé"},
		{"MAT-002", "Abanda", "Jean", "m", "Douala"},
		{"MAT-003", "Fouda", "", "", ""},
	})

	parsed, rejected, err := ParseStudentsWorkbook(buf)
	if err != nil {
		t.Fatalf("ParseStudentsWorkbook failed: %v", err)
	}
	if len(rejected) != 0 {
		t.Fatalf("expected no rejections, got %v", rejected)
	}
	if len(parsed) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(parsed))
	}

	first := parsed[0]
	if first.Matricule != "MAT-001" || first.LastName != "Ngono" || first.FirstName != "Estelle" {
		t.Fatalf("first row parsed wrong: %+v", first)
	}
	if first.Gender != "F" || first.BirthPlace != "Yaoundé" {
		t.Fatalf("first row optional fields wrong: %+v", first)
	}
	if parsed[1].Gender != "M" {
		t.Fatalf("gender should be uppercased, got %q", parsed[1].Gender)
	}
	if parsed[2].Gender != "" || parsed[2].FirstName != "" {
		t.Fatalf("empty optional fields should stay empty: %+v", parsed[2])
	}
}

func TestParseStudentsWorkbookRejectsBadRows(t *testing.T) {
	buf := buildImportWorkbook(t, [][]interface{}{
		{"", "Ngono", "Estelle", "F", ""},
		{"MAT-002", "", "Jean", "M", ""},
		{"MAT-003", "Fouda", "Paul", "X", ""},
		{"MAT-004", "Mbarga", "Luc", "M", "Bafoussam"},
	})

	parsed, rejected, err := ParseStudentsWorkbook(buf)
	if err != nil {
		t.Fatalf("ParseStudentsWorkbook failed: %v", err)
	}
	if len(parsed) != 1 {
		t.Fatalf("expected exactly 1 valid row, got %d", len(parsed))
	}
	if parsed[0].Matricule != "MAT-004" {
		t.Fatalf("wrong surviving row: %+v", parsed[0])
	}
	if len(rejected) != 3 {
		t.Fatalf("expected 3 rejections, got %v", rejected)
	}
	// Line numbers follow the spreadsheet, header included
	if !strings.Contains(rejected[0], "ligne 2") {
		t.Fatalf("expected rejection on ligne 2, got %q", rejected[0])
	}
	if !strings.Contains(rejected[2], "sexe invalide") {
		t.Fatalf("expected gender rejection, got %q", rejected[2])
	}
}

func TestParseStudentsWorkbookInvalidFile(t *testing.T) {
	_, _, err := ParseStudentsWorkbook(strings.NewReader("not a workbook"))
	if err == nil {
		t.Fatal("expected an error for a non-xlsx payload")
	}
}

func TestWorkbookFileName(t *testing.T) {
	got := WorkbookFileName("6ème A", "S1")
	if got != "resultats_6ème_A_S1.xlsx" {
		t.Fatalf("unexpected file name %q", got)
	}
	if strings.ContainsAny(got, "/\\") {
		t.Fatalf("file name contains path separators: %q", got)
	}
}
