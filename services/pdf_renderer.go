package services

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// BulletinRow is one subject line of a rendered bulletin.
type BulletinRow struct {
	Subject      string  `json:"subject"`
	Note         float64 `json:"note"`
	Coefficient  float64 `json:"coefficient"`
	WeightedNote float64 `json:"weighted_note"`
	CoefSum      float64 `json:"coef_sum"`
	SubjectRank  uint    `json:"subject_rank"`
}

// SequenceSummary is one line of a term or year bulletin, recalling the
// already-generated sequence bulletins the aggregate is built from.
type SequenceSummary struct {
	Sequence string   `json:"sequence"`
	Average  *float64 `json:"average"`
	Rank     *uint    `json:"rank"`
}

// BulletinData is the flat structure handed to the renderer: everything a
// bulletin page shows, no model types.
type BulletinData struct {
	Title         string
	StudentName   string
	Matricule     string
	ClassroomName string
	PeriodName    string
	Rows          []BulletinRow
	Summaries     []SequenceSummary
	Average       float64
	Rank          uint
	RosterSize    int
	Mention       string
	Appreciation  string
	HeaderText    string
	FooterText    string
}

// GradeSheetRow is one line of a per-class-subject grade sheet.
type GradeSheetRow struct {
	Student     string
	Value       float64
	Coefficient float64
	Status      string
}

// PDFRenderer renders bulletins and grade sheets as A4 PDFs.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

func fmtAvg(avg *float64) string {
	if avg == nil {
		return "Données insuffisantes"
	}
	return fmt.Sprintf("%.2f", *avg)
}

func fmtRank(rank *uint) string {
	if rank == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *rank)
}

// RenderBulletin renders one bulletin page. Sequence bulletins carry Rows,
// term and year bulletins carry Summaries; both print the same header,
// average/rank block and appreciation.
func (r *PDFRenderer) RenderBulletin(data BulletinData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	// Header block from the active template
	pdf.SetFont("Helvetica", "B", 11)
	for _, line := range splitLines(data.HeaderText) {
		pdf.CellFormat(0, 6, tr(line), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(data.Title), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, tr(fmt.Sprintf("Élève : %s (%s)", data.StudentName, data.Matricule)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, tr(fmt.Sprintf("Classe : %s  |  Période : %s", data.ClassroomName, data.PeriodName)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, tr(fmt.Sprintf("Moyenne : %.2f  |  Rang : %d / %d", data.Average, data.Rank, data.RosterSize)), "", 1, "L", false, 0, "")
	if data.Mention != "" {
		pdf.CellFormat(0, 7, tr("Mention : "+data.Mention), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	if len(data.Rows) > 0 {
		r.renderSubjectTable(pdf, tr, data.Rows)
	}
	if len(data.Summaries) > 0 {
		r.renderSummaryTable(pdf, tr, data.Summaries)
	}

	pdf.Ln(5)
	pdf.SetFont("Helvetica", "I", 11)
	pdf.MultiCell(0, 6, tr("Appréciation : "+data.Appreciation), "", "L", false)

	// Footer block from the active template
	if data.FooterText != "" {
		pdf.SetY(-30)
		pdf.SetFont("Helvetica", "I", 9)
		for _, line := range splitLines(data.FooterText) {
			pdf.CellFormat(0, 5, tr(line), "", 1, "C", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render bulletin PDF: %v", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) renderSubjectTable(pdf *gofpdf.Fpdf, tr func(string) string, rows []BulletinRow) {
	headers := []struct {
		label string
		width float64
	}{
		{"Matière", 60},
		{"Note", 20},
		{"Coef", 20},
		{"Note x Coef", 30},
		{"Rang matière", 30},
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, h := range headers {
		pdf.CellFormat(h.width, 8, tr(h.label), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		pdf.CellFormat(60, 7, tr(row.Subject), "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%.2f", row.Note), "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%.1f", row.Coefficient), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", row.WeightedNote), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", row.SubjectRank), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
}

func (r *PDFRenderer) renderSummaryTable(pdf *gofpdf.Fpdf, tr func(string) string, summaries []SequenceSummary) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(80, 8, tr("Séquence"), "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 8, tr("Moyenne"), "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 8, tr("Rang"), "1", 0, "C", true, 0, "")
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, s := range summaries {
		pdf.CellFormat(80, 7, tr(s.Sequence), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, tr(fmtAvg(s.Average)), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 7, fmtRank(s.Rank), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
}

// RenderGradeSheet renders the per-class-subject grade list teachers print
// before validation.
func (r *PDFRenderer) RenderGradeSheet(title, subtitle string, rows []GradeSheetRow) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, tr(subtitle), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(80, 8, tr("Élève"), "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 8, tr("Note"), "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 8, tr("Coef"), "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 8, tr("Statut"), "1", 0, "C", true, 0, "")
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		pdf.CellFormat(80, 7, tr(row.Student), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%.2f", row.Value), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%.1f", row.Coefficient), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 7, tr(row.Status), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render grade sheet PDF: %v", err)
	}
	return buf.Bytes(), nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}
