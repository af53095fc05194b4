package services

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"smartbull_go/database"
	"smartbull_go/models"
	"smartbull_go/utils"
)

// ExportService produces the spreadsheet and archive downloads: the class
// results workbook and the ZIP bundle of bulletin PDFs.
type ExportService struct {
	ranks *RankService
}

func NewExportService() *ExportService {
	return &ExportService{ranks: NewRankService()}
}

// ClassResultsWorkbook builds the per-class results sheet for one sequence:
// one row per student, one note and weighted-note column pair per subject,
// then sum, total coefficient, average and rank.
func (s *ExportService) ClassResultsWorkbook(classroomID, sequenceID uint) (*excelize.File, error) {
	var classroom models.Classroom
	if err := database.DB.Preload("ClassSubjects.Subject").First(&classroom, classroomID).Error; err != nil {
		return nil, fmt.Errorf("classroom not found: %v", err)
	}
	var sequence models.Sequence
	if err := database.DB.Preload("Term").First(&sequence, sequenceID).Error; err != nil {
		return nil, fmt.Errorf("sequence not found: %v", err)
	}

	var students []models.Student
	if err := database.DB.Where("classroom_id = ?", classroomID).
		Order("last_name, first_name").Find(&students).Error; err != nil {
		return nil, err
	}

	var grades []models.Grade
	err := database.DB.
		Joins("JOIN class_subjects ON class_subjects.id = grades.class_subject_id").
		Where("class_subjects.classroom_id = ? AND grades.sequence_id = ? AND grades.status IN ?",
			classroomID, sequenceID, []string{models.GradeStatusValidated, models.GradeStatusLocked}).
		Find(&grades).Error
	if err != nil {
		return nil, err
	}
	gradeByKey := make(map[gradeKey]models.Grade, len(grades))
	for _, g := range grades {
		gradeByKey[gradeKey{g.StudentID, g.ClassSubjectID}] = g
	}

	ranked, err := s.ranks.RankClassSequence(classroomID, sequenceID)
	if err != nil {
		return nil, err
	}
	rankByStudent := make(map[uint]uint, len(ranked))
	avgByStudent := make(map[uint]float64, len(ranked))
	for _, r := range ranked {
		rankByStudent[r.StudentID] = r.Rank
		avgByStudent[r.StudentID] = r.Average
	}

	f := excelize.NewFile()
	sheet := "Résultats"
	f.SetSheetName(f.GetSheetName(0), sheet)

	title := fmt.Sprintf("%s - %s (%s)", classroom.Name, sequence.Name, sequence.Term.Name)
	f.SetCellValue(sheet, "A1", title)
	lastCol, _ := excelize.ColumnNumberToName(2 + 2*len(classroom.ClassSubjects) + 4)
	f.MergeCell(sheet, "A1", lastCol+"1")

	headers := []string{"Matricule", "Nom"}
	for _, cs := range classroom.ClassSubjects {
		headers = append(headers, cs.Subject.Name, fmt.Sprintf("%s x%.1f", cs.Subject.Code, cs.Coefficient))
	}
	headers = append(headers, "Somme", "Total coef", "Moyenne", "Rang")
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(sheet, cell, h)
	}

	for rowIdx, st := range students {
		row := rowIdx + 3
		col := 1
		setCell := func(v interface{}) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			f.SetCellValue(sheet, cell, v)
			col++
		}

		setCell(st.Matricule)
		setCell(st.FullName())

		var sum, coefTotal float64
		for _, cs := range classroom.ClassSubjects {
			if g, ok := gradeByKey[gradeKey{st.ID, cs.ID}]; ok {
				weighted := utils.Round2(g.Value * cs.Coefficient)
				setCell(g.Value)
				setCell(weighted)
				sum += weighted
				coefTotal += cs.Coefficient
			} else {
				setCell("")
				setCell("")
			}
		}
		setCell(utils.Round2(sum))
		setCell(coefTotal)
		if avg, ok := avgByStudent[st.ID]; ok {
			setCell(avg)
			setCell(rankByStudent[st.ID])
		} else {
			setCell("")
			setCell("")
		}
	}

	return f, nil
}

// BulletinZip bundles the generated bulletin PDFs of a classroom period into
// a single ZIP archive.
func (s *ExportService) BulletinZip(classroomID, sequenceID uint, kind string) ([]byte, error) {
	var bulletins []models.Bulletin
	err := database.DB.Preload("Student").
		Where("classroom_id = ? AND sequence_id = ? AND kind = ?", classroomID, sequenceID, kind).
		Find(&bulletins).Error
	if err != nil {
		return nil, err
	}
	if len(bulletins) == 0 {
		return nil, fmt.Errorf("no generated bulletins for classroom %d", classroomID)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, b := range bulletins {
		if b.PDFPath == "" {
			continue
		}
		src, err := os.Open(b.PDFPath)
		if err != nil {
			return nil, fmt.Errorf("bulletin PDF missing for %s: %v", b.Student.Matricule, err)
		}
		name := utils.SanitizeFilename(b.Student.FullName()) + "_" + b.Student.Matricule + ".pdf"
		w, err := zw.Create(name)
		if err != nil {
			src.Close()
			return nil, err
		}
		if _, err := io.Copy(w, src); err != nil {
			src.Close()
			return nil, err
		}
		src.Close()
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StudentImportRow is one parsed line of a student import workbook.
type StudentImportRow struct {
	Matricule  string
	LastName   string
	FirstName  string
	Gender     string
	BirthPlace string
}

// ParseStudentsWorkbook reads the first sheet of an uploaded workbook with
// columns Matricule, Nom, Prénom, Sexe, Lieu de naissance. The header row is
// skipped; rows without a matricule or name are reported, not imported.
func ParseStudentsWorkbook(r io.Reader) ([]StudentImportRow, []string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid workbook: %v", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, err
	}

	var parsed []StudentImportRow
	var rejected []string
	for i, row := range rows {
		if i == 0 {
			continue
		}
		get := func(idx int) string {
			if idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}
		entry := StudentImportRow{
			Matricule:  get(0),
			LastName:   get(1),
			FirstName:  get(2),
			Gender:     strings.ToUpper(get(3)),
			BirthPlace: get(4),
		}
		if entry.Matricule == "" || entry.LastName == "" {
			rejected = append(rejected, fmt.Sprintf("ligne %d: matricule ou nom manquant", i+1))
			continue
		}
		if entry.Gender != "" && entry.Gender != "M" && entry.Gender != "F" {
			rejected = append(rejected, fmt.Sprintf("ligne %d: sexe invalide %q", i+1, entry.Gender))
			continue
		}
		parsed = append(parsed, entry)
	}
	return parsed, rejected, nil
}

// WorkbookFileName builds the download name for a class results export.
func WorkbookFileName(classroomName, sequenceName string) string {
	return utils.SanitizeFilename(fmt.Sprintf("resultats_%s_%s", classroomName, sequenceName)) + ".xlsx"
}
