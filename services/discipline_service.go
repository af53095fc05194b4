package services

import (
	"sort"

	"smartbull_go/database"
	"smartbull_go/models"
)

// ResolveSanction picks the sanction with the highest threshold still covered
// by the absence count. Nil when no threshold is reached.
func ResolveSanction(sanctions []models.Sanction, absenceHours uint) *models.Sanction {
	sorted := make([]models.Sanction, len(sanctions))
	copy(sorted, sanctions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinAbsenceHours > sorted[j].MinAbsenceHours
	})

	for i := range sorted {
		if absenceHours >= sorted[i].MinAbsenceHours {
			return &sorted[i]
		}
	}
	return nil
}

// DisciplineService records absences and lateness and assigns sanctions from
// the configured thresholds.
type DisciplineService struct{}

func NewDisciplineService() *DisciplineService {
	return &DisciplineService{}
}

// RecordDiscipline upserts the student's discipline row for the term and
// re-resolves the sanction from the new absence total. Passing sequenceID
// scopes the record to one sequence within the term.
func (s *DisciplineService) RecordDiscipline(studentID, termID uint, sequenceID *uint, absences, lates uint) (*models.Discipline, error) {
	var sanctions []models.Sanction
	if err := database.DB.Find(&sanctions).Error; err != nil {
		return nil, err
	}

	record := models.Discipline{StudentID: studentID, TermID: termID, SequenceID: sequenceID}
	query := database.DB.Where("student_id = ? AND term_id = ?", studentID, termID)
	if sequenceID != nil {
		query = query.Where("sequence_id = ?", *sequenceID)
	} else {
		query = query.Where("sequence_id IS NULL")
	}
	if err := query.FirstOrCreate(&record).Error; err != nil {
		return nil, err
	}

	record.Absences = absences
	record.Lates = lates
	record.SanctionID = nil
	if sanction := ResolveSanction(sanctions, absences); sanction != nil {
		record.SanctionID = &sanction.ID
	}

	if err := database.DB.Save(&record).Error; err != nil {
		return nil, err
	}
	if err := database.DB.Preload("Sanction").Preload("Student").First(&record, record.ID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}
