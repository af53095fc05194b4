package services

import (
	"smartbull_go/database"
	"smartbull_go/models"
	"smartbull_go/utils"
)

// WeightedEntry is one (value, weight) contribution to a weighted mean.
type WeightedEntry struct {
	Value  float64
	Weight float64
}

// WeightedAverage computes sum(value*weight)/sum(weight) rounded to two
// decimals. Returns nil when there is nothing to average or the total weight
// is zero — never a division by zero, never a silent zero.
func WeightedAverage(entries []WeightedEntry) *float64 {
	var total, totalWeight float64
	for _, e := range entries {
		total += e.Value * e.Weight
		totalWeight += e.Weight
	}
	if totalWeight == 0 {
		return nil
	}
	avg := utils.Round2(total / totalWeight)
	return &avg
}

// AverageService computes student averages at sequence, term and year level.
// The cascade is: sequence averages are weighted by subject coefficients,
// term averages weight sequence averages by sequence.Weight, year averages
// weight term averages by term.Weight. A level with no data yields nil and
// is skipped entirely by the level above.
type AverageService struct{}

func NewAverageService() *AverageService {
	return &AverageService{}
}

// StudentSequenceAverage computes the average over the student's validated
// grades for one sequence. Locked grades count as well: locking happens
// after validation and must not change the result of a regeneration.
func (s *AverageService) StudentSequenceAverage(studentID, sequenceID uint) (*float64, error) {
	var grades []models.Grade
	err := database.DB.
		Preload("ClassSubject").
		Where("student_id = ? AND sequence_id = ? AND status IN ?",
			studentID, sequenceID, []string{models.GradeStatusValidated, models.GradeStatusLocked}).
		Find(&grades).Error
	if err != nil {
		return nil, err
	}

	entries := make([]WeightedEntry, 0, len(grades))
	for _, g := range grades {
		entries = append(entries, WeightedEntry{Value: g.Value, Weight: g.ClassSubject.Coefficient})
	}
	return WeightedAverage(entries), nil
}

// StudentTermAverage is the weighted mean of the student's sequence averages
// over the term, weighted by sequence weight. Sequences without an average
// are excluded from numerator and denominator alike.
func (s *AverageService) StudentTermAverage(studentID, termID uint) (*float64, error) {
	var sequences []models.Sequence
	if err := database.DB.Where("term_id = ?", termID).Order("`order`").Find(&sequences).Error; err != nil {
		return nil, err
	}

	var entries []WeightedEntry
	for _, seq := range sequences {
		avg, err := s.StudentSequenceAverage(studentID, seq.ID)
		if err != nil {
			return nil, err
		}
		if avg == nil {
			continue
		}
		entries = append(entries, WeightedEntry{Value: *avg, Weight: seq.Weight})
	}
	return WeightedAverage(entries), nil
}

// StudentYearAverage applies the same skip-null weighting over the year's
// terms, weighted by term weight.
func (s *AverageService) StudentYearAverage(studentID, schoolYearID uint) (*float64, error) {
	var terms []models.Term
	if err := database.DB.Where("school_year_id = ?", schoolYearID).Order("`order`").Find(&terms).Error; err != nil {
		return nil, err
	}

	var entries []WeightedEntry
	for _, term := range terms {
		avg, err := s.StudentTermAverage(studentID, term.ID)
		if err != nil {
			return nil, err
		}
		if avg == nil {
			continue
		}
		entries = append(entries, WeightedEntry{Value: *avg, Weight: term.Weight})
	}
	return WeightedAverage(entries), nil
}
