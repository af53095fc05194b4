package services

import (
	"sort"

	"smartbull_go/database"
	"smartbull_go/models"
)

// RankedStudent is one entry of a ranked list. Students without an average
// never appear in a ranked list at all.
type RankedStudent struct {
	StudentID uint    `json:"student_id"`
	Student   string  `json:"student"`
	Average   float64 `json:"average"`
	Rank      uint    `json:"rank"`
}

// AssignRanks sorts entries by average descending and assigns standard
// competition ("1224") ranks: tied averages share a rank, and the next
// distinct average gets 1 + the number of students strictly above it.
// [18, 15, 15, 10] ranks as [1, 2, 2, 4].
func AssignRanks(entries []RankedStudent) []RankedStudent {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Average > entries[j].Average
	})

	currentRank := uint(1)
	for i := range entries {
		if i > 0 && entries[i].Average < entries[i-1].Average {
			currentRank = uint(i + 1)
		}
		entries[i].Rank = currentRank
	}
	return entries
}

// RankService derives ordinal class rankings from computed averages.
type RankService struct {
	averages *AverageService
}

func NewRankService() *RankService {
	return &RankService{averages: NewAverageService()}
}

// RankClassSequence ranks every enrolled student of the classroom by their
// sequence average. Students with no validated grade have no average and are
// omitted: a class of 3 with one missing average produces 2 entries.
func (s *RankService) RankClassSequence(classroomID, sequenceID uint) ([]RankedStudent, error) {
	var students []models.Student
	err := database.DB.
		Where("classroom_id = ?", classroomID).
		Order("last_name, first_name").
		Find(&students).Error
	if err != nil {
		return nil, err
	}

	entries := make([]RankedStudent, 0, len(students))
	for _, st := range students {
		avg, err := s.averages.StudentSequenceAverage(st.ID, sequenceID)
		if err != nil {
			return nil, err
		}
		if avg == nil {
			continue
		}
		entries = append(entries, RankedStudent{
			StudentID: st.ID,
			Student:   st.FullName(),
			Average:   *avg,
		})
	}
	return AssignRanks(entries), nil
}

// RankSubjectSequence ranks the validated grades of a single class subject
// within a sequence, for the per-subject rank column of bulletins.
func (s *RankService) RankSubjectSequence(classSubjectID, sequenceID uint) ([]RankedStudent, error) {
	var grades []models.Grade
	err := database.DB.
		Preload("Student").
		Where("class_subject_id = ? AND sequence_id = ? AND status IN ?",
			classSubjectID, sequenceID, []string{models.GradeStatusValidated, models.GradeStatusLocked}).
		Find(&grades).Error
	if err != nil {
		return nil, err
	}

	entries := make([]RankedStudent, 0, len(grades))
	for _, g := range grades {
		entries = append(entries, RankedStudent{
			StudentID: g.StudentID,
			Student:   g.Student.FullName(),
			Average:   g.Value,
		})
	}
	return AssignRanks(entries), nil
}
