package services

import (
	"sort"

	"smartbull_go/database"
	"smartbull_go/models"
)

// MentionService maps numeric averages to the qualitative labels configured
// per school year (TB, Bien, AB, Passable, ...).
type MentionService struct{}

func NewMentionService() *MentionService {
	return &MentionService{}
}

// ResolveMention returns the label of the first band with min <= avg <= max.
// Rules are matched in ascending min order so the result stays deterministic
// even when a misconfigured set of bands overlaps. Nil when nothing matches.
func ResolveMention(rules []models.MentionRule, average float64) *string {
	sorted := make([]models.MentionRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinAvg < sorted[j].MinAvg
	})

	for _, r := range sorted {
		if average >= r.MinAvg && average <= r.MaxAvg {
			label := r.Label
			return &label
		}
	}
	return nil
}

// LabelFor looks up the school year's mention bands for an average.
func (s *MentionService) LabelFor(schoolYearID uint, average float64) (*string, error) {
	var rules []models.MentionRule
	if err := database.DB.Where("school_year_id = ?", schoolYearID).Find(&rules).Error; err != nil {
		return nil, err
	}
	return ResolveMention(rules, average), nil
}

// Appreciation maps an average to the fixed prose printed on bulletins.
// Independent of the configurable mention bands, on purpose.
func Appreciation(average *float64) string {
	if average == nil {
		return "Pas de données disponibles"
	}
	switch {
	case *average >= 16:
		return "Excellent travail, continuez ainsi !"
	case *average >= 14:
		return "Très bon travail, poursuivez vos efforts."
	case *average >= 12:
		return "Bon travail, mais attention aux points faibles."
	case *average >= 10:
		return "Travail suffisant, il faut progresser."
	default:
		return "Résultats insuffisants, nécessite un accompagnement."
	}
}
