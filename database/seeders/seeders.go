package seeders

import (
	"time"

	"github.com/sirupsen/logrus"

	"smartbull_go/database"
	"smartbull_go/models"
	"smartbull_go/utils"
)

// SeedAll provisions the baseline records a fresh install needs: the admin
// account, the current school year with its terms and sequences, the default
// mention bands, sanction thresholds and bulletin template. Every seed is
// idempotent.
func SeedAll() {
	seedAdminUser()
	year := seedSchoolYear()
	seedMentionRules(year.ID)
	seedSettings(year.ID)
	seedSanctions()
	seedBulletinTemplate()
	logrus.Info("Database seeding completed")
}

func seedAdminUser() {
	var count int64
	database.DB.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)
	if count > 0 {
		return
	}

	hashed, err := utils.HashPassword("admin123")
	if err != nil {
		logrus.WithError(err).Error("Failed to hash default admin password")
		return
	}
	admin := models.User{
		Username: "admin",
		Password: hashed,
		Role:     models.RoleAdmin,
		Active:   true,
	}
	if err := database.DB.Create(&admin).Error; err != nil {
		logrus.WithError(err).Error("Failed to seed admin user")
		return
	}
	logrus.Warn("Seeded default admin account; change its password immediately")
}

func seedSchoolYear() models.SchoolYear {
	now := time.Now()
	startYear := now.Year()
	if now.Month() < time.September {
		startYear--
	}
	name := time.Date(startYear, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006") + "-" +
		time.Date(startYear+1, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")

	var year models.SchoolYear
	if err := database.DB.Where("name = ?", name).First(&year).Error; err == nil {
		return year
	}

	start := time.Date(startYear, time.September, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(startYear+1, time.June, 30, 0, 0, 0, 0, time.UTC)
	year = models.SchoolYear{Name: name, StartDate: &start, EndDate: &end, IsActive: true}
	if err := database.DB.Create(&year).Error; err != nil {
		logrus.WithError(err).Error("Failed to seed school year")
		return year
	}

	// Three terms of two sequences each, all weighted equally
	seqOrder := uint(1)
	for t := uint(1); t <= 3; t++ {
		term := models.Term{
			SchoolYearID: year.ID,
			Name:         "T" + string(rune('0'+t)),
			Order:        t,
			Weight:       1,
		}
		if err := database.DB.Create(&term).Error; err != nil {
			logrus.WithError(err).Error("Failed to seed term")
			continue
		}
		for s := 0; s < 2; s++ {
			sequence := models.Sequence{
				TermID: term.ID,
				Name:   "S" + string(rune('0'+seqOrder)),
				Order:  seqOrder,
				Weight: 1,
				Active: seqOrder == 1,
			}
			if err := database.DB.Create(&sequence).Error; err != nil {
				logrus.WithError(err).Error("Failed to seed sequence")
			}
			seqOrder++
		}
	}
	return year
}

func seedMentionRules(schoolYearID uint) {
	var count int64
	database.DB.Model(&models.MentionRule{}).Where("school_year_id = ?", schoolYearID).Count(&count)
	if count > 0 {
		return
	}

	rules := []models.MentionRule{
		{SchoolYearID: schoolYearID, Label: "Excellent", MinAvg: 18, MaxAvg: 20},
		{SchoolYearID: schoolYearID, Label: "TB", MinAvg: 16, MaxAvg: 17.99},
		{SchoolYearID: schoolYearID, Label: "Bien", MinAvg: 14, MaxAvg: 15.99},
		{SchoolYearID: schoolYearID, Label: "AB", MinAvg: 12, MaxAvg: 13.99},
		{SchoolYearID: schoolYearID, Label: "Passable", MinAvg: 10, MaxAvg: 11.99},
		{SchoolYearID: schoolYearID, Label: "Insuffisant", MinAvg: 0, MaxAvg: 9.99},
	}
	if err := database.DB.Create(&rules).Error; err != nil {
		logrus.WithError(err).Error("Failed to seed mention rules")
	}
}

func seedSettings(schoolYearID uint) {
	settings := models.Settings{SchoolYearID: schoolYearID}
	err := database.DB.Where("school_year_id = ?", schoolYearID).
		Attrs(models.Settings{ScaleMax: 20, Rounding: 2, MinPassAvg: 10, Localization: "FR"}).
		FirstOrCreate(&settings).Error
	if err != nil {
		logrus.WithError(err).Error("Failed to seed settings")
	}
}

func seedSanctions() {
	var count int64
	database.DB.Model(&models.Sanction{}).Count(&count)
	if count > 0 {
		return
	}

	sanctions := []models.Sanction{
		{Text: "Avertissement de conduite", MinAbsenceHours: 10},
		{Text: "Blâme", MinAbsenceHours: 20},
		{Text: "Exclusion temporaire de 3 jours", MinAbsenceHours: 30},
		{Text: "Conseil de discipline", MinAbsenceHours: 40},
	}
	if err := database.DB.Create(&sanctions).Error; err != nil {
		logrus.WithError(err).Error("Failed to seed sanctions")
	}
}

func seedBulletinTemplate() {
	var count int64
	database.DB.Model(&models.BulletinTemplate{}).Count(&count)
	if count > 0 {
		return
	}

	template := models.BulletinTemplate{
		Name:       "Canevas bulletin",
		HeaderText: "République du Cameroun\nPaix - Travail - Patrie\nMinistère des Enseignements Secondaires",
		FooterText: "Le Chef d'établissement",
		Active:     true,
	}
	if err := database.DB.Create(&template).Error; err != nil {
		logrus.WithError(err).Error("Failed to seed bulletin template")
	}
}
