package controllers

import (
	"github.com/gofiber/fiber/v2"

	"smartbull_go/database"
	"smartbull_go/middleware"
	"smartbull_go/models"
)

// SettingsController manages mention bands, per-year settings and the
// bulletin templates.
type SettingsController struct{}

// GetMentionRules lists the mention bands of one school year
func (sc *SettingsController) GetMentionRules(c *fiber.Ctx) error {
	schoolYearID := c.QueryInt("school_year_id")
	if schoolYearID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "school_year_id query parameter is required",
		})
	}

	var rules []models.MentionRule
	err := database.DB.Where("school_year_id = ?", schoolYearID).
		Order("min_avg").
		Find(&rules).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch mention rules",
		})
	}
	return c.JSON(fiber.Map{"mention_rules": rules})
}

// CreateMentionRule adds a mention band to a school year
func (sc *SettingsController) CreateMentionRule(c *fiber.Ctx) error {
	var rule models.MentionRule
	if err := c.BodyParser(&rule); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if rule.SchoolYearID == 0 || rule.Label == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "school_year_id and label are required",
		})
	}
	if rule.MinAvg > rule.MaxAvg {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "min_avg must not exceed max_avg",
		})
	}

	var year models.SchoolYear
	if err := database.DB.First(&year, rule.SchoolYearID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "School year not found"})
	}

	if err := database.DB.Create(&rule).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create mention rule"})
	}

	middleware.LogActivity(c, "CREATE", "mention_rules", rule.ID, fiber.Map{"label": rule.Label})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"mention_rule": rule})
}

// UpdateMentionRule adjusts a band's label or boundaries
func (sc *SettingsController) UpdateMentionRule(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mention rule id"})
	}

	var rule models.MentionRule
	if err := database.DB.First(&rule, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mention rule not found"})
	}

	var req struct {
		Label  *string  `json:"label"`
		MinAvg *float64 `json:"min_avg"`
		MaxAvg *float64 `json:"max_avg"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Label != nil {
		rule.Label = *req.Label
	}
	if req.MinAvg != nil {
		rule.MinAvg = *req.MinAvg
	}
	if req.MaxAvg != nil {
		rule.MaxAvg = *req.MaxAvg
	}
	if rule.MinAvg > rule.MaxAvg {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "min_avg must not exceed max_avg",
		})
	}

	if err := database.DB.Save(&rule).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update mention rule"})
	}

	middleware.LogActivity(c, "UPDATE", "mention_rules", rule.ID, fiber.Map{"label": rule.Label})
	return c.JSON(fiber.Map{"mention_rule": rule})
}

// DeleteMentionRule removes a band
func (sc *SettingsController) DeleteMentionRule(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mention rule id"})
	}

	var rule models.MentionRule
	if err := database.DB.First(&rule, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mention rule not found"})
	}
	if err := database.DB.Delete(&rule).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete mention rule"})
	}

	middleware.LogActivity(c, "DELETE", "mention_rules", rule.ID, fiber.Map{"label": rule.Label})
	return c.JSON(fiber.Map{"message": "Mention rule deleted"})
}

// GetSettings returns the per-year settings, creating defaults on first read
func (sc *SettingsController) GetSettings(c *fiber.Ctx) error {
	schoolYearID := c.QueryInt("school_year_id")
	if schoolYearID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "school_year_id query parameter is required",
		})
	}

	settings := models.Settings{SchoolYearID: uint(schoolYearID)}
	err := database.DB.Where("school_year_id = ?", schoolYearID).
		Attrs(models.Settings{ScaleMax: 20, Rounding: 2, MinPassAvg: 10, Localization: "FR"}).
		FirstOrCreate(&settings).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch settings"})
	}
	return c.JSON(fiber.Map{"settings": settings})
}

// UpdateSettings adjusts the per-year settings
func (sc *SettingsController) UpdateSettings(c *fiber.Ctx) error {
	schoolYearID := c.QueryInt("school_year_id")
	if schoolYearID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "school_year_id query parameter is required",
		})
	}

	var settings models.Settings
	if err := database.DB.Where("school_year_id = ?", schoolYearID).First(&settings).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Settings not found"})
	}

	var req struct {
		MinPassAvg   *float64 `json:"min_pass_avg"`
		Localization *string  `json:"localization"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.MinPassAvg != nil {
		updates["min_pass_avg"] = *req.MinPassAvg
	}
	if req.Localization != nil {
		updates["localization"] = *req.Localization
	}
	if len(updates) > 0 {
		if err := database.DB.Model(&settings).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update settings"})
		}
	}

	middleware.LogActivity(c, "UPDATE", "settings", settings.ID, fiber.Map{"updates": updates})
	return c.JSON(fiber.Map{"settings": settings})
}

// GetBulletinTemplates lists the header/footer templates
func (sc *SettingsController) GetBulletinTemplates(c *fiber.Ctx) error {
	var templates []models.BulletinTemplate
	if err := database.DB.Find(&templates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch bulletin templates",
		})
	}
	return c.JSON(fiber.Map{"templates": templates})
}

// SaveBulletinTemplate creates or updates a template
func (sc *SettingsController) SaveBulletinTemplate(c *fiber.Ctx) error {
	var template models.BulletinTemplate
	if err := c.BodyParser(&template); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if template.ID > 0 {
		var existing models.BulletinTemplate
		if err := database.DB.First(&existing, template.ID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Template not found"})
		}
		if err := database.DB.Save(&template).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update template"})
		}
	} else {
		if err := database.DB.Create(&template).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create template"})
		}
	}

	middleware.LogActivity(c, "UPDATE", "bulletin_templates", template.ID, fiber.Map{"name": template.Name})
	return c.JSON(fiber.Map{"template": template})
}
