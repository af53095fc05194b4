package controllers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"smartbull_go/database"
	"smartbull_go/middleware"
	"smartbull_go/models"
	"smartbull_go/services"
)

// SchoolYearController manages school years, terms and sequences: the
// calendar backbone every grade and bulletin hangs from.
type SchoolYearController struct{}

// GetSchoolYears returns all school years with their terms and sequences
func (sc *SchoolYearController) GetSchoolYears(c *fiber.Ctx) error {
	var years []models.SchoolYear
	err := database.DB.
		Preload("Terms", func(db *gorm.DB) *gorm.DB { return db.Order("`order`") }).
		Preload("Terms.Sequences", func(db *gorm.DB) *gorm.DB { return db.Order("`order`") }).
		Order("name DESC").
		Find(&years).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch school years",
		})
	}
	return c.JSON(fiber.Map{"school_years": years})
}

// GetActiveSchoolYear returns the single active school year. When duplicate
// active rows exist (a failed activation left the table inconsistent), the
// oldest one is kept and the rest are repaired on the spot.
func (sc *SchoolYearController) GetActiveSchoolYear(c *fiber.Ctx) error {
	var actives []models.SchoolYear
	err := database.DB.
		Preload("Terms", func(db *gorm.DB) *gorm.DB { return db.Order("`order`") }).
		Preload("Terms.Sequences", func(db *gorm.DB) *gorm.DB { return db.Order("`order`") }).
		Where("is_active = ?", true).
		Order("id").
		Find(&actives).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch active school year",
		})
	}
	if len(actives) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No active school year",
		})
	}
	if len(actives) > 1 {
		extraIDs := make([]uint, 0, len(actives)-1)
		for _, y := range actives[1:] {
			extraIDs = append(extraIDs, y.ID)
		}
		database.DB.Model(&models.SchoolYear{}).Where("id IN ?", extraIDs).Update("is_active", false)
	}
	return c.JSON(fiber.Map{"school_year": actives[0]})
}

// CreateSchoolYear creates a new school year
func (sc *SchoolYearController) CreateSchoolYear(c *fiber.Ctx) error {
	var year models.SchoolYear
	if err := c.BodyParser(&year); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if year.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name is required",
		})
	}
	// New years never start active; activation is its own operation
	year.IsActive = false

	if err := database.DB.Create(&year).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "School year already exists",
		})
	}

	middleware.LogActivity(c, "CREATE", "school_years", year.ID, fiber.Map{"name": year.Name})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"school_year": year})
}

// SetActiveSchoolYear activates one year and deactivates every other one in
// a single transaction, so no observer ever sees two active years.
func (sc *SchoolYearController) SetActiveSchoolYear(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid school year id"})
	}

	var year models.SchoolYear
	if err := database.DB.First(&year, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "School year not found"})
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.SchoolYear{}).Where("is_active = ?", true).Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&year).Update("is_active", true).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to activate school year",
		})
	}

	middleware.LogActivity(c, "UPDATE", "school_years", year.ID, fiber.Map{"action": "set_active"})
	return c.JSON(fiber.Map{"message": "School year activated", "school_year": year})
}

// CreateTerm creates a term within a school year
func (sc *SchoolYearController) CreateTerm(c *fiber.Ctx) error {
	var term models.Term
	if err := c.BodyParser(&term); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if term.SchoolYearID == 0 || term.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "school_year_id and name are required"})
	}
	if term.Weight <= 0 {
		term.Weight = 1
	}

	var year models.SchoolYear
	if err := database.DB.First(&year, term.SchoolYearID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "School year not found"})
	}

	if err := database.DB.Create(&term).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create term"})
	}

	middleware.LogActivity(c, "CREATE", "terms", term.ID, fiber.Map{"name": term.Name})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"term": term})
}

// UpdateTerm updates a term's name, order or weight
func (sc *SchoolYearController) UpdateTerm(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid term id"})
	}

	var term models.Term
	if err := database.DB.First(&term, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Term not found"})
	}

	var req struct {
		Name   *string  `json:"name"`
		Order  *uint    `json:"order"`
		Weight *float64 `json:"weight"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Order != nil {
		updates["order"] = *req.Order
	}
	if req.Weight != nil {
		if *req.Weight <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Weight must be positive"})
		}
		updates["weight"] = *req.Weight
	}
	if len(updates) > 0 {
		if err := database.DB.Model(&term).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update term"})
		}
	}

	middleware.LogActivity(c, "UPDATE", "terms", term.ID, fiber.Map{"updates": updates})
	return c.JSON(fiber.Map{"term": term})
}

// CreateSequence creates a sequence within a term and provisions its draft
// grade rows across every classroom
func (sc *SchoolYearController) CreateSequence(c *fiber.Ctx) error {
	var sequence models.Sequence
	if err := c.BodyParser(&sequence); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if sequence.TermID == 0 || sequence.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "term_id and name are required"})
	}
	if sequence.Weight <= 0 {
		sequence.Weight = 1
	}
	sequence.Active = false

	var term models.Term
	if err := database.DB.First(&term, sequence.TermID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Term not found"})
	}

	if err := database.DB.Create(&sequence).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create sequence"})
	}

	if err := services.NewEnrollmentService().ProvisionSequence(sequence.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Sequence created but grade provisioning failed: " + err.Error(),
		})
	}

	middleware.LogActivity(c, "CREATE", "sequences", sequence.ID, fiber.Map{"name": sequence.Name})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"sequence": sequence})
}

// GetActiveSequence returns the sequence currently open for grade entry,
// repairing duplicate active rows the same way as GetActiveSchoolYear.
func (sc *SchoolYearController) GetActiveSequence(c *fiber.Ctx) error {
	var actives []models.Sequence
	err := database.DB.Preload("Term.SchoolYear").
		Where("active = ?", true).
		Order("id").
		Find(&actives).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch active sequence",
		})
	}
	if len(actives) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No active sequence"})
	}
	if len(actives) > 1 {
		extraIDs := make([]uint, 0, len(actives)-1)
		for _, s := range actives[1:] {
			extraIDs = append(extraIDs, s.ID)
		}
		database.DB.Model(&models.Sequence{}).Where("id IN ?", extraIDs).Update("active", false)
	}
	return c.JSON(fiber.Map{"sequence": actives[0]})
}

// SetActiveSequence opens one sequence for grade entry, closing any other
// active sequence in the same transaction
func (sc *SchoolYearController) SetActiveSequence(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid sequence id"})
	}

	var sequence models.Sequence
	if err := database.DB.Preload("Term.SchoolYear").First(&sequence, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Sequence not found"})
	}
	if !sequence.Term.SchoolYear.IsActive {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot activate a sequence of an inactive school year",
		})
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Sequence{}).Where("active = ?", true).Update("active", false).Error; err != nil {
			return err
		}
		return tx.Model(&sequence).Update("active", true).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to activate sequence",
		})
	}

	middleware.LogActivity(c, "UPDATE", "sequences", sequence.ID, fiber.Map{"action": "set_active"})
	return c.JSON(fiber.Map{"message": "Sequence activated", "sequence": sequence})
}

// DeleteSequence removes a sequence that has no validated or locked grades
func (sc *SchoolYearController) DeleteSequence(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid sequence id"})
	}

	var sequence models.Sequence
	if err := database.DB.First(&sequence, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Sequence not found"})
	}

	var count int64
	database.DB.Model(&models.Grade{}).
		Where("sequence_id = ? AND status IN ?", id,
			[]string{models.GradeStatusValidated, models.GradeStatusLocked}).
		Count(&count)
	if count > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Cannot delete a sequence with validated grades",
		})
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sequence_id = ?", id).Delete(&models.Grade{}).Error; err != nil {
			return err
		}
		return tx.Delete(&sequence).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete sequence"})
	}

	middleware.LogActivity(c, "DELETE", "sequences", sequence.ID, fiber.Map{"name": sequence.Name})
	return c.JSON(fiber.Map{"message": "Sequence deleted"})
}
