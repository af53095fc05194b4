package controllers

import (
	"github.com/gofiber/fiber/v2"

	"smartbull_go/database"
	"smartbull_go/middleware"
	"smartbull_go/models"
	"smartbull_go/services"
)

type DisciplineController struct{}

// GetDisciplineRecords lists discipline records, filtered by student or term
func (dc *DisciplineController) GetDisciplineRecords(c *fiber.Ctx) error {
	query := database.DB.Preload("Student").Preload("Sanction").Preload("Term")
	if studentID := c.QueryInt("student_id"); studentID > 0 {
		query = query.Where("student_id = ?", studentID)
	}
	if termID := c.QueryInt("term_id"); termID > 0 {
		query = query.Where("term_id = ?", termID)
	}

	var records []models.Discipline
	if err := query.Find(&records).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch discipline records",
		})
	}
	return c.JSON(fiber.Map{"discipline": records})
}

// RecordDiscipline upserts a student's absences and lateness for a term; the
// sanction is derived from the configured thresholds
func (dc *DisciplineController) RecordDiscipline(c *fiber.Ctx) error {
	var req struct {
		StudentID  uint  `json:"student_id" validate:"required"`
		TermID     uint  `json:"term_id" validate:"required"`
		SequenceID *uint `json:"sequence_id"`
		Absences   uint  `json:"absences"`
		Lates      uint  `json:"lates"`
	}
	if err := c.BodyParser(&req); err != nil || req.StudentID == 0 || req.TermID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "student_id and term_id are required",
		})
	}

	var student models.Student
	if err := database.DB.First(&student, req.StudentID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
	}
	var term models.Term
	if err := database.DB.First(&term, req.TermID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Term not found"})
	}

	record, err := services.NewDisciplineService().RecordDiscipline(
		req.StudentID, req.TermID, req.SequenceID, req.Absences, req.Lates)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record discipline",
		})
	}

	middleware.LogActivity(c, "UPDATE", "discipline", record.ID, fiber.Map{
		"student_id": req.StudentID,
		"absences":   req.Absences,
		"lates":      req.Lates,
	})
	return c.JSON(fiber.Map{"discipline": record})
}

// GetSanctions lists the sanction thresholds
func (dc *DisciplineController) GetSanctions(c *fiber.Ctx) error {
	var sanctions []models.Sanction
	if err := database.DB.Order("min_absence_hours").Find(&sanctions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch sanctions",
		})
	}
	return c.JSON(fiber.Map{"sanctions": sanctions})
}

// CreateSanction adds a sanction threshold
func (dc *DisciplineController) CreateSanction(c *fiber.Ctx) error {
	var sanction models.Sanction
	if err := c.BodyParser(&sanction); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if sanction.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Text is required"})
	}

	if err := database.DB.Create(&sanction).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A sanction with this threshold already exists",
		})
	}

	middleware.LogActivity(c, "CREATE", "sanctions", sanction.ID, fiber.Map{
		"min_absence_hours": sanction.MinAbsenceHours,
	})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"sanction": sanction})
}

// DeleteSanction removes a sanction threshold and clears it from any
// discipline record referencing it
func (dc *DisciplineController) DeleteSanction(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid sanction id"})
	}

	var sanction models.Sanction
	if err := database.DB.First(&sanction, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Sanction not found"})
	}

	database.DB.Model(&models.Discipline{}).Where("sanction_id = ?", id).Update("sanction_id", nil)
	if err := database.DB.Delete(&sanction).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete sanction"})
	}

	middleware.LogActivity(c, "DELETE", "sanctions", sanction.ID, fiber.Map{})
	return c.JSON(fiber.Map{"message": "Sanction deleted"})
}
