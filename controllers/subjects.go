package controllers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"smartbull_go/database"
	"smartbull_go/middleware"
	"smartbull_go/models"
	"smartbull_go/services"
)

type SubjectController struct{}

// GetSubjects returns the subject catalogue
func (sc *SubjectController) GetSubjects(c *fiber.Ctx) error {
	var subjects []models.Subject
	if err := database.DB.Order("name").Find(&subjects).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch subjects",
		})
	}
	return c.JSON(fiber.Map{"subjects": subjects})
}

// CreateSubject adds a subject to the catalogue
func (sc *SubjectController) CreateSubject(c *fiber.Ctx) error {
	var subject models.Subject
	if err := c.BodyParser(&subject); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if subject.Code == "" || subject.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Code and name are required"})
	}
	if subject.Category == "" {
		subject.Category = "core"
	}

	if err := database.DB.Create(&subject).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Subject code already exists"})
	}

	middleware.LogActivity(c, "CREATE", "subjects", subject.ID, fiber.Map{"code": subject.Code})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"subject": subject})
}

// UpdateSubject updates a subject's name or category
func (sc *SubjectController) UpdateSubject(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid subject id"})
	}

	var subject models.Subject
	if err := database.DB.First(&subject, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Subject not found"})
	}

	var req struct {
		Name     *string `json:"name"`
		Category *string `json:"category"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if len(updates) > 0 {
		if err := database.DB.Model(&subject).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update subject"})
		}
	}

	middleware.LogActivity(c, "UPDATE", "subjects", subject.ID, fiber.Map{"updates": updates})
	return c.JSON(fiber.Map{"subject": subject})
}

// AssignSubjectToClass attaches a subject to a classroom with a coefficient
// and optional teacher, then reconciles enrollments so every student gets
// their draft grade rows.
func (sc *SubjectController) AssignSubjectToClass(c *fiber.Ctx) error {
	var req struct {
		ClassroomID uint    `json:"classroom_id" validate:"required"`
		SubjectID   uint    `json:"subject_id" validate:"required"`
		Coefficient float64 `json:"coefficient"`
		TeacherID   *uint   `json:"teacher_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.ClassroomID == 0 || req.SubjectID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "classroom_id and subject_id are required"})
	}
	if req.Coefficient <= 0 {
		req.Coefficient = 1
	}

	var classroom models.Classroom
	if err := database.DB.First(&classroom, req.ClassroomID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Classroom not found"})
	}
	var subject models.Subject
	if err := database.DB.First(&subject, req.SubjectID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Subject not found"})
	}

	classSubject := models.ClassSubject{
		ClassroomID: req.ClassroomID,
		SubjectID:   req.SubjectID,
		Coefficient: req.Coefficient,
		TeacherID:   req.TeacherID,
	}
	if err := database.DB.Create(&classSubject).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Subject is already assigned to this classroom",
		})
	}

	if err := services.NewEnrollmentService().ReconcileClassroom(req.ClassroomID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Subject assigned but enrollment reconciliation failed: " + err.Error(),
		})
	}

	middleware.LogActivity(c, "CREATE", "class_subjects", classSubject.ID, fiber.Map{
		"classroom_id": req.ClassroomID,
		"subject_id":   req.SubjectID,
		"coefficient":  req.Coefficient,
	})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"class_subject": classSubject})
}

// UpdateClassSubject changes the coefficient or teacher of a class subject.
// Coefficient changes are refused once grades are validated: validated
// averages must stay reproducible.
func (sc *SubjectController) UpdateClassSubject(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid class subject id"})
	}

	var classSubject models.ClassSubject
	if err := database.DB.First(&classSubject, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Class subject not found"})
	}

	var req struct {
		Coefficient *float64 `json:"coefficient"`
		TeacherID   *uint    `json:"teacher_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.Coefficient != nil {
		if *req.Coefficient <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Coefficient must be positive"})
		}
		var validatedCount int64
		database.DB.Model(&models.Grade{}).
			Where("class_subject_id = ? AND status IN ?", id,
				[]string{models.GradeStatusValidated, models.GradeStatusLocked}).
			Count(&validatedCount)
		if validatedCount > 0 {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Cannot change coefficient once grades are validated",
			})
		}
		updates["coefficient"] = *req.Coefficient
	}
	if req.TeacherID != nil {
		var teacher models.Teacher
		if err := database.DB.First(&teacher, *req.TeacherID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Teacher not found"})
		}
		updates["teacher_id"] = *req.TeacherID
	}

	if len(updates) > 0 {
		if err := database.DB.Model(&classSubject).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update class subject"})
		}
	}

	middleware.LogActivity(c, "UPDATE", "class_subjects", classSubject.ID, fiber.Map{"updates": updates})
	return c.JSON(fiber.Map{"class_subject": classSubject})
}

// RemoveSubjectFromClass detaches a subject from a classroom when no
// validated grades depend on it
func (sc *SubjectController) RemoveSubjectFromClass(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid class subject id"})
	}

	var classSubject models.ClassSubject
	if err := database.DB.First(&classSubject, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Class subject not found"})
	}

	var validatedCount int64
	database.DB.Model(&models.Grade{}).
		Where("class_subject_id = ? AND status IN ?", id,
			[]string{models.GradeStatusValidated, models.GradeStatusLocked}).
		Count(&validatedCount)
	if validatedCount > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Cannot remove a subject with validated grades",
		})
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("class_subject_id = ?", id).Delete(&models.Grade{}).Error; err != nil {
			return err
		}
		return tx.Delete(&classSubject).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to remove class subject"})
	}

	if err := services.NewEnrollmentService().ReconcileClassroom(classSubject.ClassroomID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Subject removed but enrollment reconciliation failed: " + err.Error(),
		})
	}

	middleware.LogActivity(c, "DELETE", "class_subjects", classSubject.ID, fiber.Map{
		"classroom_id": classSubject.ClassroomID,
		"subject_id":   classSubject.SubjectID,
	})
	return c.JSON(fiber.Map{"message": "Subject removed from classroom"})
}
