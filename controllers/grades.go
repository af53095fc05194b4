package controllers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"smartbull_go/database"
	"smartbull_go/middleware"
	"smartbull_go/models"
	"smartbull_go/services"
	"smartbull_go/utils"
)

// GradeController handles grade entry, validation and the privileged unlock.
type GradeController struct{}

// What a batch save may do with an existing grade row.
const (
	saveAsDraft    = "draft"
	saveKeepStatus = "keep"
	saveSkip       = "skip"
)

// gradeSaveDecision resolves a save against the row's status: drafts are
// rewritten as drafts, validated rows may be corrected in place by
// admin/secretary (status stays validated), locked rows are never touched
// here — corrections go through the unlock endpoint first.
func gradeSaveDecision(status string, privileged bool) string {
	switch status {
	case models.GradeStatusDraft:
		return saveAsDraft
	case models.GradeStatusValidated:
		if privileged {
			return saveKeepStatus
		}
	}
	return saveSkip
}

// canEditClassSubject reports whether the user may write grades of the class
// subject: admin and secretary always, a teacher only on their own subjects.
func canEditClassSubject(user *models.User, classSubject *models.ClassSubject) bool {
	if user.IsAdminOrSecretary() {
		return true
	}
	if user.Role != models.RoleTeacher {
		return false
	}
	var teacher models.Teacher
	if err := database.DB.Where("user_id = ?", user.ID).First(&teacher).Error; err != nil {
		return false
	}
	return classSubject.TeacherID != nil && *classSubject.TeacherID == teacher.ID
}

// GetGrades returns the grade rows of one class subject for one sequence
func (gc *GradeController) GetGrades(c *fiber.Ctx) error {
	classSubjectID := c.QueryInt("class_subject_id")
	sequenceID := c.QueryInt("sequence_id")
	if classSubjectID <= 0 || sequenceID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "class_subject_id and sequence_id query parameters are required",
		})
	}

	var grades []models.Grade
	err := database.DB.
		Preload("Student").
		Joins("JOIN students ON students.id = grades.student_id").
		Where("grades.class_subject_id = ? AND grades.sequence_id = ?", classSubjectID, sequenceID).
		Order("students.last_name, students.first_name").
		Find(&grades).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch grades",
		})
	}
	return c.JSON(fiber.Map{"grades": grades})
}

// GradeEntry is one grade line of a batch save
type GradeEntry struct {
	StudentID uint    `json:"student_id" validate:"required"`
	Value     float64 `json:"value"`
	Comment   string  `json:"comment"`
}

// SaveGrades writes a batch of draft grades for one class subject and
// sequence. Values outside [0,20] reject the whole batch; validated grades
// are overwritten only by admin/secretary, locked grades never.
func (gc *GradeController) SaveGrades(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	var req struct {
		ClassSubjectID uint         `json:"class_subject_id" validate:"required"`
		SequenceID     uint         `json:"sequence_id" validate:"required"`
		Entries        []GradeEntry `json:"entries" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.ClassSubjectID == 0 || req.SequenceID == 0 || len(req.Entries) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "class_subject_id, sequence_id and entries are required",
		})
	}

	var classSubject models.ClassSubject
	if err := database.DB.First(&classSubject, req.ClassSubjectID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Class subject not found"})
	}
	if !canEditClassSubject(user, &classSubject) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You are not assigned to this subject",
		})
	}

	var sequence models.Sequence
	if err := database.DB.First(&sequence, req.SequenceID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Sequence not found"})
	}
	if !sequence.Active && !user.IsAdminOrSecretary() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Sequence is not open for grade entry",
		})
	}

	for _, entry := range req.Entries {
		if !utils.IsValidGradeValue(entry.Value) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("Grade %.2f for student %d is outside the 0-20 scale", entry.Value, entry.StudentID),
			})
		}
	}

	var skipped []uint
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		for _, entry := range req.Entries {
			grade := models.Grade{
				StudentID:      entry.StudentID,
				ClassSubjectID: req.ClassSubjectID,
				SequenceID:     req.SequenceID,
			}
			if err := tx.Where(&grade).
				Attrs(models.Grade{TermID: sequence.TermID, Status: models.GradeStatusDraft, CreatedByID: &user.ID}).
				FirstOrCreate(&grade).Error; err != nil {
				return err
			}
			decision := gradeSaveDecision(grade.Status, user.IsAdminOrSecretary())
			if decision == saveSkip {
				skipped = append(skipped, entry.StudentID)
				continue
			}
			updates := map[string]interface{}{
				"value":         entry.Value,
				"comment":       entry.Comment,
				"updated_by_id": user.ID,
			}
			if decision == saveAsDraft {
				updates["status"] = models.GradeStatusDraft
			}
			if err := tx.Model(&grade).Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save grades"})
	}

	middleware.LogActivity(c, "UPDATE", "grades", req.ClassSubjectID, fiber.Map{
		"sequence_id": req.SequenceID,
		"entries":     len(req.Entries),
		"skipped":     len(skipped),
	})
	return c.JSON(fiber.Map{
		"message": "Grades saved",
		"saved":   len(req.Entries) - len(skipped),
		"skipped": skipped,
	})
}

// ValidateGrades flips every draft grade of the class subject and sequence
// to validated, making them count toward averages. A grade left at its
// provisioned zero value blocks validation: an unentered mark must be fixed,
// not silently averaged.
func (gc *GradeController) ValidateGrades(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	var req struct {
		ClassSubjectID uint `json:"class_subject_id" validate:"required"`
		SequenceID     uint `json:"sequence_id" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || req.ClassSubjectID == 0 || req.SequenceID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "class_subject_id and sequence_id are required",
		})
	}

	var classSubject models.ClassSubject
	if err := database.DB.First(&classSubject, req.ClassSubjectID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Class subject not found"})
	}
	if !canEditClassSubject(user, &classSubject) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You are not assigned to this subject",
		})
	}

	var drafts []models.Grade
	err = database.DB.Preload("Student").
		Where("class_subject_id = ? AND sequence_id = ? AND status = ?",
			req.ClassSubjectID, req.SequenceID, models.GradeStatusDraft).
		Find(&drafts).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch grades"})
	}
	if len(drafts) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No draft grades to validate"})
	}

	var unfilled []string
	for _, g := range drafts {
		if g.NeverEntered() {
			unfilled = append(unfilled, g.Student.FullName())
		}
	}
	if len(unfilled) > 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":    "Some grades have not been entered",
			"students": unfilled,
		})
	}

	result := database.DB.Model(&models.Grade{}).
		Where("class_subject_id = ? AND sequence_id = ? AND status = ?",
			req.ClassSubjectID, req.SequenceID, models.GradeStatusDraft).
		Updates(map[string]interface{}{
			"status":          models.GradeStatusValidated,
			"validated_by_id": user.ID,
		})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to validate grades"})
	}

	middleware.LogActivity(c, "UPDATE", "grades", req.ClassSubjectID, fiber.Map{
		"action":      "validate",
		"sequence_id": req.SequenceID,
		"validated":   result.RowsAffected,
	})
	return c.JSON(fiber.Map{
		"message":   "Grades validated",
		"validated": result.RowsAffected,
	})
}

// UnlockGrades is the privileged override moving locked grades back to
// validated so a correction can be entered. Admin only; every use is logged.
func (gc *GradeController) UnlockGrades(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}
	if user.Role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only admin can unlock grades"})
	}

	var req struct {
		ClassSubjectID uint   `json:"class_subject_id" validate:"required"`
		SequenceID     uint   `json:"sequence_id" validate:"required"`
		Reason         string `json:"reason" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || req.ClassSubjectID == 0 || req.SequenceID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "class_subject_id and sequence_id are required",
		})
	}
	if req.Reason == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "A reason is required to unlock grades"})
	}

	result := database.DB.Model(&models.Grade{}).
		Where("class_subject_id = ? AND sequence_id = ? AND status = ?",
			req.ClassSubjectID, req.SequenceID, models.GradeStatusLocked).
		Updates(map[string]interface{}{
			"status":        models.GradeStatusValidated,
			"updated_by_id": user.ID,
		})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to unlock grades"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No locked grades to unlock"})
	}

	middleware.LogActivity(c, "UPDATE", "grades", req.ClassSubjectID, fiber.Map{
		"action":      "unlock",
		"sequence_id": req.SequenceID,
		"unlocked":    result.RowsAffected,
		"reason":      req.Reason,
	})
	return c.JSON(fiber.Map{
		"message":  "Grades unlocked",
		"unlocked": result.RowsAffected,
	})
}

// DownloadGradeSheet renders the printable grade list of one class subject
// and sequence
func (gc *GradeController) DownloadGradeSheet(c *fiber.Ctx) error {
	classSubjectID := c.QueryInt("class_subject_id")
	sequenceID := c.QueryInt("sequence_id")
	if classSubjectID <= 0 || sequenceID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "class_subject_id and sequence_id query parameters are required",
		})
	}

	var classSubject models.ClassSubject
	if err := database.DB.Preload("Classroom").Preload("Subject").First(&classSubject, classSubjectID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Class subject not found"})
	}
	var sequence models.Sequence
	if err := database.DB.First(&sequence, sequenceID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Sequence not found"})
	}

	var grades []models.Grade
	err := database.DB.Preload("Student").
		Joins("JOIN students ON students.id = grades.student_id").
		Where("grades.class_subject_id = ? AND grades.sequence_id = ?", classSubjectID, sequenceID).
		Order("students.last_name, students.first_name").
		Find(&grades).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch grades"})
	}

	rows := make([]services.GradeSheetRow, 0, len(grades))
	for _, g := range grades {
		rows = append(rows, services.GradeSheetRow{
			Student:     g.Student.FullName(),
			Value:       g.Value,
			Coefficient: classSubject.Coefficient,
			Status:      g.Status,
		})
	}

	title := fmt.Sprintf("Relevé de notes - %s", classSubject.Subject.Name)
	subtitle := fmt.Sprintf("%s - %s", classSubject.Classroom.Name, sequence.Name)
	pdfBytes, err := services.NewPDFRenderer().RenderGradeSheet(title, subtitle, rows)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to render grade sheet"})
	}

	filename := utils.SanitizeFilename(fmt.Sprintf("notes_%s_%s", classSubject.Subject.Code, sequence.Name)) + ".pdf"
	c.Set("Content-Type", "application/pdf")
	c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.Send(pdfBytes)
}
