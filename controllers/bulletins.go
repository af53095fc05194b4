package controllers

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"

	"smartbull_go/database"
	"smartbull_go/middleware"
	"smartbull_go/models"
	"smartbull_go/services"
	"smartbull_go/services/notifications"
	"smartbull_go/utils"
)

// BulletinController exposes report-card generation and the downloads that
// come with it.
type BulletinController struct{}

func newBulletinService() *services.BulletinService {
	return services.NewBulletinService(notifications.NewService())
}

// handleGenerationError maps the structured generation failures to HTTP:
// incomplete preconditions are 422 with the full pair list, a concurrent run
// is 409.
func handleGenerationError(c *fiber.Ctx, err error) error {
	var missingGrades *services.MissingGradesError
	if errors.As(err, &missingGrades) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   "Some grades are not validated yet",
			"missing": missingGrades.Pairs,
		})
	}
	var missingBulletins *services.MissingBulletinsError
	if errors.As(err, &missingBulletins) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   "Some sequence bulletins have not been generated yet",
			"missing": missingBulletins.Pairs,
		})
	}
	if errors.Is(err, services.ErrGenerationInProgress) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A generation run is already in progress for this classroom and period",
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Bulletin generation failed: " + err.Error(),
	})
}

// GenerateSequenceBulletins runs the full sequence generation for a classroom
func (bc *BulletinController) GenerateSequenceBulletins(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	var req struct {
		ClassroomID uint `json:"classroom_id" validate:"required"`
		SequenceID  uint `json:"sequence_id" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || req.ClassroomID == 0 || req.SequenceID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "classroom_id and sequence_id are required",
		})
	}

	bulletins, err := newBulletinService().GenerateForClassroomSequence(req.ClassroomID, req.SequenceID, user.ID)
	if err != nil {
		return handleGenerationError(c, err)
	}

	middleware.LogActivity(c, "CREATE", "bulletins", req.ClassroomID, fiber.Map{
		"sequence_id": req.SequenceID,
		"count":       len(bulletins),
	})
	return c.JSON(fiber.Map{
		"message":   "Bulletins generated",
		"count":     len(bulletins),
		"bulletins": bulletins,
	})
}

// GenerateTermBulletins aggregates the term's sequence bulletins
func (bc *BulletinController) GenerateTermBulletins(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	var req struct {
		ClassroomID uint `json:"classroom_id" validate:"required"`
		TermID      uint `json:"term_id" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || req.ClassroomID == 0 || req.TermID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "classroom_id and term_id are required",
		})
	}

	bulletins, err := newBulletinService().GenerateTermAggregate(req.ClassroomID, req.TermID, user.ID)
	if err != nil {
		return handleGenerationError(c, err)
	}

	middleware.LogActivity(c, "CREATE", "bulletins", req.ClassroomID, fiber.Map{
		"term_id": req.TermID,
		"count":   len(bulletins),
	})
	return c.JSON(fiber.Map{
		"message":   "Term bulletins generated",
		"count":     len(bulletins),
		"bulletins": bulletins,
	})
}

// GenerateYearBulletins aggregates every sequence bulletin of the school year
func (bc *BulletinController) GenerateYearBulletins(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	var req struct {
		ClassroomID  uint `json:"classroom_id" validate:"required"`
		SchoolYearID uint `json:"school_year_id" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || req.ClassroomID == 0 || req.SchoolYearID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "classroom_id and school_year_id are required",
		})
	}

	bulletins, err := newBulletinService().GenerateYearAggregate(req.ClassroomID, req.SchoolYearID, user.ID)
	if err != nil {
		return handleGenerationError(c, err)
	}

	middleware.LogActivity(c, "CREATE", "bulletins", req.ClassroomID, fiber.Map{
		"school_year_id": req.SchoolYearID,
		"count":          len(bulletins),
	})
	return c.JSON(fiber.Map{
		"message":   "Annual bulletins generated",
		"count":     len(bulletins),
		"bulletins": bulletins,
	})
}

// GetClassBulletins lists the generated bulletins of a classroom period,
// ordered by rank
func (bc *BulletinController) GetClassBulletins(c *fiber.Ctx) error {
	classroomID := c.QueryInt("classroom_id")
	sequenceID := c.QueryInt("sequence_id")
	if classroomID <= 0 || sequenceID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "classroom_id and sequence_id query parameters are required",
		})
	}
	kind := c.Query("kind", models.BulletinKindSequence)

	var bulletins []models.Bulletin
	err := database.DB.Preload("Student").
		Where("classroom_id = ? AND sequence_id = ? AND kind = ?", classroomID, sequenceID, kind).
		Order("`rank`").
		Find(&bulletins).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch bulletins",
		})
	}
	return c.JSON(fiber.Map{"bulletins": bulletins})
}

// GetClassStatistics returns the distribution of a classroom period: mean,
// extremes and how many students pass
func (bc *BulletinController) GetClassStatistics(c *fiber.Ctx) error {
	classroomID := c.QueryInt("classroom_id")
	sequenceID := c.QueryInt("sequence_id")
	if classroomID <= 0 || sequenceID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "classroom_id and sequence_id query parameters are required",
		})
	}
	kind := c.Query("kind", models.BulletinKindSequence)

	var bulletins []models.Bulletin
	err := database.DB.
		Where("classroom_id = ? AND sequence_id = ? AND kind = ? AND average IS NOT NULL",
			classroomID, sequenceID, kind).
		Find(&bulletins).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch bulletins",
		})
	}
	if len(bulletins) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No generated bulletins for this period",
		})
	}

	var sum, min, max float64
	var passed int
	min = 20
	for _, b := range bulletins {
		avg := *b.Average
		sum += avg
		if avg < min {
			min = avg
		}
		if avg > max {
			max = avg
		}
		if avg >= 10 {
			passed++
		}
	}

	return c.JSON(fiber.Map{
		"statistics": fiber.Map{
			"count":     len(bulletins),
			"mean":      utils.Round2(sum / float64(len(bulletins))),
			"min":       min,
			"max":       max,
			"passed":    passed,
			"failed":    len(bulletins) - passed,
			"pass_rate": utils.Round2(float64(passed) / float64(len(bulletins)) * 100),
		},
	})
}

// GetBulletin returns one bulletin with its student
func (bc *BulletinController) GetBulletin(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid bulletin id"})
	}

	var bulletin models.Bulletin
	err = database.DB.Preload("Student").Preload("Classroom").Preload("Sequence.Term").
		First(&bulletin, id).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Bulletin not found"})
	}

	// Parents and students only see their own bulletins
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}
	if user.Role == models.RoleParent || user.Role == models.RoleStudent {
		if !userOwnsBulletin(user, &bulletin) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Access denied"})
		}
	}

	return c.JSON(fiber.Map{"bulletin": bulletin})
}

// userOwnsBulletin matches a parent/student account to the bulletin's
// student through matching last name and first name on the user record.
func userOwnsBulletin(user *models.User, bulletin *models.Bulletin) bool {
	return bulletin.Student.LastName == user.LastName && bulletin.Student.FirstName == user.FirstName
}

// DownloadBulletinPDF streams the stored PDF of one bulletin
func (bc *BulletinController) DownloadBulletinPDF(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid bulletin id"})
	}

	var bulletin models.Bulletin
	if err := database.DB.Preload("Student").First(&bulletin, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Bulletin not found"})
	}
	if bulletin.PDFPath == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No PDF stored for this bulletin"})
	}

	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}
	if (user.Role == models.RoleParent || user.Role == models.RoleStudent) && !userOwnsBulletin(user, &bulletin) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Access denied"})
	}

	data, err := os.ReadFile(bulletin.PDFPath)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Bulletin PDF is missing from storage"})
	}

	filename := utils.SanitizeFilename(fmt.Sprintf("bulletin_%s_%s", bulletin.Student.Matricule, bulletin.Kind)) + ".pdf"
	c.Set("Content-Type", "application/pdf")
	c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.Send(data)
}

// ExportClassResults streams the class results workbook for one sequence
func (bc *BulletinController) ExportClassResults(c *fiber.Ctx) error {
	classroomID := c.QueryInt("classroom_id")
	sequenceID := c.QueryInt("sequence_id")
	if classroomID <= 0 || sequenceID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "classroom_id and sequence_id query parameters are required",
		})
	}

	var classroom models.Classroom
	if err := database.DB.First(&classroom, classroomID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Classroom not found"})
	}
	var sequence models.Sequence
	if err := database.DB.First(&sequence, sequenceID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Sequence not found"})
	}

	workbook, err := services.NewExportService().ClassResultsWorkbook(uint(classroomID), uint(sequenceID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build workbook: " + err.Error(),
		})
	}

	var buf bytes.Buffer
	if err := workbook.Write(&buf); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to write workbook"})
	}

	middleware.LogActivity(c, "CREATE", "exports", uint(classroomID), fiber.Map{
		"type":        "class_results",
		"sequence_id": sequenceID,
	})
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", `attachment; filename="`+services.WorkbookFileName(classroom.Name, sequence.Name)+`"`)
	return c.Send(buf.Bytes())
}

// ExportBulletinZip streams a ZIP of the period's bulletin PDFs
func (bc *BulletinController) ExportBulletinZip(c *fiber.Ctx) error {
	classroomID := c.QueryInt("classroom_id")
	sequenceID := c.QueryInt("sequence_id")
	if classroomID <= 0 || sequenceID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "classroom_id and sequence_id query parameters are required",
		})
	}
	kind := c.Query("kind", models.BulletinKindSequence)

	zipBytes, err := services.NewExportService().BulletinZip(uint(classroomID), uint(sequenceID), kind)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	middleware.LogActivity(c, "CREATE", "exports", uint(classroomID), fiber.Map{
		"type":        "bulletin_zip",
		"sequence_id": sequenceID,
		"kind":        kind,
	})
	filename := utils.SanitizeFilename(fmt.Sprintf("bulletins_%d_%d_%s", classroomID, sequenceID, kind)) + ".zip"
	c.Set("Content-Type", "application/zip")
	c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.Send(zipBytes)
}

// GetMyBulletins lists the bulletins of the student matching the logged-in
// parent or student account
func (bc *BulletinController) GetMyBulletins(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	var student models.Student
	err = database.DB.
		Where("last_name = ? AND first_name = ?", user.LastName, user.FirstName).
		First(&student).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No student record matches this account",
		})
	}

	var bulletins []models.Bulletin
	err = database.DB.Preload("Sequence.Term").
		Where("student_id = ?", student.ID).
		Order("generated_at DESC").
		Find(&bulletins).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch bulletins"})
	}

	return c.JSON(fiber.Map{"student": student, "bulletins": bulletins})
}
