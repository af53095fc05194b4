package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"smartbull_go/database"
	"smartbull_go/middleware"
	"smartbull_go/models"
	"smartbull_go/services"
	"smartbull_go/storage"
	"smartbull_go/utils"
)

type StudentController struct{}

// GetStudents returns students, optionally filtered by classroom
func (sc *StudentController) GetStudents(c *fiber.Ctx) error {
	query := database.DB.Preload("Classroom").Order("last_name, first_name")
	if classroomID := c.QueryInt("classroom_id"); classroomID > 0 {
		query = query.Where("classroom_id = ?", classroomID)
	}
	if search := c.Query("search"); search != "" {
		like := "%" + utils.SanitizeString(search) + "%"
		query = query.Where("matricule LIKE ? OR last_name LIKE ? OR first_name LIKE ?", like, like, like)
	}

	var students []models.Student
	if err := query.Find(&students).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch students",
		})
	}
	return c.JSON(fiber.Map{"students": students})
}

// GetStudent returns one student
func (sc *StudentController) GetStudent(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid student id"})
	}

	var student models.Student
	if err := database.DB.Preload("Classroom").First(&student, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
	}
	return c.JSON(fiber.Map{"student": student})
}

// CreateStudent enrolls a new student into a classroom and provisions their
// subject links and draft grades
func (sc *StudentController) CreateStudent(c *fiber.Ctx) error {
	var student models.Student
	if err := c.BodyParser(&student); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if student.Matricule == "" || student.LastName == "" || student.ClassroomID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "matricule, last_name and classroom_id are required",
		})
	}

	var classroom models.Classroom
	if err := database.DB.First(&classroom, student.ClassroomID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Classroom not found"})
	}

	if err := database.DB.Create(&student).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Matricule already exists"})
	}

	if err := services.NewEnrollmentService().ReconcileStudent(student.ID); err != nil {
		logrus.WithError(err).Error("Enrollment reconciliation failed after student creation")
	}

	middleware.LogActivity(c, "CREATE", "students", student.ID, fiber.Map{"matricule": student.Matricule})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"student": student})
}

// UpdateStudent updates a student's identity fields
func (sc *StudentController) UpdateStudent(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid student id"})
	}

	var student models.Student
	if err := database.DB.First(&student, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
	}

	var req struct {
		FirstName  *string    `json:"first_name"`
		LastName   *string    `json:"last_name"`
		Gender     *string    `json:"gender"`
		BirthDate  *time.Time `json:"birth_date"`
		BirthPlace *string    `json:"birth_place"`
		Repeater   *bool      `json:"repeater"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Gender != nil {
		if *req.Gender != "M" && *req.Gender != "F" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Gender must be M or F"})
		}
		updates["gender"] = *req.Gender
	}
	if req.BirthDate != nil {
		updates["birth_date"] = *req.BirthDate
	}
	if req.BirthPlace != nil {
		updates["birth_place"] = *req.BirthPlace
	}
	if req.Repeater != nil {
		updates["repeater"] = *req.Repeater
	}

	if len(updates) > 0 {
		if err := database.DB.Model(&student).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update student"})
		}
	}

	middleware.LogActivity(c, "UPDATE", "students", student.ID, fiber.Map{"updates": updates})
	return c.JSON(fiber.Map{"student": student})
}

// TransferStudent moves a student to another classroom and reconciles their
// enrollment there. Grades in the old classroom stay untouched.
func (sc *StudentController) TransferStudent(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid student id"})
	}

	var req struct {
		ClassroomID uint `json:"classroom_id" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || req.ClassroomID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "classroom_id is required"})
	}

	var student models.Student
	if err := database.DB.First(&student, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
	}
	var classroom models.Classroom
	if err := database.DB.First(&classroom, req.ClassroomID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Classroom not found"})
	}
	if student.ClassroomID == req.ClassroomID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Student is already in this classroom"})
	}

	oldClassroomID := student.ClassroomID
	if err := database.DB.Model(&student).Update("classroom_id", req.ClassroomID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to transfer student"})
	}

	if err := services.NewEnrollmentService().ReconcileStudent(student.ID); err != nil {
		logrus.WithError(err).Error("Enrollment reconciliation failed after transfer")
	}

	middleware.LogActivity(c, "UPDATE", "students", student.ID, fiber.Map{
		"action":         "transfer",
		"from_classroom": oldClassroomID,
		"to_classroom":   req.ClassroomID,
	})
	return c.JSON(fiber.Map{"message": "Student transferred", "student": student})
}

// UploadStudentPhoto stores the student's photo on S3 and saves the URL
func (sc *StudentController) UploadStudentPhoto(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid student id"})
	}

	var student models.Student
	if err := database.DB.First(&student, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
	}

	file, err := c.FormFile("photo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Photo file is required"})
	}
	if !utils.IsValidFileExtension(file.Filename, []string{"jpg", "jpeg", "png", "webp"}) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unsupported image format"})
	}

	storageService, err := storage.NewStorageService()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Storage unavailable"})
	}
	url, err := storageService.UploadStudentPhoto(file, student.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload photo"})
	}

	if err := database.DB.Model(&student).Update("photo_url", url).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save photo URL"})
	}

	middleware.LogActivity(c, "UPDATE", "students", student.ID, fiber.Map{"action": "photo_upload"})
	return c.JSON(fiber.Map{"message": "Photo uploaded", "photo_url": url})
}

// ImportStudents bulk-creates students from an uploaded workbook into one
// classroom. Valid rows are imported, rejected rows are reported back.
func (sc *StudentController) ImportStudents(c *fiber.Ctx) error {
	classroomID := c.QueryInt("classroom_id")
	if classroomID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "classroom_id query parameter is required"})
	}

	var classroom models.Classroom
	if err := database.DB.First(&classroom, classroomID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Classroom not found"})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Workbook file is required"})
	}
	if !utils.IsValidFileExtension(file.Filename, []string{"xlsx"}) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Only .xlsx files are supported"})
	}

	src, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to open uploaded file"})
	}
	defer src.Close()

	rows, rejected, err := services.ParseStudentsWorkbook(src)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var created, skipped int
	for _, row := range rows {
		student := models.Student{
			Matricule:   row.Matricule,
			LastName:    row.LastName,
			FirstName:   row.FirstName,
			Gender:      row.Gender,
			BirthPlace:  row.BirthPlace,
			ClassroomID: uint(classroomID),
		}
		if err := database.DB.Create(&student).Error; err != nil {
			skipped++
			rejected = append(rejected, "matricule "+row.Matricule+": déjà existant")
			continue
		}
		created++
	}

	if created > 0 {
		if err := services.NewEnrollmentService().ReconcileClassroom(uint(classroomID)); err != nil {
			logrus.WithError(err).Error("Enrollment reconciliation failed after import")
		}
	}

	middleware.LogActivity(c, "CREATE", "students", uint(classroomID), fiber.Map{
		"action":  "import",
		"created": created,
		"skipped": skipped,
	})
	return c.JSON(fiber.Map{
		"message":  "Import completed",
		"created":  created,
		"skipped":  skipped,
		"rejected": rejected,
	})
}

// DeleteStudent removes a student without validated grades
func (sc *StudentController) DeleteStudent(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid student id"})
	}

	var student models.Student
	if err := database.DB.First(&student, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
	}

	var validatedCount int64
	database.DB.Model(&models.Grade{}).
		Where("student_id = ? AND status IN ?", id,
			[]string{models.GradeStatusValidated, models.GradeStatusLocked}).
		Count(&validatedCount)
	if validatedCount > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Cannot delete a student with validated grades",
		})
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", id).Delete(&models.Grade{}).Error; err != nil {
			return err
		}
		if err := tx.Where("student_id = ?", id).Delete(&models.StudentSubject{}).Error; err != nil {
			return err
		}
		return tx.Delete(&student).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete student"})
	}

	middleware.LogActivity(c, "DELETE", "students", student.ID, fiber.Map{"matricule": student.Matricule})
	return c.JSON(fiber.Map{"message": "Student deleted"})
}
