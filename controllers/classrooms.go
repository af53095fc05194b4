package controllers

import (
	"github.com/gofiber/fiber/v2"

	"smartbull_go/database"
	"smartbull_go/middleware"
	"smartbull_go/models"
)

type ClassroomController struct{}

// GetClassrooms returns all classrooms with their head teacher
func (cc *ClassroomController) GetClassrooms(c *fiber.Ctx) error {
	var classrooms []models.Classroom
	err := database.DB.
		Preload("HeadTeacher.User").
		Order("level, name").
		Find(&classrooms).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch classrooms",
		})
	}
	return c.JSON(fiber.Map{"classrooms": classrooms})
}

// GetClassroom returns one classroom with students and subjects
func (cc *ClassroomController) GetClassroom(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid classroom id"})
	}

	var classroom models.Classroom
	err = database.DB.
		Preload("HeadTeacher.User").
		Preload("Students").
		Preload("ClassSubjects.Subject").
		Preload("ClassSubjects.Teacher.User").
		First(&classroom, id).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Classroom not found"})
	}
	return c.JSON(fiber.Map{"classroom": classroom})
}

// CreateClassroom creates a new classroom
func (cc *ClassroomController) CreateClassroom(c *fiber.Ctx) error {
	var classroom models.Classroom
	if err := c.BodyParser(&classroom); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if classroom.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name is required"})
	}

	if classroom.HeadTeacherID != nil {
		var teacher models.Teacher
		if err := database.DB.First(&teacher, *classroom.HeadTeacherID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Head teacher not found"})
		}
	}

	if err := database.DB.Create(&classroom).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create classroom"})
	}

	middleware.LogActivity(c, "CREATE", "classrooms", classroom.ID, fiber.Map{"name": classroom.Name})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"classroom": classroom})
}

// UpdateClassroom updates name, level, series or head teacher
func (cc *ClassroomController) UpdateClassroom(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid classroom id"})
	}

	var classroom models.Classroom
	if err := database.DB.First(&classroom, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Classroom not found"})
	}

	var req struct {
		Name          *string `json:"name"`
		Level         *string `json:"level"`
		Series        *string `json:"series"`
		HeadTeacherID *uint   `json:"head_teacher_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Level != nil {
		updates["level"] = *req.Level
	}
	if req.Series != nil {
		updates["series"] = *req.Series
	}
	if req.HeadTeacherID != nil {
		var teacher models.Teacher
		if err := database.DB.First(&teacher, *req.HeadTeacherID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Head teacher not found"})
		}
		updates["head_teacher_id"] = *req.HeadTeacherID
	}

	if len(updates) > 0 {
		if err := database.DB.Model(&classroom).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update classroom"})
		}
	}

	middleware.LogActivity(c, "UPDATE", "classrooms", classroom.ID, fiber.Map{"updates": updates})
	return c.JSON(fiber.Map{"classroom": classroom})
}

// DeleteClassroom removes an empty classroom
func (cc *ClassroomController) DeleteClassroom(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid classroom id"})
	}

	var classroom models.Classroom
	if err := database.DB.First(&classroom, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Classroom not found"})
	}

	var studentCount int64
	database.DB.Model(&models.Student{}).Where("classroom_id = ?", id).Count(&studentCount)
	if studentCount > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Cannot delete a classroom with enrolled students",
		})
	}

	if err := database.DB.Delete(&classroom).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete classroom"})
	}

	middleware.LogActivity(c, "DELETE", "classrooms", classroom.ID, fiber.Map{"name": classroom.Name})
	return c.JSON(fiber.Map{"message": "Classroom deleted"})
}
