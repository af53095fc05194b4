package controllers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"smartbull_go/database"
	"smartbull_go/middleware"
	"smartbull_go/models"
	"smartbull_go/utils"
)

type TeacherController struct{}

// GetTeachers returns all teachers with their user accounts
func (tc *TeacherController) GetTeachers(c *fiber.Ctx) error {
	var teachers []models.Teacher
	if err := database.DB.Preload("User").Find(&teachers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch teachers",
		})
	}
	return c.JSON(fiber.Map{"teachers": teachers})
}

// GetTeacher returns one teacher with the class subjects they teach
func (tc *TeacherController) GetTeacher(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid teacher id"})
	}

	var teacher models.Teacher
	if err := database.DB.Preload("User").First(&teacher, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Teacher not found"})
	}

	var assignments []models.ClassSubject
	database.DB.Preload("Classroom").Preload("Subject").
		Where("teacher_id = ?", teacher.ID).
		Find(&assignments)

	return c.JSON(fiber.Map{"teacher": teacher, "class_subjects": assignments})
}

// CreateTeacher creates a user account with the teacher role plus its
// teacher profile in one transaction
func (tc *TeacherController) CreateTeacher(c *fiber.Ctx) error {
	var req struct {
		Username  string `json:"username" validate:"required"`
		Password  string `json:"password" validate:"required,min=6"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Username == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "username and password are required"})
	}

	var existing models.User
	if err := database.DB.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Username already exists"})
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}

	var teacher models.Teacher
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		user := models.User{
			Username:  req.Username,
			Password:  hashedPassword,
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Role:      models.RoleTeacher,
			Active:    true,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		teacher = models.Teacher{UserID: user.ID, Phone: req.Phone, Active: true}
		return tx.Create(&teacher).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create teacher"})
	}

	database.DB.Preload("User").First(&teacher, teacher.ID)
	middleware.LogActivity(c, "CREATE", "teachers", teacher.ID, fiber.Map{"username": req.Username})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"teacher": teacher})
}

// UpdateTeacher updates phone or active flag; deactivating a teacher also
// deactivates their login
func (tc *TeacherController) UpdateTeacher(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid teacher id"})
	}

	var teacher models.Teacher
	if err := database.DB.First(&teacher, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Teacher not found"})
	}

	var req struct {
		Phone  *string `json:"phone"`
		Active *bool   `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if req.Phone != nil {
			if err := tx.Model(&teacher).Update("phone", *req.Phone).Error; err != nil {
				return err
			}
		}
		if req.Active != nil {
			if err := tx.Model(&teacher).Update("active", *req.Active).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.User{}).Where("id = ?", teacher.UserID).
				Update("active", *req.Active).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update teacher"})
	}

	middleware.LogActivity(c, "UPDATE", "teachers", teacher.ID, fiber.Map{})
	return c.JSON(fiber.Map{"teacher": teacher})
}
