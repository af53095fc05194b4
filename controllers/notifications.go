package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"smartbull_go/database"
	"smartbull_go/middleware"
	"smartbull_go/models"
)

type NotificationController struct{}

// GetNotifications returns the current user's notifications, newest first
func (nc *NotificationController) GetNotifications(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	query := database.DB.Where("user_id = ?", user.ID).Order("created_at DESC")
	if c.Query("unread") == "true" {
		query = query.Where("`read` = ?", false)
	}

	var notifs []models.Notification
	if err := query.Limit(100).Find(&notifs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch notifications",
		})
	}

	var unreadCount int64
	database.DB.Model(&models.Notification{}).
		Where("user_id = ? AND `read` = ?", user.ID, false).
		Count(&unreadCount)

	return c.JSON(fiber.Map{
		"notifications": notifs,
		"unread_count":  unreadCount,
	})
}

// MarkNotificationRead marks one of the user's notifications as read
func (nc *NotificationController) MarkNotificationRead(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid notification id"})
	}

	var notif models.Notification
	if err := database.DB.Where("id = ? AND user_id = ?", id, user.ID).First(&notif).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notification not found"})
	}

	now := time.Now()
	if err := database.DB.Model(&notif).Updates(map[string]interface{}{
		"read":    true,
		"read_at": now,
	}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update notification"})
	}

	return c.JSON(fiber.Map{"notification": notif})
}

// MarkAllNotificationsRead marks every unread notification of the user
func (nc *NotificationController) MarkAllNotificationsRead(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	now := time.Now()
	result := database.DB.Model(&models.Notification{}).
		Where("user_id = ? AND `read` = ?", user.ID, false).
		Updates(map[string]interface{}{
			"read":    true,
			"read_at": now,
		})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update notifications"})
	}

	return c.JSON(fiber.Map{
		"message": "All notifications marked as read",
		"updated": result.RowsAffected,
	})
}
