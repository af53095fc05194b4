package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"smartbull_go/database"
)

type HealthController struct{}

// Health reports the liveness of the API and its backing services
func (hc *HealthController) Health(c *fiber.Ctx) error {
	status := fiber.StatusOK
	dbStatus := "up"
	redisStatus := "up"

	if db := database.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
			dbStatus = "down"
			status = fiber.StatusServiceUnavailable
		}
	} else {
		dbStatus = "down"
		status = fiber.StatusServiceUnavailable
	}

	if rc := database.GetRedisClient(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Ping(ctx).Err(); err != nil {
			redisStatus = "down"
		}
	} else {
		// Redis is optional; report absent, not unhealthy
		redisStatus = "disabled"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":   "ok",
		"database": dbStatus,
		"redis":    redisStatus,
		"time":     time.Now().UTC(),
	})
}
