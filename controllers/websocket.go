package controllers

import (
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"

	"smartbull_go/middleware"
	ws "smartbull_go/services/websocket"
)

// WebSocketController upgrades authenticated connections onto the hub.
type WebSocketController struct {
	Hub *ws.Hub
}

func NewWebSocketController(hub *ws.Hub) *WebSocketController {
	return &WebSocketController{Hub: hub}
}

// UpgradeRequired rejects plain HTTP requests on the websocket route and
// stashes the JWT identity in locals for the upgraded handler.
func (wc *WebSocketController) UpgradeRequired(c *fiber.Ctx) error {
	if !fiberws.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
			"error": "WebSocket upgrade required",
		})
	}
	claims, err := middleware.GetCurrentClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}
	c.Locals("ws_user_id", claims.UserID)
	c.Locals("ws_role", claims.Role)
	return c.Next()
}

// Handle runs the websocket session until the peer disconnects
func (wc *WebSocketController) Handle() fiber.Handler {
	return fiberws.New(func(conn *fiberws.Conn) {
		userID, _ := conn.Locals("ws_user_id").(uint)
		role, _ := conn.Locals("ws_role").(string)
		wc.Hub.ServeFiberWS(conn, userID, role)
	})
}
