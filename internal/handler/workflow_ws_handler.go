package handler

import (
	"ai-editorial-be/internal/pkg/logger"
	"ai-editorial-be/internal/pkg/serverutils"
	"ai-editorial-be/internal/service"
	internalWS "ai-editorial-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// WorkflowSocketHandler streams a session's messages and busy indicators to
// the browser.
type WorkflowSocketHandler struct {
	service   service.IWorkflowService
	hub       *internalWS.Hub
	jwtSecret string
	logger    logger.ILogger
}

func NewWorkflowSocketHandler(service service.IWorkflowService, hub *internalWS.Hub, jwtSecret string, log logger.ILogger) *WorkflowSocketHandler {
	return &WorkflowSocketHandler{
		service:   service,
		hub:       hub,
		jwtSecret: jwtSecret,
		logger:    log,
	}
}

// ServeWs authenticates the handshake and attaches the connection to the
// session's listeners.
func (h *WorkflowSocketHandler) ServeWs(c *fiber.Ctx) error {
	// 1. Get Token source
	// Priority 1: Query Param (Browser standard)
	tokenStr := c.Query("token")

	// Priority 2: Authorization Header (Tooling/Non-browser standard)
	if tokenStr == "" {
		tokenStr = serverutils.BearerToken(c.Get("Authorization"))
	}

	// 2. Parse JWT
	userID, err := serverutils.ParseUserID(tokenStr, h.jwtSecret)
	if err != nil {
		h.logger.Warn("WorkflowSocketHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, err.Error()))
	}

	// 3. The session must belong to the caller
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "Invalid workflow id"))
	}
	if _, err := h.service.Show(c.UserContext(), userID, sessionID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(fiber.StatusNotFound, err.Error()))
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("WorkflowSocketHandler", "Starting WebSocket session", map[string]interface{}{"user_id": userID, "session_id": sessionID})
			internalWS.ServeWs(h.hub, conn, sessionID.String(), userID)
			h.logger.Info("WorkflowSocketHandler", "WebSocket session ended", map[string]interface{}{"user_id": userID, "session_id": sessionID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// RegisterRoutes registers the WebSocket route. Authentication happens in
// the handshake since browsers cannot set headers on upgrades.
func (h *WorkflowSocketHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/workflow/:id", h.ServeWs)
}
