// Package api wires the HTTP surface: health, metrics, the auto-chat
// introspection endpoints, and the three WebSocket endpoints.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sorivoice/server/internal/autochat"
	"github.com/sorivoice/server/internal/websocket"
)

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	hub *websocket.Hub,
	chat *websocket.ChatHandler,
	stt *websocket.STTHandler,
	tts *websocket.TTSHandler,
	manager *autochat.Manager,
	logger *zap.Logger,
) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"service":     "sorivoice-server",
			"connections": hub.Count(),
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Auto-chat introspection APIs
	v1 := e.Group("/api/v1")
	v1.GET("/auto-chat/themes", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"themes": manager.Themes(),
		})
	})
	v1.GET("/auto-chat/sessions", func(c echo.Context) error {
		sessions := manager.ListSessions()
		return c.JSON(http.StatusOK, map[string]interface{}{
			"sessions": sessions,
			"count":    len(sessions),
		})
	})
	v1.GET("/auto-chat/sessions/:id", func(c echo.Context) error {
		info, ok := manager.GetSession(c.Param("id"))
		if !ok {
			return c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "session_not_found",
				Message: "No session with that id",
			})
		}
		return c.JSON(http.StatusOK, info)
	})
	v1.PATCH("/auto-chat/sessions/:id", func(c echo.Context) error {
		return updateSession(c, manager, logger)
	})

	// WebSocket endpoints
	e.GET("/ws/chat", func(c echo.Context) error {
		return websocket.Serve(hub, c, chat, logger)
	})
	e.GET("/ws/stt", func(c echo.Context) error {
		return websocket.Serve(hub, c, stt, logger)
	})
	e.GET("/ws/tts", func(c echo.Context) error {
		return websocket.Serve(hub, c, tts, logger)
	})
}

func updateSession(c echo.Context, manager *autochat.Manager, logger *zap.Logger) error {
	var req UpdateSessionRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind session update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	sessionID := c.Param("id")
	if !manager.UpdateSettings(sessionID, req.Theme, req.Interval) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "session_not_found",
			Message: "No session with that id",
		})
	}

	info, _ := manager.GetSession(sessionID)
	return c.JSON(http.StatusOK, info)
}
