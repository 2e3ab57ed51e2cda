// Package api provides the HTTP handlers of the marketing orchestrator.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/marketing/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.POST("/chat", h.Chat)
	e.GET("/report/:filename", h.DownloadReport)

	// Session history and stored results
	e.GET("/sessions/:session_id/messages", h.GetSessionMessages)
	e.GET("/sessions/:session_id/results", h.GetSessionResults)

	// Documents, agents and data tools
	e.GET("/rag/search", h.SearchRagDocs)
	e.GET("/agents", h.ListAgents)
	e.GET("/tools", h.ListTools)
	e.POST("/tools/:tool_name/invoke", h.InvokeTool)

	e.GET("/healthz", h.Health)
	e.GET("/health", h.Health)
	if m := h.service.Metrics(); m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
}

// Root describes the service.
func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"service": "커머스 마케팅 에이전트 API",
		"version": "0.1.0",
		"status":  "running",
	})
}

// Health returns health status. It always answers 200; degraded storage is
// reported in the body.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Health(c.Request().Context()))
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}
