package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/marketing/internal/service"
)

// ListAgents lists every task agent and its status.
// GET /agents
func (h *Handler) ListAgents(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"agents": h.service.ListAgents(),
	})
}

// ListTools lists the registered data tools.
// GET /tools
func (h *Handler) ListTools(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tools": h.service.ListTools(),
	})
}

// InvokeTool runs one data tool with the request body as arguments.
// POST /tools/:tool_name/invoke
func (h *Handler) InvokeTool(c echo.Context) error {
	toolName := c.Param("tool_name")
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if len(body) > 0 && !json.Valid(body) {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.service.InvokeTool(c.Request().Context(), toolName, body)
	if errors.Is(err, service.ErrToolNotFound) {
		return errorJSON(c, http.StatusNotFound, "tool not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, resp)
}
