package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/marketing/internal/domain"
	"github.com/xiaot623/gogo/marketing/internal/service"
)

// GetSessionMessages retrieves the conversation of a session.
// GET /sessions/:session_id/messages
func (h *Handler) GetSessionMessages(c echo.Context) error {
	sessionID := c.Param("session_id")
	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}

	messages, err := h.service.GetMessages(c.Request().Context(), sessionID, limit)
	if errors.Is(err, service.ErrSessionNotFound) {
		return errorJSON(c, http.StatusNotFound, err.Error())
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, domain.MessagesResponse{
		SessionID: sessionID,
		Messages:  messages,
	})
}

// GetSessionResults lists the task results of a session.
// GET /sessions/:session_id/results?task_type=&product_name=
func (h *Handler) GetSessionResults(c echo.Context) error {
	sessionID := c.Param("session_id")
	filter := domain.TaskResultFilter{
		TaskType:    domain.TaskID(c.QueryParam("task_type")),
		ProductName: c.QueryParam("product_name"),
	}
	if filter.TaskType != "" && !filter.TaskType.Valid() {
		return errorJSON(c, http.StatusBadRequest, "unknown task_type")
	}

	results, err := h.service.GetTaskResults(c.Request().Context(), sessionID, filter)
	if errors.Is(err, service.ErrSessionNotFound) {
		return errorJSON(c, http.StatusNotFound, err.Error())
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, domain.TaskResultsResponse{
		SessionID: sessionID,
		Results:   results,
	})
}
