package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/marketing/internal/service"
)

// Chat routes one user message.
// POST /chat
func (h *Handler) Chat(c echo.Context) error {
	var req service.ChatRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	res, err := h.service.Chat(c.Request().Context(), req)
	if errors.Is(err, service.ErrEmptyMessage) {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	if err != nil {
		c.Logger().Errorf("chat failed: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "서버 내부 오류가 발생했습니다. 잠시 후 다시 시도해주세요.")
	}

	// Guidance replies and routing outcomes are normal answers; only hard
	// failures map to 500, with the same body shape.
	status := http.StatusOK
	if !res.Success && res.Fatal {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, service.NewChatResponse(res))
}
