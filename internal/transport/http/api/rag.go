package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/marketing/internal/domain"
	"github.com/xiaot623/gogo/marketing/internal/service"
)

// SearchRagDocs searches stored documents.
// GET /rag/search?q=&category=&k=
func (h *Handler) SearchRagDocs(c echo.Context) error {
	k := 0
	if v := c.QueryParam("k"); v != "" {
		val, err := strconv.Atoi(v)
		if err != nil || val < 0 {
			return errorJSON(c, http.StatusBadRequest, "k must be a non-negative integer")
		}
		k = val
	}

	docs, err := h.service.SearchRagDocs(c.Request().Context(), c.QueryParam("q"), c.QueryParam("category"), k)
	if errors.Is(err, service.ErrEmptyQuery) {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, domain.RagSearchResponse{
		Query:    c.QueryParam("q"),
		Category: c.QueryParam("category"),
		Docs:     docs,
	})
}
