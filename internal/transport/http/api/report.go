package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/marketing/internal/report"
)

// DownloadReport serves a rendered report.
// GET /report/:filename
func (h *Handler) DownloadReport(c echo.Context) error {
	filename := c.Param("filename")

	path, err := h.service.OpenReport(filename)
	switch {
	case errors.Is(err, report.ErrInvalidFilename):
		return errorJSON(c, http.StatusBadRequest, "잘못된 파일명입니다.")
	case errors.Is(err, report.ErrReportNotFound):
		return errorJSON(c, http.StatusNotFound, "리포트 파일을 찾을 수 없습니다.")
	case err != nil:
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.Attachment(path, filename)
}
