// Package http provides the HTTP server implementation for the marketing orchestrator.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/gogo/marketing/internal/service"
	"github.com/xiaot623/gogo/marketing/internal/transport/http/api"
)

// NewServer creates and configures the public HTTP server.
func NewServer(svc *service.Service, allowOrigins []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	if len(allowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: allowOrigins}))
	} else {
		e.Use(middleware.CORS())
	}

	// Register Routes
	api.NewHandler(svc).RegisterRoutes(e)

	return e
}
