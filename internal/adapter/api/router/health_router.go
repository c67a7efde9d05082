package router

import (
	"github.com/labstack/echo/v4"

	"jobmarket/internal/adapter/api/handler"
)

// SetupHealthRouter mounts the unauthenticated liveness probe.
func SetupHealthRouter(e *echo.Echo) {
	healthHandler := handler.GetHealthHandler()
	e.GET("/health", healthHandler.CheckHealth)
	e.HEAD("/health", healthHandler.CheckHealth)
}
