package router

import (
	"github.com/labstack/echo/v4"

	"jobmarket/internal/adapter/api/handler"
	"jobmarket/internal/adapter/api/middleware"
)

// SetupListingRouter serves jobs and issues; :kind is "jobs" or "issues".
func SetupListingRouter(e *echo.Echo, sessionMiddleware *middleware.SessionMiddleware) {
	listingHandler := handler.GetListingHandler()

	listingGroup := e.Group("/v1/listings")
	listingGroup.Use(sessionMiddleware.Authenticate)

	listingGroup.GET("/:kind", listingHandler.ListListings)
	listingGroup.GET("/:kind/:id", listingHandler.GetListing)
	listingGroup.DELETE("/:kind/:id", listingHandler.DeleteListing)
}
