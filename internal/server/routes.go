package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	// Set custom error handler for consistent JSON responses
	e.HTTPErrorHandler = NotFoundJSON()

	// Apply global middleware
	e.Use(SetJSONContentType) // Ensure all responses are JSON
	e.Use(SetNoCacheHeaders)  // Prevent caching of API responses

	// Optional API key authentication
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key", // Look for API key in X-API-Key header
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil // Simple string comparison
			},
		}))
	}

	// API v1 routes
	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)                        // Health check endpoint
	v1.GET("/owner", h.GetOwner)                       // Current owner identity
	v1.POST("/owner/transfer", h.TransferOwner)        // Owner handoff
	v1.POST("/routes", h.SetRoute)                     // Configure a route (owner only)
	v1.GET("/routes/:input/:output", h.GetRoute)       // Route lookup
	v1.GET("/settlements/recent", h.RecentSettlements) // Settlement audit trail
	v1.GET("/swaps/pending", h.PendingSwaps)           // In-flight swap ids

	// Swap issuance with rate limiting: each accepted request submits a trade
	// instruction to the venue
	swapGroup := v1.Group("/swaps")
	swapGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(5),   // 5 requests per second
		Burst:     10,              // Allow burst of 10 requests
		ExpiresIn: 2 * time.Minute, // Rate limit window
	})))
	swapGroup.POST("", h.Swap)

	// Catch-all route for 404 responses
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
