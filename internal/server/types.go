package server

import (
	"github.com/p0mvn/swaprouter/internal/models"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK bool `json:"ok"` // Service health status
}

// SetRouteRequest configures the route for one (input, output) denom pair
type SetRouteRequest struct {
	Sender      string       `json:"sender"`       // Caller identity, must be the owner
	InputDenom  string       `json:"input_denom"`  // Route input denom
	OutputDenom string       `json:"output_denom"` // Route output denom
	Route       models.Route `json:"route"`        // Ordered hop list
}

// SetRouteResponse acknowledges a configured route
type SetRouteResponse struct {
	Action      string `json:"action"` // Always "set_route"
	InputDenom  string `json:"input_denom"`
	OutputDenom string `json:"output_denom"`
	Hops        int    `json:"hops"`
}

// RouteResponse returns the configured route for a pair
type RouteResponse struct {
	InputDenom  string       `json:"input_denom"`
	OutputDenom string       `json:"output_denom"`
	Route       models.Route `json:"route"`
}

// OwnerResponse returns the current owner identity
type OwnerResponse struct {
	Owner string `json:"owner"`
}

// TransferOwnerRequest hands the owner role to a new identity
type TransferOwnerRequest struct {
	Sender   string `json:"sender"`    // Caller identity, must be the current owner
	NewOwner string `json:"new_owner"` // Identity receiving the owner role
}

// SlippageSpec selects the caller's output bound. Value is a string so integer
// amounts and decimal fractions share one field.
type SlippageSpec struct {
	Type  string `json:"type"`  // "min_output_amount" or "max_price_impact"
	Value string `json:"value"` // Integer amount or decimal fraction respectively
}

// SwapRequest asks the router to convert TokenIn into TokenOutDenom
type SwapRequest struct {
	Sender        string         `json:"sender"`
	Funds         []models.Asset `json:"funds"`
	TokenIn       models.Asset   `json:"token_in"`
	TokenOutDenom string         `json:"token_out_denom"`
	Slippage      SlippageSpec   `json:"slippage"`
}

// PendingSwapsResponse lists the correlation ids of in-flight swaps
type PendingSwapsResponse struct {
	Items []uint64 `json:"items"`
}
