package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/p0mvn/swaprouter/internal/router"
	"github.com/p0mvn/swaprouter/internal/storage"
	"github.com/p0mvn/swaprouter/internal/store"
)

// PendingLister exposes the in-flight correlation ids for operators.
type PendingLister interface {
	List(ctx context.Context) ([]uint64, error)
}

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Router  *router.Orchestrator    // Swap orchestrator
	Cache   storage.SettlementCache // Redis-backed settlement audit cache (optional)
	Pending PendingLister           // Pending swap index (optional)
	DevMode bool                    // Enable detailed error responses in development
	Logger  *logrus.Logger          // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// routerErr maps an orchestrator error onto its HTTP response
func (h *Handlers) routerErr(c echo.Context, err error) error {
	code, msg := statusFor(err)
	if code == http.StatusInternalServerError {
		h.Logger.WithError(err).Error("request failed")
	}
	return h.err(c, code, msg, map[string]any{"err": err.Error()})
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// SetRoute configures the route for one denom pair
// Only the owner may call this; the route is validated against venue liquidity
func (h *Handlers) SetRoute(c echo.Context) error {
	var req SetRouteRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := store.ValidateDenom(req.InputDenom); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid input denom", nil)
	}
	if err := store.ValidateDenom(req.OutputDenom); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid output denom", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	if err := h.Router.SetRoute(ctx, req.Sender, req.InputDenom, req.OutputDenom, req.Route); err != nil {
		return h.routerErr(c, err)
	}

	return c.JSON(http.StatusOK, SetRouteResponse{
		Action:      "set_route",
		InputDenom:  req.InputDenom,
		OutputDenom: req.OutputDenom,
		Hops:        len(req.Route),
	})
}

// GetRoute returns the configured route for a denom pair
// Returns 404 if no route is configured
func (h *Handlers) GetRoute(c echo.Context) error {
	input := strings.TrimSpace(c.Param("input"))
	output := strings.TrimSpace(c.Param("output"))
	if err := store.ValidateDenom(input); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid input denom", nil)
	}
	if err := store.ValidateDenom(output); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid output denom", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	route, err := h.Router.GetRoute(ctx, input, output)
	if err != nil {
		return h.routerErr(c, err)
	}
	return c.JSON(http.StatusOK, RouteResponse{InputDenom: input, OutputDenom: output, Route: route})
}

// GetOwner returns the current owner identity
func (h *Handlers) GetOwner(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	owner, err := h.Router.Owner(ctx)
	if err != nil {
		return h.routerErr(c, err)
	}
	return c.JSON(http.StatusOK, OwnerResponse{Owner: owner})
}

// TransferOwner hands the owner role to a new identity
// Only the current owner may call this
func (h *Handlers) TransferOwner(c echo.Context) error {
	var req TransferOwnerRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Router.TransferOwnership(ctx, req.Sender, req.NewOwner); err != nil {
		return h.routerErr(c, err)
	}
	return c.JSON(http.StatusOK, OwnerResponse{Owner: req.NewOwner})
}

// Swap issues a swap along the configured route for the request's denom pair
// Returns 202 with a pending receipt; settlement is reported asynchronously
func (h *Handlers) Swap(c echo.Context) error {
	var req SwapRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	slippage, err := parseSlippage(req.Slippage)
	if err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	receipt, err := h.Router.Swap(ctx, router.SwapRequest{
		Sender:        req.Sender,
		Funds:         req.Funds,
		TokenIn:       req.TokenIn,
		TokenOutDenom: req.TokenOutDenom,
		Slippage:      slippage,
	})
	if err != nil {
		return h.routerErr(c, err)
	}
	return c.JSON(http.StatusAccepted, receipt)
}

// PendingSwaps lists the correlation ids of swaps awaiting settlement
func (h *Handlers) PendingSwaps(c echo.Context) error {
	if h.Pending == nil {
		return h.err(c, http.StatusNotFound, "pending index is not configured", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	ids, err := h.Pending.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list pending swaps", nil)
	}
	return c.JSON(http.StatusOK, PendingSwapsResponse{Items: ids})
}

// RecentSettlements returns the most recent settlement events with optional limit parameter
// Accepts limit query parameter (default: 100, range: 1-200)
func (h *Handlers) RecentSettlements(c echo.Context) error {
	if h.Cache == nil {
		return h.err(c, http.StatusNotFound, "settlement cache is not configured", nil)
	}

	limitStr := c.QueryParam("limit")
	limit := 100
	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 200 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 200"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Cache.GetRecentSettlements(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get settlements", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// parseSlippage converts the wire slippage spec into the orchestrator's form
func parseSlippage(spec SlippageSpec) (router.Slippage, error) {
	value := strings.TrimSpace(spec.Value)

	switch spec.Type {
	case "min_output_amount":
		amount, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return router.Slippage{}, fmt.Errorf("min output amount must be an unsigned integer")
		}
		return router.Slippage{MinOutputAmount: &amount}, nil
	case "max_price_impact":
		impact, err := decimal.NewFromString(value)
		if err != nil {
			return router.Slippage{}, fmt.Errorf("max price impact must be a decimal")
		}
		return router.Slippage{MaxPriceImpact: &impact}, nil
	default:
		return router.Slippage{}, fmt.Errorf("slippage type must be min_output_amount or max_price_impact")
	}
}
