package router

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/p0mvn/swaprouter/internal/models"
	"github.com/p0mvn/swaprouter/internal/storage"
)

// RouteStore is the persistent routing table: (input denom, output denom) to
// an ordered hop list. Get returns storage.ErrNotFound for unconfigured pairs.
type RouteStore interface {
	RouteSource
	Set(ctx context.Context, inputDenom, outputDenom string, route models.Route) error
}

// OwnerStore holds the single owner identity gating routing-table mutation.
type OwnerStore interface {
	Get(ctx context.Context) (string, error)
	Transfer(ctx context.Context, newOwner string) error
}

// PendingStore persists in-flight swap state between instruction issuance and
// result delivery. Take reads and deletes atomically, returning
// storage.ErrNotFound when no entry exists for the id.
type PendingStore interface {
	NextCorrelationID(ctx context.Context) (uint64, error)
	Put(ctx context.Context, swap *models.PendingSwap) error
	Take(ctx context.Context, correlationID uint64) (*models.PendingSwap, error)
	Delete(ctx context.Context, correlationID uint64) error
}

// TradeSubmitter issues a trade instruction to the venue. Submission is
// asynchronous: acceptance guarantees a later TradeResult tagged with the
// instruction's correlation id.
type TradeSubmitter interface {
	SubmitSwap(ctx context.Context, instruction models.TradeInstruction) error
}

// Transferrer moves settled proceeds to a recipient.
type Transferrer interface {
	Transfer(ctx context.Context, recipient string, asset models.Asset) error
}

// Slippage selects how the caller bounds their acceptable output: an absolute
// floor, or a maximum price impact fed through the TWAP calculator. Exactly
// one must be set.
type Slippage struct {
	MaxPriceImpact  *decimal.Decimal
	MinOutputAmount *uint64
}

// SwapRequest is a caller's request to convert TokenIn into TokenOutDenom.
type SwapRequest struct {
	Sender        string
	Funds         []models.Asset
	TokenIn       models.Asset
	TokenOutDenom string
	Slippage      Slippage
}

// PendingReceipt acknowledges an issued swap awaiting settlement.
type PendingReceipt struct {
	CorrelationID     uint64       `json:"correlation_id"`
	TokenOutMinAmount models.Asset `json:"token_out_min_amount"`
}

// Orchestrator drives the swap state machine: route configuration, swap
// issuance and asynchronous settlement.
type Orchestrator struct {
	owner     OwnerStore
	routes    RouteStore
	pending   PendingStore
	validator *Validator
	slippage  *SlippageCalculator
	venue     TradeSubmitter
	transfers Transferrer

	// Best-effort audit trail; either may be nil.
	cache   storage.SettlementCache
	history storage.SettlementStore

	identity string // executing identity recorded on issued instructions
	logger   *logrus.Logger
}

// OrchestratorConfig carries the orchestrator's collaborators.
type OrchestratorConfig struct {
	Owner     OwnerStore
	Routes    RouteStore
	Pending   PendingStore
	Validator *Validator
	Slippage  *SlippageCalculator
	Venue     TradeSubmitter
	Transfers Transferrer
	Cache     storage.SettlementCache
	History   storage.SettlementStore
	Identity  string
	Logger    *logrus.Logger
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Orchestrator{
		owner:     cfg.Owner,
		routes:    cfg.Routes,
		pending:   cfg.Pending,
		validator: cfg.Validator,
		slippage:  cfg.Slippage,
		venue:     cfg.Venue,
		transfers: cfg.Transfers,
		cache:     cfg.Cache,
		history:   cfg.History,
		identity:  cfg.Identity,
		logger:    cfg.Logger,
	}
}

// SetRoute configures the route for (inputDenom, outputDenom), overwriting any
// existing entry. Only the owner may configure routes, and the route must pass
// validation against current venue liquidity; a failed call leaves the table
// unchanged.
func (o *Orchestrator) SetRoute(ctx context.Context, sender, inputDenom, outputDenom string, route models.Route) error {
	if err := o.requireOwner(ctx, sender); err != nil {
		return err
	}

	if err := o.validator.Validate(ctx, inputDenom, outputDenom, route); err != nil {
		return err
	}

	if err := o.routes.Set(ctx, inputDenom, outputDenom, route); err != nil {
		return fmt.Errorf("save route: %w", err)
	}

	o.logger.WithFields(logrus.Fields{
		"input":  inputDenom,
		"output": outputDenom,
		"hops":   len(route),
	}).Info("route configured")

	return nil
}

// GetRoute returns the configured route for a pair, or ErrRouteNotFound.
func (o *Orchestrator) GetRoute(ctx context.Context, inputDenom, outputDenom string) (models.Route, error) {
	route, err := o.routes.Get(ctx, inputDenom, outputDenom)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRouteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load route: %w", err)
	}
	return route, nil
}

// Owner returns the configured owner identity.
func (o *Orchestrator) Owner(ctx context.Context) (string, error) {
	return o.owner.Get(ctx)
}

// TransferOwnership atomically replaces the owner. Only the current owner may
// transfer ownership.
func (o *Orchestrator) TransferOwnership(ctx context.Context, sender, newOwner string) error {
	if err := o.requireOwner(ctx, sender); err != nil {
		return err
	}
	if newOwner == "" {
		return fmt.Errorf("%w: new owner is empty", ErrInvalidArgument)
	}
	return o.owner.Transfer(ctx, newOwner)
}

// Swap verifies funds, resolves the minimum output, persists pending state
// under a fresh correlation id and issues the trade instruction. Every error
// path leaves no pending entry behind; every success path leaves exactly one,
// matched to an accepted instruction.
func (o *Orchestrator) Swap(ctx context.Context, req SwapRequest) (*PendingReceipt, error) {
	if req.Sender == "" || req.TokenIn.Denom == "" || req.TokenOutDenom == "" {
		return nil, fmt.Errorf("%w: sender, input denom and output denom are required", ErrInvalidArgument)
	}
	if req.TokenIn.Amount == 0 {
		return nil, fmt.Errorf("%w: input amount must be positive", ErrInvalidArgument)
	}

	if attachedAmount(req.Funds, req.TokenIn.Denom) < req.TokenIn.Amount {
		return nil, ErrInsufficientFunds
	}

	route, err := o.GetRoute(ctx, req.TokenIn.Denom, req.TokenOutDenom)
	if err != nil {
		return nil, err
	}

	minOut, err := o.resolveMinOutput(ctx, req)
	if err != nil {
		return nil, err
	}

	correlationID, err := o.pending.NextCorrelationID(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate correlation id: %w", err)
	}

	instruction := models.TradeInstruction{
		CorrelationID:     correlationID,
		Sender:            o.identity,
		Routes:            route,
		TokenIn:           req.TokenIn,
		TokenOutDenom:     req.TokenOutDenom,
		TokenOutMinAmount: minOut.Amount,
	}

	swap := &models.PendingSwap{
		CorrelationID:  correlationID,
		OriginalSender: req.Sender,
		Instruction:    instruction,
		CreatedAt:      time.Now().UTC(),
	}
	if err := o.pending.Put(ctx, swap); err != nil {
		return nil, fmt.Errorf("persist pending swap: %w", err)
	}

	if err := o.venue.SubmitSwap(ctx, instruction); err != nil {
		// No instruction was accepted, so no result will arrive: the pending
		// entry must not outlive this call.
		if delErr := o.pending.Delete(ctx, correlationID); delErr != nil {
			o.logger.WithError(delErr).WithField("correlation_id", correlationID).
				Error("failed to roll back pending swap")
		}
		return nil, fmt.Errorf("submit swap: %w", err)
	}

	o.logger.WithFields(logrus.Fields{
		"correlation_id": correlationID,
		"sender":         req.Sender,
		"token_in":       req.TokenIn.String(),
		"min_out":        minOut.String(),
	}).Info("swap issued")

	return &PendingReceipt{CorrelationID: correlationID, TokenOutMinAmount: minOut}, nil
}

// OnTradeResult reconciles a venue trade result. The pending entry is deleted
// before any effect is emitted, so redelivery of the same correlation id can
// never double-settle.
func (o *Orchestrator) OnTradeResult(ctx context.Context, result *models.TradeResult) (*models.SettlementEvent, error) {
	swap, err := o.pending.Take(ctx, result.CorrelationID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUnknownCorrelation
	}
	if err != nil {
		return nil, fmt.Errorf("take pending swap: %w", err)
	}

	if !result.Success {
		o.logger.WithFields(logrus.Fields{
			"correlation_id": result.CorrelationID,
			"reason":         result.Error,
		}).Warn("venue reported swap failure")
		return nil, &SwapFailedError{Reason: result.Error}
	}

	amountOut, err := strconv.ParseUint(result.AmountOut, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: amount_out %q", ErrMalformedVenueResponse, result.AmountOut)
	}

	// Proceeds settle in the terminal denom of the stored route.
	proceeds := models.Asset{
		Denom:  swap.Instruction.Routes.FinalDenom(),
		Amount: amountOut,
	}
	if err := o.transfers.Transfer(ctx, swap.OriginalSender, proceeds); err != nil {
		return nil, fmt.Errorf("forward proceeds to %s: %w", swap.OriginalSender, err)
	}

	ev := &models.SettlementEvent{
		CorrelationID: swap.CorrelationID,
		Timestamp:     time.Now().UTC(),
		Sender:        swap.OriginalSender,
		Pair:          fmt.Sprintf("%s/%s", swap.Instruction.TokenIn.Denom, proceeds.Denom),
		TokenIn:       swap.Instruction.TokenIn.Denom,
		TokenOut:      proceeds.Denom,
		AmountIn:      swap.Instruction.TokenIn.Amount,
		AmountOut:     amountOut,
		MinAmountOut:  swap.Instruction.TokenOutMinAmount,
		Hops:          len(swap.Instruction.Routes),
	}

	// Audit trail is best-effort: settlement already happened.
	if o.cache != nil {
		_ = o.cache.AddRecentSettlement(ctx, ev)
		_ = o.cache.PublishSettlement(ctx, ev)
	}
	if o.history != nil {
		_ = o.history.InsertSettlement(ctx, ev)
	}

	o.logger.WithFields(logrus.Fields{
		"correlation_id": swap.CorrelationID,
		"recipient":      swap.OriginalSender,
		"amount_out":     proceeds.String(),
	}).Info("swap settled")

	return ev, nil
}

func (o *Orchestrator) requireOwner(ctx context.Context, sender string) error {
	owner, err := o.owner.Get(ctx)
	if err != nil {
		return fmt.Errorf("load owner: %w", err)
	}
	if owner != sender {
		return ErrUnauthorized
	}
	return nil
}

func (o *Orchestrator) resolveMinOutput(ctx context.Context, req SwapRequest) (models.Asset, error) {
	switch {
	case req.Slippage.MinOutputAmount != nil && req.Slippage.MaxPriceImpact != nil:
		return models.Asset{}, fmt.Errorf("%w: specify either min output amount or max price impact, not both", ErrInvalidArgument)
	case req.Slippage.MinOutputAmount != nil:
		return models.Asset{Denom: req.TokenOutDenom, Amount: *req.Slippage.MinOutputAmount}, nil
	case req.Slippage.MaxPriceImpact != nil:
		return o.slippage.MinOutput(ctx, req.TokenIn, req.TokenOutDenom, *req.Slippage.MaxPriceImpact, time.Now().UTC())
	default:
		return models.Asset{}, fmt.Errorf("%w: slippage bound is required", ErrInvalidArgument)
	}
}

func attachedAmount(funds []models.Asset, denom string) uint64 {
	var total uint64
	for _, f := range funds {
		if f.Denom == denom {
			total += f.Amount
		}
	}
	return total
}
