package router

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p0mvn/swaprouter/internal/models"
	"github.com/p0mvn/swaprouter/internal/storage"
)

// memRouteStore is an in-memory routing table
type memRouteStore struct {
	mu     sync.Mutex
	routes map[string]models.Route
}

func newMemRouteStore() *memRouteStore {
	return &memRouteStore{routes: make(map[string]models.Route)}
}

func (s *memRouteStore) Get(_ context.Context, inputDenom, outputDenom string) (models.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	route, ok := s.routes[inputDenom+"|"+outputDenom]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return route, nil
}

func (s *memRouteStore) Set(_ context.Context, inputDenom, outputDenom string, route models.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[inputDenom+"|"+outputDenom] = route
	return nil
}

func (s *memRouteStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.routes)
}

// memOwnerStore holds a single owner identity
type memOwnerStore struct {
	mu    sync.Mutex
	owner string
}

func (s *memOwnerStore) Get(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner == "" {
		return "", storage.ErrNotFound
	}
	return s.owner, nil
}

func (s *memOwnerStore) Transfer(_ context.Context, newOwner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = newOwner
	return nil
}

// memPendingStore allocates monotone correlation ids and stores entries in a map
type memPendingStore struct {
	mu      sync.Mutex
	seq     uint64
	entries map[uint64]*models.PendingSwap
}

func newMemPendingStore() *memPendingStore {
	return &memPendingStore{entries: make(map[uint64]*models.PendingSwap)}
}

func (s *memPendingStore) NextCorrelationID(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq, nil
}

func (s *memPendingStore) Put(_ context.Context, swap *models.PendingSwap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[swap.CorrelationID]; ok {
		return fmt.Errorf("pending swap %d already exists", swap.CorrelationID)
	}
	s.entries[swap.CorrelationID] = swap
	return nil
}

func (s *memPendingStore) Take(_ context.Context, correlationID uint64) (*models.PendingSwap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	swap, ok := s.entries[correlationID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	delete(s.entries, correlationID)
	return swap, nil
}

func (s *memPendingStore) Delete(_ context.Context, correlationID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, correlationID)
	return nil
}

func (s *memPendingStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// fakeVenue records submitted instructions and transfers
type fakeVenue struct {
	mu          sync.Mutex
	submitErr   error
	transferErr error
	submitted   []models.TradeInstruction
	transfers   []transfer
}

type transfer struct {
	recipient string
	asset     models.Asset
}

func (v *fakeVenue) SubmitSwap(_ context.Context, instruction models.TradeInstruction) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.submitErr != nil {
		return v.submitErr
	}
	v.submitted = append(v.submitted, instruction)
	return nil
}

func (v *fakeVenue) Transfer(_ context.Context, recipient string, asset models.Asset) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.transferErr != nil {
		return v.transferErr
	}
	v.transfers = append(v.transfers, transfer{recipient: recipient, asset: asset})
	return nil
}

type orchestratorFixture struct {
	orch    *Orchestrator
	owner   *memOwnerStore
	routes  *memRouteStore
	pending *memPendingStore
	venue   *fakeVenue
}

func newOrchestratorFixture() *orchestratorFixture {
	owner := &memOwnerStore{owner: "alice"}
	routes := newMemRouteStore()
	pending := newMemPendingStore()
	venue := &fakeVenue{}

	twap := &fakeTwap{prices: map[string]decimal.Decimal{
		"1/uosmo/uatom": decimal.NewFromInt(10),
		"2/uion/uosmo":  decimal.NewFromInt(2),
	}}

	orch := NewOrchestrator(OrchestratorConfig{
		Owner:     owner,
		Routes:    routes,
		Pending:   pending,
		Validator: NewValidator(&fakeLiquidity{pools: testPools()}),
		Slippage:  NewSlippageCalculator(routes, twap),
		Venue:     venue,
		Transfers: venue,
		Identity:  "router",
	})

	return &orchestratorFixture{
		orch:    orch,
		owner:   owner,
		routes:  routes,
		pending: pending,
		venue:   venue,
	}
}

func (f *orchestratorFixture) configureAtomOsmo(t *testing.T) {
	t.Helper()
	err := f.orch.SetRoute(context.Background(), "alice", "uatom", "uosmo", models.Route{
		{PoolID: 1, TokenOutDenom: "uosmo"},
	})
	require.NoError(t, err)
}

func minOutputAmount(v uint64) Slippage {
	return Slippage{MinOutputAmount: &v}
}

func maxPriceImpact(s string) Slippage {
	d := decimal.RequireFromString(s)
	return Slippage{MaxPriceImpact: &d}
}

func TestOrchestrator_SetRouteUnauthorized(t *testing.T) {
	f := newOrchestratorFixture()

	err := f.orch.SetRoute(context.Background(), "mallory", "uatom", "uosmo", models.Route{
		{PoolID: 1, TokenOutDenom: "uosmo"},
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, f.routes.size(), "a rejected call must leave the table unchanged")
}

func TestOrchestrator_SetRouteInvalidRouteLeavesTableUnchanged(t *testing.T) {
	f := newOrchestratorFixture()

	err := f.orch.SetRoute(context.Background(), "alice", "uatom", "uusdc", models.Route{
		{PoolID: 1, TokenOutDenom: "uusdc"},
	})
	require.Error(t, err)

	var invalid *InvalidRouteError
	assert.ErrorAs(t, err, &invalid)
	assert.Zero(t, f.routes.size())
}

func TestOrchestrator_SetRouteOverwrites(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()
	f.configureAtomOsmo(t)

	// Setting the same pair again overwrites, not appends
	require.NoError(t, f.orch.SetRoute(ctx, "alice", "uatom", "uosmo", models.Route{
		{PoolID: 1, TokenOutDenom: "uosmo"},
	}))

	route, err := f.orch.GetRoute(ctx, "uatom", "uosmo")
	require.NoError(t, err)
	assert.Len(t, route, 1)
	assert.Equal(t, uint64(1), route[0].PoolID)
}

func TestOrchestrator_GetRouteNotFound(t *testing.T) {
	f := newOrchestratorFixture()

	_, err := f.orch.GetRoute(context.Background(), "uatom", "uusdc")
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

func TestOrchestrator_TransferOwnership(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	// Non-owner cannot transfer
	err := f.orch.TransferOwnership(ctx, "mallory", "mallory")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Owner hands off to bob
	require.NoError(t, f.orch.TransferOwnership(ctx, "alice", "bob"))

	owner, err := f.orch.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", owner)

	// alice lost the role
	err = f.orch.SetRoute(ctx, "alice", "uatom", "uosmo", models.Route{
		{PoolID: 1, TokenOutDenom: "uosmo"},
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestOrchestrator_SwapIssuesInstruction(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()
	f.configureAtomOsmo(t)

	receipt, err := f.orch.Swap(ctx, SwapRequest{
		Sender:        "bob",
		Funds:         []models.Asset{asset("uatom", 100)},
		TokenIn:       asset("uatom", 100),
		TokenOutDenom: "uosmo",
		Slippage:      minOutputAmount(900),
	})
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, uint64(1), receipt.CorrelationID)
	assert.Equal(t, asset("uosmo", 900), receipt.TokenOutMinAmount)

	// One pending entry, one accepted instruction
	assert.Equal(t, 1, f.pending.size())
	require.Len(t, f.venue.submitted, 1)
	instr := f.venue.submitted[0]
	assert.Equal(t, "router", instr.Sender)
	assert.Equal(t, uint64(900), instr.TokenOutMinAmount)
}

func TestOrchestrator_SwapCorrelationIDsAreUnique(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()
	f.configureAtomOsmo(t)

	req := SwapRequest{
		Sender:        "bob",
		Funds:         []models.Asset{asset("uatom", 100)},
		TokenIn:       asset("uatom", 100),
		TokenOutDenom: "uosmo",
		Slippage:      minOutputAmount(1),
	}

	first, err := f.orch.Swap(ctx, req)
	require.NoError(t, err)
	second, err := f.orch.Swap(ctx, req)
	require.NoError(t, err)

	assert.NotEqual(t, first.CorrelationID, second.CorrelationID)
	assert.Equal(t, 2, f.pending.size())
}

func TestOrchestrator_SwapPriceImpactSlippage(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()
	f.configureAtomOsmo(t)

	receipt, err := f.orch.Swap(ctx, SwapRequest{
		Sender:        "bob",
		Funds:         []models.Asset{asset("uatom", 100)},
		TokenIn:       asset("uatom", 100),
		TokenOutDenom: "uosmo",
		Slippage:      maxPriceImpact("0.02"),
	})
	require.NoError(t, err)
	// 100 * 10 * 0.98 = 980
	assert.Equal(t, uint64(980), receipt.TokenOutMinAmount.Amount)
}

func TestOrchestrator_SwapInsufficientFunds(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()
	f.configureAtomOsmo(t)

	_, err := f.orch.Swap(ctx, SwapRequest{
		Sender:        "bob",
		Funds:         []models.Asset{asset("uatom", 50)},
		TokenIn:       asset("uatom", 100),
		TokenOutDenom: "uosmo",
		Slippage:      minOutputAmount(1),
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Zero(t, f.pending.size())
	assert.Empty(t, f.venue.submitted)
}

func TestOrchestrator_SwapUnconfiguredPair(t *testing.T) {
	f := newOrchestratorFixture()

	_, err := f.orch.Swap(context.Background(), SwapRequest{
		Sender:        "bob",
		Funds:         []models.Asset{asset("uatom", 100)},
		TokenIn:       asset("uatom", 100),
		TokenOutDenom: "uusdc",
		Slippage:      minOutputAmount(1),
	})
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

func TestOrchestrator_SwapRejectsAmbiguousSlippage(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()
	f.configureAtomOsmo(t)

	floor := uint64(900)
	impact := decimal.RequireFromString("0.02")

	_, err := f.orch.Swap(ctx, SwapRequest{
		Sender:        "bob",
		Funds:         []models.Asset{asset("uatom", 100)},
		TokenIn:       asset("uatom", 100),
		TokenOutDenom: "uosmo",
		Slippage:      Slippage{MinOutputAmount: &floor, MaxPriceImpact: &impact},
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.orch.Swap(ctx, SwapRequest{
		Sender:        "bob",
		Funds:         []models.Asset{asset("uatom", 100)},
		TokenIn:       asset("uatom", 100),
		TokenOutDenom: "uosmo",
		Slippage:      Slippage{},
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestOrchestrator_SwapSubmitFailureRollsBackPending(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()
	f.configureAtomOsmo(t)

	f.venue.submitErr = fmt.Errorf("venue rejected instruction")

	_, err := f.orch.Swap(ctx, SwapRequest{
		Sender:        "bob",
		Funds:         []models.Asset{asset("uatom", 100)},
		TokenIn:       asset("uatom", 100),
		TokenOutDenom: "uosmo",
		Slippage:      minOutputAmount(1),
	})
	require.Error(t, err)
	assert.Zero(t, f.pending.size(), "a failed submit must not leave a pending entry")
}

func TestOrchestrator_SettlementForwardsProceeds(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()
	f.configureAtomOsmo(t)

	receipt, err := f.orch.Swap(ctx, SwapRequest{
		Sender:        "bob",
		Funds:         []models.Asset{asset("uatom", 100)},
		TokenIn:       asset("uatom", 100),
		TokenOutDenom: "uosmo",
		Slippage:      minOutputAmount(900),
	})
	require.NoError(t, err)

	ev, err := f.orch.OnTradeResult(ctx, &models.TradeResult{
		CorrelationID: receipt.CorrelationID,
		Success:       true,
		AmountOut:     "950",
	})
	require.NoError(t, err)
	require.NotNil(t, ev)

	// Proceeds go to the original caller, denominated in the route's terminal denom
	require.Len(t, f.venue.transfers, 1)
	assert.Equal(t, "bob", f.venue.transfers[0].recipient)
	assert.Equal(t, asset("uosmo", 950), f.venue.transfers[0].asset)

	assert.Equal(t, receipt.CorrelationID, ev.CorrelationID)
	assert.Equal(t, uint64(950), ev.AmountOut)
	assert.Equal(t, uint64(900), ev.MinAmountOut)
	assert.Zero(t, f.pending.size())
}

func TestOrchestrator_SettlementIsAtMostOnce(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()
	f.configureAtomOsmo(t)

	receipt, err := f.orch.Swap(ctx, SwapRequest{
		Sender:        "bob",
		Funds:         []models.Asset{asset("uatom", 100)},
		TokenIn:       asset("uatom", 100),
		TokenOutDenom: "uosmo",
		Slippage:      minOutputAmount(1),
	})
	require.NoError(t, err)

	result := &models.TradeResult{CorrelationID: receipt.CorrelationID, Success: true, AmountOut: "950"}

	_, err = f.orch.OnTradeResult(ctx, result)
	require.NoError(t, err)

	// Redelivery must not transfer again
	_, err = f.orch.OnTradeResult(ctx, result)
	assert.ErrorIs(t, err, ErrUnknownCorrelation)
	assert.Len(t, f.venue.transfers, 1)
}

func TestOrchestrator_SettlementUnknownCorrelation(t *testing.T) {
	f := newOrchestratorFixture()

	_, err := f.orch.OnTradeResult(context.Background(), &models.TradeResult{
		CorrelationID: 42,
		Success:       true,
		AmountOut:     "1",
	})
	assert.ErrorIs(t, err, ErrUnknownCorrelation)
}

func TestOrchestrator_SettlementVenueFailure(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()
	f.configureAtomOsmo(t)

	receipt, err := f.orch.Swap(ctx, SwapRequest{
		Sender:        "bob",
		Funds:         []models.Asset{asset("uatom", 100)},
		TokenIn:       asset("uatom", 100),
		TokenOutDenom: "uosmo",
		Slippage:      minOutputAmount(1),
	})
	require.NoError(t, err)

	_, err = f.orch.OnTradeResult(ctx, &models.TradeResult{
		CorrelationID: receipt.CorrelationID,
		Success:       false,
		Error:         "slippage limit hit",
	})
	require.Error(t, err)

	var failed *SwapFailedError
	assert.ErrorAs(t, err, &failed)
	assert.Contains(t, failed.Reason, "slippage limit hit")

	// The failed swap is no longer pending and nothing was transferred
	assert.Zero(t, f.pending.size())
	assert.Empty(t, f.venue.transfers)
}

func TestOrchestrator_SettlementMalformedAmount(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()
	f.configureAtomOsmo(t)

	receipt, err := f.orch.Swap(ctx, SwapRequest{
		Sender:        "bob",
		Funds:         []models.Asset{asset("uatom", 100)},
		TokenIn:       asset("uatom", 100),
		TokenOutDenom: "uosmo",
		Slippage:      minOutputAmount(1),
	})
	require.NoError(t, err)

	_, err = f.orch.OnTradeResult(ctx, &models.TradeResult{
		CorrelationID: receipt.CorrelationID,
		Success:       true,
		AmountOut:     "not-a-number",
	})
	assert.ErrorIs(t, err, ErrMalformedVenueResponse)
	assert.Empty(t, f.venue.transfers)
}
