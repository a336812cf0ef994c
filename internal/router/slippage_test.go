package router

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p0mvn/swaprouter/internal/models"
	"github.com/p0mvn/swaprouter/internal/storage"
)

// fakeTwap serves per-pool prices keyed by "pool/base/quote"
type fakeTwap struct {
	prices map[string]decimal.Decimal
	err    error
}

func (f *fakeTwap) ArithmeticTwap(_ context.Context, poolID uint64, baseDenom, quoteDenom string, _, _ time.Time) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Zero, f.err
	}
	key := fmt.Sprintf("%d/%s/%s", poolID, baseDenom, quoteDenom)
	p, ok := f.prices[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("no twap for %s", key)
	}
	return p, nil
}

// fakeRoutes is an in-memory routing table
type fakeRoutes struct {
	routes map[string]models.Route
}

func (f *fakeRoutes) Get(_ context.Context, inputDenom, outputDenom string) (models.Route, error) {
	route, ok := f.routes[inputDenom+"|"+outputDenom]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return route, nil
}

func newSlippageFixture() *SlippageCalculator {
	routes := &fakeRoutes{routes: map[string]models.Route{
		"uatom|uosmo": {
			{PoolID: 1, TokenOutDenom: "uosmo"},
		},
		"uatom|uusdc": {
			{PoolID: 1, TokenOutDenom: "uosmo"},
			{PoolID: 2, TokenOutDenom: "uusdc"},
		},
	}}
	twap := &fakeTwap{prices: map[string]decimal.Decimal{
		// 1 uatom = 10 uosmo
		"1/uosmo/uatom": decimal.NewFromInt(10),
		// 1 uosmo = 3 uusdc
		"2/uusdc/uosmo": decimal.NewFromInt(3),
	}}
	return NewSlippageCalculator(routes, twap)
}

func TestSlippage_ZeroToleranceIsRawConversion(t *testing.T) {
	c := newSlippageFixture()

	out, err := c.MinOutput(context.Background(), asset("uatom", 100), "uosmo", decimal.Zero, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "uosmo", out.Denom)
	assert.Equal(t, uint64(1000), out.Amount)
}

func TestSlippage_ComposesAcrossHops(t *testing.T) {
	c := newSlippageFixture()

	// 100 uatom * 10 * 3 = 3000 uusdc
	out, err := c.MinOutput(context.Background(), asset("uatom", 100), "uusdc", decimal.Zero, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "uusdc", out.Denom)
	assert.Equal(t, uint64(3000), out.Amount)
}

func TestSlippage_ToleranceLowersFloor(t *testing.T) {
	c := newSlippageFixture()
	ctx := context.Background()
	in := asset("uatom", 100)

	tolerances := []string{"0", "0.01", "0.05", "0.5", "0.99"}
	var prev uint64
	for i, tol := range tolerances {
		impact := decimal.RequireFromString(tol)
		out, err := c.MinOutput(ctx, in, "uosmo", impact, time.Now())
		require.NoError(t, err, "tolerance %s", tol)

		if i > 0 {
			assert.Less(t, out.Amount, prev, "tolerance %s should lower the floor", tol)
		}
		prev = out.Amount
	}

	// 2% on 1000 = 980 exactly
	out, err := c.MinOutput(ctx, in, "uosmo", decimal.RequireFromString("0.02"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint64(980), out.Amount)
}

func TestSlippage_TruncatesTowardZero(t *testing.T) {
	c := newSlippageFixture()

	// 7 uatom * 10 * 0.985 = 68.95, floor 68
	out, err := c.MinOutput(context.Background(), asset("uatom", 7), "uosmo", decimal.RequireFromString("0.015"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint64(68), out.Amount)
}

func TestSlippage_RejectsInvalidTolerance(t *testing.T) {
	c := newSlippageFixture()
	ctx := context.Background()
	in := asset("uatom", 100)

	for _, tol := range []string{"-0.01", "1", "1.5"} {
		_, err := c.MinOutput(ctx, in, "uosmo", decimal.RequireFromString(tol), time.Now())
		assert.ErrorIs(t, err, ErrInvalidArgument, "tolerance %s", tol)
	}
}

func TestSlippage_UnconfiguredPair(t *testing.T) {
	c := newSlippageFixture()

	_, err := c.MinOutput(context.Background(), asset("uosmo", 100), "uatom", decimal.Zero, time.Now())
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

func TestSlippage_OracleFailure(t *testing.T) {
	routes := &fakeRoutes{routes: map[string]models.Route{
		"uatom|uosmo": {{PoolID: 1, TokenOutDenom: "uosmo"}},
	}}
	c := NewSlippageCalculator(routes, &fakeTwap{err: fmt.Errorf("oracle down")})

	_, err := c.MinOutput(context.Background(), asset("uatom", 100), "uosmo", decimal.Zero, time.Now())
	require.Error(t, err)

	var oracleErr *OracleError
	assert.ErrorAs(t, err, &oracleErr)
}

func TestSlippage_Overflow(t *testing.T) {
	huge := decimal.New(1, 30) // 1e30
	routes := &fakeRoutes{routes: map[string]models.Route{
		"uatom|uosmo": {
			{PoolID: 1, TokenOutDenom: "uion"},
			{PoolID: 2, TokenOutDenom: "uosmo"},
		},
	}}
	twap := &fakeTwap{prices: map[string]decimal.Decimal{
		"1/uion/uatom": huge,
		"2/uosmo/uion": huge,
	}}
	c := NewSlippageCalculator(routes, twap)

	_, err := c.MinOutput(context.Background(), asset("uatom", 100), "uosmo", decimal.Zero, time.Now())
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestSlippage_MinOutputExceedsUint64(t *testing.T) {
	routes := &fakeRoutes{routes: map[string]models.Route{
		"uatom|uosmo": {{PoolID: 1, TokenOutDenom: "uosmo"}},
	}}
	twap := &fakeTwap{prices: map[string]decimal.Decimal{
		"1/uosmo/uatom": decimal.New(1, 15), // 1e15
	}}
	c := NewSlippageCalculator(routes, twap)

	// 1e19 in * 1e15 cannot fit a uint64
	_, err := c.MinOutput(context.Background(), asset("uatom", 10_000_000_000_000_000_000), "uosmo", decimal.Zero, time.Now())
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}
