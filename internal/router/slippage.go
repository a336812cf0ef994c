package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/p0mvn/swaprouter/internal/models"
	"github.com/p0mvn/swaprouter/internal/storage"
)

// twapWindow is the lookback used when composing per-hop prices. A one second
// window favors the freshest venue TWAP over a long-horizon average.
const twapWindow = time.Second

// maxMagnitude caps composed prices and scaled amounts at 38 integer digits,
// standing in for 128-bit fixed-point overflow semantics. Exceeding it is a
// hard failure, never a silent wraparound.
var maxMagnitude = decimal.New(1, 38)

// TwapSource answers time-weighted average price queries: the price of
// baseDenom expressed in quoteDenom on poolID, averaged over [start, end].
type TwapSource interface {
	ArithmeticTwap(ctx context.Context, poolID uint64, baseDenom, quoteDenom string, start, end time.Time) (decimal.Decimal, error)
}

// RouteSource resolves the configured route for a pair. Implementations
// return ErrRouteNotFound for unconfigured pairs.
type RouteSource interface {
	Get(ctx context.Context, inputDenom, outputDenom string) (models.Route, error)
}

// SlippageCalculator derives a minimum acceptable output amount from TWAP
// history across a route's hops and a price-impact tolerance.
type SlippageCalculator struct {
	routes RouteSource
	twap   TwapSource
}

func NewSlippageCalculator(routes RouteSource, twap TwapSource) *SlippageCalculator {
	return &SlippageCalculator{routes: routes, twap: twap}
}

// MinOutput converts tokenIn into a floor amount of outputDenom as of asOf.
// tolerance is the maximum allowed price impact as a fraction in [0, 1);
// tolerance zero yields the raw composed-price conversion. The result is
// truncated, never rounded up, so the floor never exceeds the exact
// conversion.
func (c *SlippageCalculator) MinOutput(ctx context.Context, tokenIn models.Asset, outputDenom string, tolerance decimal.Decimal, asOf time.Time) (models.Asset, error) {
	if tolerance.IsNegative() || tolerance.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return models.Asset{}, fmt.Errorf("%w: tolerance %s outside [0, 1)", ErrInvalidArgument, tolerance)
	}

	route, err := c.routes.Get(ctx, tokenIn.Denom, outputDenom)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Asset{}, ErrRouteNotFound
	}
	if err != nil {
		return models.Asset{}, err
	}
	if len(route) == 0 {
		return models.Asset{}, &InvalidRouteError{Reason: "configured route is empty"}
	}

	start := asOf.Add(-twapWindow)

	// Compose the price of 1 unit of tokenIn.Denom expressed in outputDenom by
	// multiplying per-hop TWAPs, re-denominating the quote at every hop.
	price := decimal.NewFromInt(1)
	quoteDenom := tokenIn.Denom
	for _, hop := range route {
		p, err := c.twap.ArithmeticTwap(ctx, hop.PoolID, hop.TokenOutDenom, quoteDenom, start, asOf)
		if err != nil {
			return models.Asset{}, &OracleError{Err: err}
		}
		if p.IsNegative() {
			return models.Asset{}, &OracleError{Err: fmt.Errorf("negative twap %s for pool %d", p, hop.PoolID)}
		}

		price = price.Mul(p)
		if price.GreaterThanOrEqual(maxMagnitude) {
			return models.Asset{}, fmt.Errorf("%w: composed price for pool %d", ErrArithmeticOverflow, hop.PoolID)
		}
		quoteDenom = hop.TokenOutDenom
	}

	adjusted := price.Mul(decimal.NewFromInt(1).Sub(tolerance))

	minOut := decimal.NewFromUint64(tokenIn.Amount).Mul(adjusted).Floor()
	if minOut.GreaterThanOrEqual(maxMagnitude) {
		return models.Asset{}, fmt.Errorf("%w: minimum output amount", ErrArithmeticOverflow)
	}

	amount := minOut.BigInt()
	if !amount.IsUint64() {
		return models.Asset{}, fmt.Errorf("%w: minimum output amount exceeds uint64", ErrArithmeticOverflow)
	}

	return models.Asset{Denom: outputDenom, Amount: amount.Uint64()}, nil
}
