package router

import (
	"context"
	"fmt"

	"github.com/p0mvn/swaprouter/internal/models"
)

// LiquiditySource answers total-liquidity queries for venue pools.
type LiquiditySource interface {
	PoolLiquidity(ctx context.Context, poolID uint64) ([]models.Asset, error)
}

// Validator checks that a candidate route is liquidity-consistent end to end.
// Validation runs at configure time only; liquidity may move between
// configuration and use.
type Validator struct {
	liquidity LiquiditySource
}

func NewValidator(liquidity LiquiditySource) *Validator {
	return &Validator{liquidity: liquidity}
}

// Validate walks the route left to right, checking every hop's pool holds both
// the denom being swapped in and the denom being swapped out, and that the
// final hop produces outputDenom. Empty routes and identity pairs are rejected
// outright rather than passing through as no-op swaps.
func (v *Validator) Validate(ctx context.Context, inputDenom, outputDenom string, route models.Route) error {
	if len(route) == 0 {
		return &InvalidRouteError{Reason: "route must contain at least one hop"}
	}
	if inputDenom == outputDenom {
		return &InvalidRouteError{Reason: "input and output denom must differ"}
	}

	currentDenomIn := inputDenom
	for _, hop := range route {
		liquidity, err := v.liquidity.PoolLiquidity(ctx, hop.PoolID)
		if err != nil {
			return fmt.Errorf("query pool %d liquidity: %w", hop.PoolID, err)
		}

		if !hasDenom(liquidity, currentDenomIn) {
			return &InvalidRouteError{
				Reason: fmt.Sprintf("denom %s is not in pool id %d", currentDenomIn, hop.PoolID),
			}
		}
		if !hasDenom(liquidity, hop.TokenOutDenom) {
			return &InvalidRouteError{
				Reason: fmt.Sprintf("denom %s is not in pool id %d", hop.TokenOutDenom, hop.PoolID),
			}
		}

		// The denom swapped in on the next hop is this hop's output.
		currentDenomIn = hop.TokenOutDenom
	}

	if currentDenomIn != outputDenom {
		return &InvalidRouteError{Reason: "last denom doesn't match"}
	}

	return nil
}

func hasDenom(liquidity []models.Asset, denom string) bool {
	for _, a := range liquidity {
		if a.Denom == denom {
			return true
		}
	}
	return false
}
