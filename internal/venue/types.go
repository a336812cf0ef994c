package venue

import (
	"github.com/p0mvn/swaprouter/internal/models"
)

// LiquidityResponse is the venue's total-liquidity answer for one pool.
type LiquidityResponse struct {
	PoolID    uint64         `json:"pool_id"`
	Liquidity []models.Asset `json:"liquidity"`
}

// TwapResponse carries the arithmetic TWAP as a decimal string so the caller
// controls parsing precision.
type TwapResponse struct {
	ArithmeticTwap string `json:"arithmetic_twap"`
}

// SubmitResponse acknowledges an accepted trade instruction. The venue
// reports the outcome later under the instruction's correlation id.
type SubmitResponse struct {
	Accepted      bool   `json:"accepted"`
	CorrelationID uint64 `json:"correlation_id"`
}

// TransferRequest moves an amount of denom to recipient.
type TransferRequest struct {
	Recipient string `json:"recipient"`
	Denom     string `json:"denom"`
	Amount    uint64 `json:"amount,string"`
}

// ResultsResponse is a page of trade results ordered by correlation id.
type ResultsResponse struct {
	Results []*models.TradeResult `json:"results"`
}
