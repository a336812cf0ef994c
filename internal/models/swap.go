package models

import (
	"fmt"
	"time"
)

// Asset is a denominated amount. Amounts are integer base units of the denom.
type Asset struct {
	Denom  string `json:"denom"`
	Amount uint64 `json:"amount,string"`
}

func (a Asset) String() string {
	return fmt.Sprintf("%d%s", a.Amount, a.Denom)
}

// Hop is one trade leg: swap the current denom for TokenOutDenom on pool PoolID.
type Hop struct {
	PoolID        uint64 `json:"pool_id"`
	TokenOutDenom string `json:"token_out_denom"`
}

// Route is an ordered hop sequence converting one denom into another.
// Hop i consumes the denom produced by hop i-1 (the route's input denom for
// i=0); the final hop produces the route's declared output denom.
type Route []Hop

// FinalDenom returns the output denom of the last hop, or "" for an empty route.
func (r Route) FinalDenom() string {
	if len(r) == 0 {
		return ""
	}
	return r[len(r)-1].TokenOutDenom
}

// TradeInstruction is the exact-amount-in swap message issued to the venue.
// The venue executes it asynchronously and reports the outcome under
// CorrelationID.
type TradeInstruction struct {
	CorrelationID     uint64 `json:"correlation_id"`
	Sender            string `json:"sender"` // executing identity (the router), not the caller
	Routes            Route  `json:"routes"`
	TokenIn           Asset  `json:"token_in"`
	TokenOutDenom     string `json:"token_out_denom"`
	TokenOutMinAmount uint64 `json:"token_out_min_amount,string"`
}

// PendingSwap bridges instruction issuance and result delivery. It records the
// original caller so proceeds are forwarded to them, not to the router.
type PendingSwap struct {
	CorrelationID  uint64           `json:"correlation_id"`
	OriginalSender string           `json:"original_sender"`
	Instruction    TradeInstruction `json:"instruction"`
	CreatedAt      time.Time        `json:"created_at"`
}

// TradeResult is the venue's asynchronous report for an issued instruction.
// AmountOut is an integer string on success; Error is set on venue failure.
type TradeResult struct {
	CorrelationID uint64 `json:"correlation_id"`
	Success       bool   `json:"success"`
	AmountOut     string `json:"amount_out,omitempty"`
	Error         string `json:"error,omitempty"`
}

// SettlementEvent is the audit-trail record emitted after a swap settles.
type SettlementEvent struct {
	CorrelationID uint64    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
	Sender        string    `json:"sender"`
	Pair          string    `json:"pair"`
	TokenIn       string    `json:"token_in"`
	TokenOut      string    `json:"token_out"`
	AmountIn      uint64    `json:"amount_in,string"`
	AmountOut     uint64    `json:"amount_out,string"`
	MinAmountOut  uint64    `json:"min_amount_out,string"`
	Hops          int       `json:"hops"`
}
