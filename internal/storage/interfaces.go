package storage

import (
	"context"
	"errors"
	"io"

	"github.com/p0mvn/swaprouter/internal/models"
)

// ErrNotFound is returned by keyed stores for absent entries.
var ErrNotFound = errors.New("not found")

// SettlementCache defines the interface for caching settlement data
type SettlementCache interface {
	// AddRecentSettlement adds a settlement to the recent settlements list
	AddRecentSettlement(ctx context.Context, ev *models.SettlementEvent) error

	// GetRecentSettlements retrieves the most recent settlements
	GetRecentSettlements(ctx context.Context, limit int64) ([]*models.SettlementEvent, error)

	// PublishSettlement publishes a settlement event to the Pub/Sub channels
	PublishSettlement(ctx context.Context, ev *models.SettlementEvent) error

	// Ping checks if the cache is reachable
	Ping(ctx context.Context) error

	// Close closes the cache connection
	io.Closer
}

// SettlementStore defines the interface for persistent settlement history
type SettlementStore interface {
	// InsertSettlement inserts a settlement event into the store
	InsertSettlement(ctx context.Context, ev *models.SettlementEvent) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	// Close closes the store connection
	io.Closer
}

// ResultHandler is a function that processes venue trade results
type ResultHandler func(*models.TradeResult)

// ResultProvider defines the interface for trade-result delivery. The host
// invokes the handler at most once per correlation id.
type ResultProvider interface {
	// Start begins delivering trade results
	Start(ctx context.Context, handler ResultHandler) error

	// Stop stops the result provider
	Stop() error
}
