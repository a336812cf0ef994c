package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"github.com/p0mvn/swaprouter/internal/models"
)

// ClickHouseStore is the durable settlement history. It also answers TWAP
// queries from a mirrored price-history table for deployments that keep one.
type ClickHouseStore struct {
	conn driver.Conn
}

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseStore{conn: conn}, nil
}

func (c *ClickHouseStore) InsertSettlement(ctx context.Context, ev *models.SettlementEvent) error {
	query := `
		INSERT INTO settlements (
			correlation_id, timestamp, sender, pair, token_in, token_out,
			amount_in, amount_out, min_amount_out, hops
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := c.conn.Exec(ctx, query,
		ev.CorrelationID,
		ev.Timestamp,
		ev.Sender,
		ev.Pair,
		ev.TokenIn,
		ev.TokenOut,
		ev.AmountIn,
		ev.AmountOut,
		ev.MinAmountOut,
		ev.Hops,
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}

	return nil
}

// ArithmeticTwap averages the mirrored spot prices of baseDenom quoted in
// quoteDenom on poolID over [start, end]. Satisfies the same contract as the
// venue's TWAP endpoint.
func (c *ClickHouseStore) ArithmeticTwap(ctx context.Context, poolID uint64, baseDenom, quoteDenom string, start, end time.Time) (decimal.Decimal, error) {
	query := `
		SELECT avg(price)
		FROM pool_prices
		WHERE pool_id = ? AND base_denom = ? AND quote_denom = ?
		  AND timestamp >= ? AND timestamp <= ?
	`

	row := c.conn.QueryRow(ctx, query, poolID, baseDenom, quoteDenom, start, end)

	var avg float64
	if err := row.Scan(&avg); err != nil {
		return decimal.Zero, fmt.Errorf("failed to query twap: %w", err)
	}
	if avg <= 0 {
		return decimal.Zero, fmt.Errorf("no price samples for pool %d in window", poolID)
	}

	return decimal.NewFromFloat(avg), nil
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
