package cache

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
	"github.com/sirupsen/logrus"
)

const createPoolMetadataTable = `
	CREATE TABLE IF NOT EXISTS pool_metadata (
		pool_id        String,
		variant        LowCardinality(String),
		owner          String,
		base_mint      String,
		base_vault     String,
		base_decimals  UInt8,
		quote_mint     String,
		quote_vault    String,
		quote_decimals UInt8,
		resolved_at    DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(resolved_at)
	ORDER BY pool_id
`

// ClickHouseStore keeps pool metadata in ClickHouse. Rows are replaced per
// pool_id, newest resolved_at wins.
type ClickHouseStore struct {
	conn   driver.Conn
	logger *logrus.Logger
}

// ClickHouseConfig holds connection settings for the metadata store
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

// NewClickHouseStore connects, pings and makes sure the table exists
func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

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
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if err := conn.Exec(ctx, createPoolMetadataTable); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create pool_metadata table: %w", err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"addr":     cfg.Addr,
		"database": cfg.Database,
	}).Info("connected to ClickHouse")

	return &ClickHouseStore{conn: conn, logger: cfg.Logger}, nil
}

// UpsertPool records the snapshot's metadata
func (c *ClickHouseStore) UpsertPool(ctx context.Context, snap *models.PoolSnapshot) error {
	query := `
		INSERT INTO pool_metadata (
			pool_id, variant, owner, base_mint, base_vault, base_decimals,
			quote_mint, quote_vault, quote_decimals, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	row := snap.Row()
	err := c.conn.Exec(ctx, query,
		row.PoolID,
		row.Variant,
		row.Owner,
		row.BaseMint,
		row.BaseVault,
		row.BaseDecimals,
		row.QuoteMint,
		row.QuoteVault,
		row.QuoteDecimals,
		row.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pool: %w", err)
	}
	return nil
}

// ListPools returns up to limit pools, most recently resolved first
func (c *ClickHouseStore) ListPools(ctx context.Context, limit int) ([]*models.PoolRecord, error) {
	query := `
		SELECT
			pool_id, variant, owner, base_mint, base_vault, base_decimals,
			quote_mint, quote_vault, quote_decimals, resolved_at
		FROM pool_metadata FINAL
		ORDER BY resolved_at DESC
		LIMIT ?
	`

	var rows []models.PoolRecord
	if err := c.conn.Select(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}

	out := make([]*models.PoolRecord, 0, len(rows))
	for i := range rows {
		out = append(out, &rows[i])
	}
	return out, nil
}

// Ping checks if ClickHouse is reachable
func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the connection
func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
