// Package db owns the analytical store: table and materialized-view DDL,
// batched idempotent inserts, checkpoints, and the admin operations
// (rollback, gap detection) exposed through the CLI.
package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hydration-network/hydrax/pkg/db/clickhouse"
	"github.com/hydration-network/hydrax/pkg/db/models"
	"github.com/hydration-network/hydrax/pkg/utils"
)

// dedupWindow is the number of recent insert blocks the server remembers per
// table when matching insert_deduplication_token. Retried flushes land well
// inside it.
const dedupWindow = 1000

type DB struct {
	*clickhouse.Client
}

// New connects to the store and ensures every table and materialized view
// exists.
func New(ctx context.Context, logger *zap.Logger) (*DB, error) {
	name := utils.Env("CLICKHOUSE_DATABASE", "hydration_prices")
	client, err := clickhouse.New(ctx, logger.Named("db"), name)
	if err != nil {
		return nil, err
	}
	db := &DB{Client: client}
	if err := db.Init(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// Init creates the five row tables and the candle aggregation tables/views.
func (db *DB) Init(ctx context.Context) error {
	for _, init := range []func(context.Context) error{
		db.initBlocks,
		db.initPrices,
		db.initAssets,
		db.initRuntimeUpgrades,
		db.initIndexerState,
		db.initCandles,
	} {
		if err := init(ctx); err != nil {
			return err
		}
	}
	return nil
}

// createRowTable renders the shared CREATE TABLE shape: ReplacingMergeTree
// with an optional version column and a deduplication window sized for
// retried batch inserts.
func (db *DB) createRowTable(ctx context.Context, table string, columns []models.ColumnDef, versionCol, orderBy string) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			%s
		) ENGINE = %s
		ORDER BY %s
		SETTINGS non_replicated_deduplication_window = %d
	`, db.Name, table, models.ColumnsToSchemaSQL(columns),
		clickhouse.Engine(clickhouse.ReplacingMergeTree, versionCol), orderBy, dedupWindow)
	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	return nil
}
