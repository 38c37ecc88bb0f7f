package db

import (
	"context"
	"fmt"
	"time"

	"github.com/hydration-network/hydrax/pkg/db/clickhouse"
	"github.com/hydration-network/hydrax/pkg/db/models"
)

func (db *DB) initIndexerState(ctx context.Context) error {
	return db.createRowTable(ctx, models.IndexerStateTableName, models.IndexerStateColumns,
		"updated_at", "id")
}

// ReadCheckpoint returns the last finalized block recorded for the given
// checkpoint identity. The second return is false when no checkpoint exists.
func (db *DB) ReadCheckpoint(ctx context.Context, id string) (uint32, bool, error) {
	query := fmt.Sprintf(`
		SELECT last_block
		FROM "%s"."%s" FINAL
		WHERE id = ?
	`, db.Name, models.IndexerStateTableName)

	var lastBlock uint32
	if err := db.QueryRow(ctx, query, id).Scan(&lastBlock); err != nil {
		if clickhouse.IsNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read checkpoint %s: %w", id, err)
	}
	return lastBlock, true, nil
}

// SaveCheckpoint records lastBlock for the given checkpoint identity.
func (db *DB) SaveCheckpoint(ctx context.Context, id string, lastBlock uint32) error {
	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`,
		db.Name, models.IndexerStateTableName, models.ColumnsToNameList(models.IndexerStateColumns))
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	if err := batch.Append(id, lastBlock, time.Now().UTC()); err != nil {
		_ = batch.Abort()
		return err
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("save checkpoint %s=%d: %w", id, lastBlock, err)
	}
	return nil
}
