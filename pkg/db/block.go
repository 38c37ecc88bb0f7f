package db

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/hydration-network/hydrax/pkg/db/clickhouse"
	"github.com/hydration-network/hydrax/pkg/db/models"
)

func (db *DB) initBlocks(ctx context.Context) error {
	return db.createRowTable(ctx, models.BlocksTableName, models.BlockColumns,
		"", "block_height")
}

// InsertBlocks writes one batch of block metadata rows. Callers must flush
// blocks before prices: the candle materialized views join prices against
// this table at insert time.
func (db *DB) InsertBlocks(ctx context.Context, token string, rows []*models.Block) error {
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`,
		db.Name, models.BlocksTableName, models.ColumnsToNameList(models.BlockColumns))
	batch, err := db.PrepareBatch(clickhouse.WithDedupToken(ctx, token), query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, row := range rows {
		if err := batch.Append(row.BlockHeight, row.BlockTimestamp, row.SpecVersion); err != nil {
			return err
		}
	}
	return batch.Send()
}
