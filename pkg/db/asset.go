package db

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/hydration-network/hydrax/pkg/db/clickhouse"
	"github.com/hydration-network/hydrax/pkg/db/models"
)

func (db *DB) initAssets(ctx context.Context) error {
	// No explicit version column: the newest insert for an asset id wins on
	// merge, which is what metadata updates want.
	return db.createRowTable(ctx, models.AssetsTableName, models.AssetColumns,
		"", "asset_id")
}

// InsertAssets writes one batch of asset metadata rows.
func (db *DB) InsertAssets(ctx context.Context, token string, rows []*models.Asset) error {
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`,
		db.Name, models.AssetsTableName, models.ColumnsToNameList(models.AssetColumns))
	batch, err := db.PrepareBatch(clickhouse.WithDedupToken(ctx, token), query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, row := range rows {
		if err := batch.Append(row.AssetID, row.Symbol, row.Name, row.Decimals); err != nil {
			return err
		}
	}
	return batch.Send()
}
