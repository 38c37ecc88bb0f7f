package db

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/hydration-network/hydrax/pkg/db/clickhouse"
	"github.com/hydration-network/hydrax/pkg/db/models"
)

func (db *DB) initPrices(ctx context.Context) error {
	// Version column block_height: reprocessing a block replaces its rows.
	return db.createRowTable(ctx, models.PricesTableName, models.PriceColumns,
		"block_height", "(asset_id, block_height)")
}

// InsertPrices writes one batch of price rows. The dedup token makes a retry
// of the same batch a server-side no-op.
func (db *DB) InsertPrices(ctx context.Context, token string, rows []*models.Price) error {
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`,
		db.Name, models.PricesTableName, models.ColumnsToNameList(models.PriceColumns))
	batch, err := db.PrepareBatch(clickhouse.WithDedupToken(ctx, token), query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, row := range rows {
		err = batch.Append(
			row.AssetID,
			row.BlockHeight,
			row.UsdtPrice,
			row.NativeVolumeBuy,
			row.NativeVolumeSell,
			row.UsdtVolumeBuy,
			row.UsdtVolumeSell,
		)
		if err != nil {
			return err
		}
	}
	return batch.Send()
}

// LoadPrices reads back price rows for a height range, used by the
// volume-only replay pass. Volume columns are not needed there.
func (db *DB) LoadPrices(ctx context.Context, from, to uint32) ([]*models.Price, error) {
	query := fmt.Sprintf(`
		SELECT asset_id, block_height, usdt_price
		FROM "%s"."%s" FINAL
		WHERE block_height >= ? AND block_height <= ? AND usdt_price > 0
		ORDER BY block_height, asset_id
	`, db.Name, models.PricesTableName)

	rows, err := db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("load prices [%d,%d]: %w", from, to, err)
	}
	defer rows.Close()

	var out []*models.Price
	for rows.Next() {
		row := &models.Price{}
		if err := rows.Scan(&row.AssetID, &row.BlockHeight, &row.UsdtPrice); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
