package db

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/hydration-network/hydrax/pkg/db/clickhouse"
	"github.com/hydration-network/hydrax/pkg/db/models"
)

func (db *DB) initRuntimeUpgrades(ctx context.Context) error {
	return db.createRowTable(ctx, models.RuntimeUpgradesTableName, models.RuntimeUpgradeColumns,
		"", "block_height")
}

// InsertRuntimeUpgrades writes one batch of runtime-upgrade rows.
func (db *DB) InsertRuntimeUpgrades(ctx context.Context, token string, rows []*models.RuntimeUpgrade) error {
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`,
		db.Name, models.RuntimeUpgradesTableName, models.ColumnsToNameList(models.RuntimeUpgradeColumns))
	batch, err := db.PrepareBatch(clickhouse.WithDedupToken(ctx, token), query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, row := range rows {
		if err := batch.Append(row.BlockHeight, row.SpecVersion, row.PrevSpecVersion); err != nil {
			return err
		}
	}
	return batch.Send()
}
