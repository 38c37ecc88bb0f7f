package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hydration-network/hydrax/pkg/db/clickhouse"
	"github.com/hydration-network/hydrax/pkg/db/models"
)

// Gap is a missing [From, To] height range in the prices table.
type Gap struct {
	From uint32 `ch:"from_h"`
	To   uint32 `ch:"to_h"`
}

// RollbackToBlock deletes every row at height >= target from prices, blocks,
// and runtime_upgrades, drops the candle buckets whose interval intersects
// the removed range, and resets the main checkpoint to target-1. The
// canonical chain replaying those heights rebuilds everything.
func (db *DB) RollbackToBlock(ctx context.Context, target uint32) error {
	// Candle buckets are keyed by timestamp, so resolve the earliest
	// timestamp being removed before the block rows disappear.
	var cutoff time.Time
	haveCutoff := true
	tsQuery := fmt.Sprintf(`
		SELECT min(block_timestamp)
		FROM "%s"."%s"
		WHERE block_height >= ?
	`, db.Name, models.BlocksTableName)
	if err := db.QueryRow(ctx, tsQuery, target).Scan(&cutoff); err != nil {
		if !clickhouse.IsNoRows(err) {
			return fmt.Errorf("resolve rollback cutoff: %w", err)
		}
		haveCutoff = false
	}
	// An empty selection yields the epoch, not an error.
	if cutoff.IsZero() || cutoff.Unix() <= 0 {
		haveCutoff = false
	}

	for _, table := range []string{
		models.PricesTableName,
		models.BlocksTableName,
		models.RuntimeUpgradesTableName,
	} {
		query := fmt.Sprintf(
			`ALTER TABLE "%s"."%s" DELETE WHERE block_height >= ? SETTINGS mutations_sync = 2`,
			db.Name, table)
		if err := db.Exec(ctx, query, target); err != nil {
			return fmt.Errorf("rollback %s: %w", table, err)
		}
	}

	if haveCutoff {
		for _, iv := range CandleIntervals {
			// The bucket containing the cutoff is partially stale and is
			// dropped whole. The views aggregate only rows inserted from
			// here on, so the surviving rows below target are not
			// aggregated into that bucket again.
			query := fmt.Sprintf(
				`ALTER TABLE "%s"."%s" DELETE WHERE bucket >= %s(?) SETTINGS mutations_sync = 2`,
				db.Name, iv.Table, iv.BucketExpr)
			if err := db.Exec(ctx, query, cutoff); err != nil {
				return fmt.Errorf("rollback %s: %w", iv.Table, err)
			}
		}
	}

	if target == 0 {
		// Nothing precedes genesis: drop the checkpoint so the next run
		// starts from scratch.
		query := fmt.Sprintf(
			`ALTER TABLE "%s"."%s" DELETE WHERE id = ? SETTINGS mutations_sync = 2`,
			db.Name, models.IndexerStateTableName)
		return db.Exec(ctx, query, models.CheckpointMain)
	}
	if err := db.SaveCheckpoint(ctx, models.CheckpointMain, target-1); err != nil {
		return err
	}

	db.Logger.Info("Rollback complete",
		zap.Uint32("target", target),
		zap.Uint32("checkpoint", target-1))
	return nil
}

// DetectGaps scans distinct price heights for missing ranges using a window
// neighbor comparison. Diagnostic only; the caller decides what to do with
// the result.
func (db *DB) DetectGaps(ctx context.Context) ([]Gap, error) {
	query := fmt.Sprintf(`
		SELECT CAST(assumeNotNull(prev_h) + 1 AS UInt32) AS from_h, CAST(h - 1 AS UInt32) AS to_h
		FROM (
		  SELECT
		    height AS h,
		    lagInFrame(toNullable(height)) OVER (
		      ORDER BY height
		      ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW
		    ) AS prev_h
		  FROM (
		    SELECT DISTINCT block_height AS height
		    FROM "%s"."%s"
		  )
		  ORDER BY height
		)
		WHERE prev_h IS NOT NULL AND h > prev_h + 1
		ORDER BY from_h
	`, db.Name, models.PricesTableName)

	var gaps []Gap
	if err := db.Select(ctx, &gaps, query); err != nil {
		return nil, fmt.Errorf("detect gaps: %w", err)
	}
	return gaps, nil
}
