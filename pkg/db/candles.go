package db

import (
	"context"
	"fmt"

	"github.com/hydration-network/hydrax/pkg/db/models"
)

// candleInterval describes one OHLCV aggregation granularity.
type candleInterval struct {
	Table      string
	BucketExpr string // ClickHouse function mapping a timestamp to its bucket
}

// CandleIntervals are the granularities materialized by the store. Candles
// are never computed by the pipeline; these views aggregate price rows as
// they are inserted.
var CandleIntervals = []candleInterval{
	{Table: "candles_1m", BucketExpr: "toStartOfMinute"},
	{Table: "candles_1h", BucketExpr: "toStartOfHour"},
	{Table: "candles_1d", BucketExpr: "toStartOfDay"},
}

// initCandles creates, per interval, an AggregatingMergeTree target table and
// the materialized view feeding it. The view joins prices against blocks at
// insert time to obtain the bucket timestamp, which is why every flush must
// land blocks before prices.
func (db *DB) initCandles(ctx context.Context) error {
	for _, iv := range CandleIntervals {
		target := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS "%s"."%s" (
				asset_id UInt32,
				bucket DateTime('UTC'),
				open AggregateFunction(argMin, Decimal(38, 12), UInt32),
				high AggregateFunction(max, Decimal(38, 12)),
				low AggregateFunction(min, Decimal(38, 12)),
				close AggregateFunction(argMax, Decimal(38, 12), UInt32),
				volume AggregateFunction(sum, Decimal(38, 12))
			) ENGINE = AggregatingMergeTree()
			ORDER BY (asset_id, bucket)
		`, db.Name, iv.Table)
		if err := db.Exec(ctx, target); err != nil {
			return fmt.Errorf("create %s: %w", iv.Table, err)
		}

		// Zero-price sentinel rows are volume-only; they carry no price
		// information and would corrupt low().
		view := fmt.Sprintf(`
			CREATE MATERIALIZED VIEW IF NOT EXISTS "%s"."%s_mv"
			TO "%s"."%s" AS
			SELECT
				p.asset_id AS asset_id,
				%s(b.block_timestamp) AS bucket,
				argMinState(p.usdt_price, p.block_height) AS open,
				maxState(p.usdt_price) AS high,
				minState(p.usdt_price) AS low,
				argMaxState(p.usdt_price, p.block_height) AS close,
				sumState(p.usdt_volume_buy + p.usdt_volume_sell) AS volume
			FROM "%s"."%s" AS p
			INNER JOIN "%s"."%s" AS b ON b.block_height = p.block_height
			WHERE p.usdt_price > 0
			GROUP BY asset_id, bucket
		`, db.Name, iv.Table, db.Name, iv.Table, iv.BucketExpr,
			db.Name, models.PricesTableName, db.Name, models.BlocksTableName)
		if err := db.Exec(ctx, view); err != nil {
			return fmt.Errorf("create %s_mv: %w", iv.Table, err)
		}
	}
	return nil
}
