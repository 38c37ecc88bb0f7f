package models

import (
	"math/big"

	"github.com/shopspring/decimal"
)

const PricesTableName = "prices"

// PriceColumns defines the schema for the prices table. Heights compress
// with DoubleDelta since inserts arrive in ascending order; decimal columns
// carry the 12-digit USDT scale end to end.
var PriceColumns = []ColumnDef{
	{Name: "asset_id", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "block_height", Type: "UInt32", Codec: "DoubleDelta, LZ4"},
	{Name: "usdt_price", Type: "Decimal(38, 12)", Codec: "ZSTD(1)"},
	{Name: "native_volume_buy", Type: "UInt128", Codec: "ZSTD(1)"},
	{Name: "native_volume_sell", Type: "UInt128", Codec: "ZSTD(1)"},
	{Name: "usdt_volume_buy", Type: "Decimal(38, 12)", Codec: "ZSTD(1)"},
	{Name: "usdt_volume_sell", Type: "Decimal(38, 12)", Codec: "ZSTD(1)"},
}

// Price is one (asset, block) output record. Rows may be price-only (zero
// volumes), volume-only (zero price sentinel), or merged. The table's
// ReplacingMergeTree key (asset_id, block_height) versioned by block_height
// makes re-processing a block idempotent.
type Price struct {
	AssetID          uint32          `ch:"asset_id" json:"asset_id"`
	BlockHeight      uint32          `ch:"block_height" json:"block_height"`
	UsdtPrice        decimal.Decimal `ch:"usdt_price" json:"usdt_price"`
	NativeVolumeBuy  *big.Int        `ch:"native_volume_buy" json:"native_volume_buy"`
	NativeVolumeSell *big.Int        `ch:"native_volume_sell" json:"native_volume_sell"`
	UsdtVolumeBuy    decimal.Decimal `ch:"usdt_volume_buy" json:"usdt_volume_buy"`
	UsdtVolumeSell   decimal.Decimal `ch:"usdt_volume_sell" json:"usdt_volume_sell"`
}
