package models

const AssetsTableName = "assets"

// AssetColumns defines the schema for the assets table. Rows are emitted on
// first discovery or metadata change; last write wins.
var AssetColumns = []ColumnDef{
	{Name: "asset_id", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "symbol", Type: "String", Codec: "ZSTD(1)"},
	{Name: "name", Type: "String", Codec: "ZSTD(1)"},
	{Name: "decimals", Type: "UInt8"},
}

type Asset struct {
	AssetID  uint32 `ch:"asset_id" json:"asset_id"`
	Symbol   string `ch:"symbol" json:"symbol"`
	Name     string `ch:"name" json:"name"`
	Decimals uint8  `ch:"decimals" json:"decimals"`
}
