package models

import "time"

const BlocksTableName = "blocks"

// BlockColumns defines the schema for the blocks table. One row per block
// processed, carry-forward blocks included.
var BlockColumns = []ColumnDef{
	{Name: "block_height", Type: "UInt32", Codec: "DoubleDelta, LZ4"},
	{Name: "block_timestamp", Type: "DateTime('UTC')", Codec: "DoubleDelta, LZ4"},
	{Name: "spec_version", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
}

type Block struct {
	BlockHeight    uint32    `ch:"block_height" json:"block_height"`
	BlockTimestamp time.Time `ch:"block_timestamp" json:"block_timestamp"`
	SpecVersion    uint32    `ch:"spec_version" json:"spec_version"`
}
