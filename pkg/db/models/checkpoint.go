package models

import "time"

const IndexerStateTableName = "indexer_state"

// Checkpoint identities. Main tracks the primary pipeline; Replay tracks the
// optional volume-only backfill pass.
const (
	CheckpointMain   = "main"
	CheckpointReplay = "replay"
)

// IndexerStateColumns defines the schema for the indexer_state table.
var IndexerStateColumns = []ColumnDef{
	{Name: "id", Type: "String"},
	{Name: "last_block", Type: "UInt32"},
	{Name: "updated_at", Type: "DateTime64(6)"},
}

// Checkpoint records the highest finalized block fully flushed to the store
// for one pipeline identity. ReplacingMergeTree versioned by updated_at keeps
// the newest write per id.
type Checkpoint struct {
	ID        string    `ch:"id" json:"id"`
	LastBlock uint32    `ch:"last_block" json:"last_block"`
	UpdatedAt time.Time `ch:"updated_at" json:"updated_at"`
}
