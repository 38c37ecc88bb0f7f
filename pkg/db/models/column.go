package models

import (
	"fmt"
	"strings"
)

// ColumnDef defines a single column for a table. The CREATE TABLE statements
// and insert column lists of the row tables are rendered from these
// definitions; the candle tables and materialized views in pkg/db/candles.go
// are written out as SQL of their own.
type ColumnDef struct {
	// Name is the column name
	Name string

	// Type is the ClickHouse data type (e.g., "UInt32", "Decimal(38,12)")
	Type string

	// Codec is the optional compression codec (e.g., "ZSTD(1)", "DoubleDelta, LZ4")
	Codec string
}

// SQL returns the full column definition for CREATE TABLE statements.
// Example: "symbol String CODEC(ZSTD(1))"
func (c ColumnDef) SQL() string {
	if c.Codec != "" {
		return fmt.Sprintf("%s %s CODEC(%s)", c.Name, c.Type, c.Codec)
	}
	return fmt.Sprintf("%s %s", c.Name, c.Type)
}

// ColumnsToSchemaSQL converts a list of ColumnDef to a CREATE TABLE schema string.
func ColumnsToSchemaSQL(columns []ColumnDef) string {
	var parts []string
	for _, col := range columns {
		parts = append(parts, col.SQL())
	}
	return strings.Join(parts, ",\n\t\t\t")
}

// ColumnsToNameList renders the comma-separated column list for INSERT statements.
func ColumnsToNameList(columns []ColumnDef) string {
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name
	}
	return strings.Join(names, ", ")
}
