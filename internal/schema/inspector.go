package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/askdb/askdb/internal/database"
)

type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type Table struct {
	Name    string
	Columns []Column
}

// Description is a read-only snapshot of the database layout, ordered the way
// information_schema reports it.
type Description struct {
	Tables []Table
}

// JSON renders the description in the table-to-columns form the model
// prompts expect.
func (d Description) JSON() (string, error) {
	byTable := make(map[string][]Column, len(d.Tables))
	for _, table := range d.Tables {
		byTable[table.Name] = table.Columns
	}
	serialized, err := json.MarshalIndent(byTable, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal schema description: %w", err)
	}
	return string(serialized), nil
}

func (d Description) Table(name string) (Table, bool) {
	for _, table := range d.Tables {
		if table.Name == name {
			return table, true
		}
	}
	return Table{}, false
}

// Inspector reads table and column metadata through information_schema, which
// both DuckDB and Postgres expose.
type Inspector struct {
	handle *database.Handle
}

func NewInspector(handle *database.Handle) *Inspector {
	return &Inspector{handle: handle}
}

const describeSQL = `
SELECT table_name, column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema NOT IN ('information_schema', 'pg_catalog')
ORDER BY table_name, ordinal_position`

func (i *Inspector) Describe(ctx context.Context) (Description, error) {
	rows, err := i.handle.DB().QueryContext(ctx, describeSQL)
	if err != nil {
		return Description{}, fmt.Errorf("query information_schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var description Description
	for rows.Next() {
		var tableName, columnName, dataType, isNullable string
		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullable); err != nil {
			return Description{}, fmt.Errorf("scan column metadata: %w", err)
		}
		column := Column{
			Name:     columnName,
			Type:     dataType,
			Nullable: strings.EqualFold(isNullable, "YES"),
		}
		if n := len(description.Tables); n > 0 && description.Tables[n-1].Name == tableName {
			description.Tables[n-1].Columns = append(description.Tables[n-1].Columns, column)
			continue
		}
		description.Tables = append(description.Tables, Table{Name: tableName, Columns: []Column{column}})
	}
	if err := rows.Err(); err != nil {
		return Description{}, fmt.Errorf("iterate column metadata: %w", err)
	}
	return description, nil
}

type ColumnStats struct {
	Name               string  `json:"name"`
	Type               string  `json:"type"`
	Nullable           bool    `json:"nullable"`
	NullPercent        float64 `json:"null_percent"`
	Cardinality        int64   `json:"cardinality"`
	CardinalityPercent float64 `json:"cardinality_percent"`
	SampleValues       []any   `json:"sample_values"`
}

type TableStats struct {
	Name     string        `json:"name"`
	RowCount int64         `json:"row_count"`
	Columns  []ColumnStats `json:"columns"`
}

// Statistics collects per-column statistics for display. This runs several
// statements per column and is meant for the CLI schema view, not the agent
// loop.
func (i *Inspector) Statistics(ctx context.Context) ([]TableStats, error) {
	description, err := i.Describe(ctx)
	if err != nil {
		return nil, err
	}

	db := i.handle.DB()
	stats := make([]TableStats, 0, len(description.Tables))
	for _, table := range description.Tables {
		quotedTable := quoteIdent(table.Name)

		var rowCount int64
		if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedTable)).Scan(&rowCount); err != nil {
			return nil, fmt.Errorf("count rows in %q: %w", table.Name, err)
		}

		tableStats := TableStats{Name: table.Name, RowCount: rowCount}
		for _, column := range table.Columns {
			quotedColumn := quoteIdent(column.Name)

			var nullCount int64
			if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", quotedTable, quotedColumn)).Scan(&nullCount); err != nil {
				return nil, fmt.Errorf("count nulls in %s.%s: %w", table.Name, column.Name, err)
			}
			var distinctCount int64
			if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s", quotedColumn, quotedTable)).Scan(&distinctCount); err != nil {
				return nil, fmt.Errorf("count distinct in %s.%s: %w", table.Name, column.Name, err)
			}

			samples, err := i.sampleValues(ctx, quotedTable, quotedColumn)
			if err != nil {
				return nil, fmt.Errorf("sample %s.%s: %w", table.Name, column.Name, err)
			}

			columnStats := ColumnStats{
				Name:         column.Name,
				Type:         column.Type,
				Nullable:     column.Nullable,
				Cardinality:  distinctCount,
				SampleValues: samples,
			}
			if rowCount > 0 {
				columnStats.NullPercent = float64(nullCount) / float64(rowCount) * 100
				columnStats.CardinalityPercent = float64(distinctCount) / float64(rowCount) * 100
			}
			tableStats.Columns = append(tableStats.Columns, columnStats)
		}
		stats = append(stats, tableStats)
	}
	return stats, nil
}

func (i *Inspector) sampleValues(ctx context.Context, quotedTable, quotedColumn string) ([]any, error) {
	rows, err := i.handle.DB().QueryContext(ctx, fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL LIMIT 3",
		quotedColumn, quotedTable, quotedColumn,
	))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	samples := make([]any, 0, 3)
	for rows.Next() {
		var value any
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		if raw, ok := value.([]byte); ok {
			value = string(raw)
		}
		samples = append(samples, value)
	}
	return samples, rows.Err()
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
