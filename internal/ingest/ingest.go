// Package ingest loads local data files into DuckDB tables so questions can
// be asked against them. Loading goes through DuckDB's own readers
// (read_csv_auto, read_parquet, read_json_auto) instead of parsing files in
// Go.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/askdb/askdb/internal/database"
)

type Report struct {
	Table    string
	Rows     int64
	Duration time.Duration
}

// LoadFile creates or replaces a table from the file at path. When table is
// empty the name is derived from the file stem. Only DuckDB handles support
// ingestion; Postgres locators are query-only.
func LoadFile(ctx context.Context, handle *database.Handle, path, table string) (Report, error) {
	if handle == nil {
		return Report{}, fmt.Errorf("database handle is required")
	}
	if handle.Driver() != "duckdb" {
		return Report{}, fmt.Errorf("ingestion requires a duckdb database, got driver %q", handle.Driver())
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Report{}, fmt.Errorf("file path is required")
	}
	if _, err := os.Stat(path); err != nil {
		return Report{}, fmt.Errorf("stat input file: %w", err)
	}

	reader, err := readerFor(path)
	if err != nil {
		return Report{}, err
	}

	if table == "" {
		table = TableNameFor(path)
	}

	start := time.Now()
	createSQL := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM %s(%s)",
		quoteIdent(table), reader, quoteLiteral(path),
	)
	if _, err := handle.DB().ExecContext(ctx, createSQL); err != nil {
		return Report{}, fmt.Errorf("load %q into table %q: %w", path, table, err)
	}

	var rows int64
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(table))
	if err := handle.DB().QueryRowContext(ctx, countSQL).Scan(&rows); err != nil {
		return Report{}, fmt.Errorf("count rows in %q: %w", table, err)
	}

	return Report{Table: table, Rows: rows, Duration: time.Since(start)}, nil
}

func readerFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "read_csv_auto", nil
	case ".parquet":
		return "read_parquet", nil
	case ".json", ".ndjson", ".jsonl":
		return "read_json_auto", nil
	default:
		return "", fmt.Errorf("unsupported file type %q (want .csv, .parquet, or .json)", filepath.Ext(path))
	}
}

// TableNameFor derives a table identifier from the file stem: lowercased,
// non-alphanumeric runs collapsed to underscores, prefixed when the stem
// starts with a digit.
func TableNameFor(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var builder strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(stem) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && builder.Len() > 0 {
			builder.WriteRune('_')
			lastUnderscore = true
		}
	}
	name := strings.TrimSuffix(builder.String(), "_")
	if name == "" {
		return "imported"
	}
	if unicode.IsDigit(rune(name[0])) {
		name = "t_" + name
	}
	return name
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
