package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
)

type Config struct {
	Locator         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Handle wraps one database connection pool. The locator decides the driver:
// postgres:// DSNs go through pgx, everything else is treated as a DuckDB
// file path. A Handle is owned by a single question-processing caller; there
// is no cross-caller locking.
type Handle struct {
	db      *sql.DB
	locator string
	driver  string
}

func Open(ctx context.Context, cfg Config) (*Handle, error) {
	locator := strings.TrimSpace(cfg.Locator)
	if locator == "" {
		return nil, fmt.Errorf("database locator is required")
	}

	driver := DriverFor(locator)
	db, err := sql.Open(driver, locator)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Handle{db: db, locator: locator, driver: driver}, nil
}

// NewHandle wraps an existing pool. Used by tests with sqlmock.
func NewHandle(db *sql.DB, locator string) *Handle {
	return &Handle{db: db, locator: locator, driver: DriverFor(locator)}
}

func DriverFor(locator string) string {
	lowered := strings.ToLower(strings.TrimSpace(locator))
	if strings.HasPrefix(lowered, "postgres://") || strings.HasPrefix(lowered, "postgresql://") {
		return "pgx"
	}
	return "duckdb"
}

func (h *Handle) Locator() string {
	return h.locator
}

func (h *Handle) Driver() string {
	return h.driver
}

func (h *Handle) DB() *sql.DB {
	return h.db
}

func (h *Handle) Ping(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

func (h *Handle) Close() error {
	return h.db.Close()
}

// Result is one executed statement's output: column order plus rows keyed by
// column name.
type Result struct {
	Columns  []string
	Rows     []map[string]any
	Duration time.Duration
}

// Query runs a statement and materializes every row. Byte slices are
// normalized to strings so results serialize cleanly to JSON.
func (h *Handle) Query(ctx context.Context, sqlText string) (Result, error) {
	sqlText = stripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return Result{}, fmt.Errorf("sql is required")
	}

	start := time.Now()
	rows, err := h.db.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, column := range columns {
			row[column] = normalizeValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	default:
		return typed
	}
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
