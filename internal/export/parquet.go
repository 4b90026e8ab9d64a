// Package export writes query results to Parquet files so answers can be
// handed off to other tools.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
)

// WriteParquet writes rows under the given column order. Column types are
// inferred from the first non-nil value per column; columns with no values
// default to strings. Every column is optional so null cells round-trip.
func WriteParquet(w io.Writer, columns []string, rows []map[string]any) error {
	if len(columns) == 0 {
		return fmt.Errorf("columns are required")
	}

	group := parquet.Group{}
	for _, column := range columns {
		group[column] = parquet.Optional(nodeFor(column, rows))
	}
	schema := parquet.NewSchema("query_results", group)

	normalized := make([]map[string]any, len(rows))
	for i, row := range rows {
		out := make(map[string]any, len(columns))
		for _, column := range columns {
			out[column] = normalizeCell(row[column])
		}
		normalized[i] = out
	}

	writer := parquet.NewGenericWriter[map[string]any](w, schema)
	if len(normalized) > 0 {
		if _, err := writer.Write(normalized); err != nil {
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func nodeFor(column string, rows []map[string]any) parquet.Node {
	for _, row := range rows {
		switch row[column].(type) {
		case nil:
			continue
		case bool:
			return parquet.Leaf(parquet.BooleanType)
		case int, int32, int64:
			return parquet.Int(64)
		case float32, float64:
			return parquet.Leaf(parquet.DoubleType)
		default:
			return parquet.String()
		}
	}
	return parquet.String()
}

// normalizeCell widens integers and floats and stringifies everything the
// schema cannot hold natively.
func normalizeCell(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case bool, int64, float64, string:
		return typed
	case int:
		return int64(typed)
	case int32:
		return int64(typed)
	case float32:
		return float64(typed)
	case []byte:
		return string(typed)
	case time.Time:
		return typed.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", typed)
	}
}
