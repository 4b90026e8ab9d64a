package agent

import (
	"encoding/json"
	"fmt"
)

// StructuredResponse is the one artifact a question produces: the prose
// answer, the SQL that backed it, the raw rows, and the row count. Key names
// are part of the wire format.
type StructuredResponse struct {
	Answer   string           `json:"response"`
	SQLQuery string           `json:"sql_query"`
	Results  []map[string]any `json:"data_results"`
	RowCount int              `json:"row_count"`
}

func (r StructuredResponse) JSON() (string, error) {
	serialized, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal structured response: %w", err)
	}
	return string(serialized), nil
}

func ParseStructuredResponse(raw string) (StructuredResponse, error) {
	var response StructuredResponse
	if err := json.Unmarshal([]byte(raw), &response); err != nil {
		return StructuredResponse{}, fmt.Errorf("parse structured response: %w", err)
	}
	return response, nil
}

// parseResults interprets a serialized result set the way the formatter
// counts rows: a list counts its elements, a single object counts as one row,
// any other non-null value counts as one, and empty or unparseable input
// counts as zero.
func parseResults(raw string) ([]map[string]any, int) {
	if raw == "" {
		return nil, 0
	}
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, 0
	}
	switch typed := parsed.(type) {
	case nil:
		return nil, 0
	case []any:
		rows := make([]map[string]any, 0, len(typed))
		for _, item := range typed {
			if row, ok := item.(map[string]any); ok {
				rows = append(rows, row)
			}
		}
		return rows, len(typed)
	case map[string]any:
		return []map[string]any{typed}, 1
	default:
		return nil, 1
	}
}
