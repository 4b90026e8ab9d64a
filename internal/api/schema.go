package api

import (
	"net/http"

	"github.com/askdb/askdb/internal/schema"
)

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "SCHEMA_UNAVAILABLE", "schema inspector is not configured", false, nil)
		return
	}

	description, err := deps.Schema.Describe(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_FAILURE", err.Error(), true, nil)
		return
	}

	tables := make(map[string][]schema.Column, len(description.Tables))
	for _, table := range description.Tables {
		tables[table.Name] = table.Columns
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func handleSchemaStats(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "SCHEMA_UNAVAILABLE", "schema inspector is not configured", false, nil)
		return
	}

	stats, err := deps.Schema.Statistics(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_FAILURE", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": stats})
}
