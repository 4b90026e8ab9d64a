package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/observability"
)

// maxQuestionLength caps request bodies well above any reasonable question.
const maxQuestionLength = 8192

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer    string           `json:"response"`
	SQLQuery  string           `json:"sql_query"`
	Results   []map[string]any `json:"data_results"`
	RowCount  int              `json:"row_count"`
	Rounds    int              `json:"rounds"`
	ToolCalls int              `json:"tool_calls"`
	ElapsedMs int64            `json:"elapsed_ms"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Agent == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "AGENT_UNAVAILABLE", "agent is not configured", false, nil)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionLength))
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "request body must be a JSON object with a question field", false, nil)
		return
	}
	question := strings.TrimSpace(request.Question)
	if question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "question is required", false, nil)
		return
	}

	start := time.Now()
	answer, err := deps.Agent.Ask(r.Context(), question)
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.ErrorContext(r.Context(), "question failed",
				slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
				slog.String("error", err.Error()),
			)
		}
		// Even a hard failure leaves the caller with a valid structured
		// response alongside the error envelope.
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"response":     fmt.Sprintf("Error processing question: %v", err),
			"sql_query":    "N/A",
			"data_results": []map[string]any{},
			"row_count":    0,
			"error_code":   "AGENT_FAILURE",
			"retryable":    true,
			"trace_id":     observability.TraceIDFromContext(r.Context()),
		})
		return
	}

	results := answer.Response.Results
	if results == nil {
		results = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, askResponse{
		Answer:    answer.Response.Answer,
		SQLQuery:  answer.Response.SQLQuery,
		Results:   results,
		RowCount:  answer.Response.RowCount,
		Rounds:    answer.Rounds,
		ToolCalls: answer.ToolCalls,
		ElapsedMs: time.Since(start).Milliseconds(),
	})
}
