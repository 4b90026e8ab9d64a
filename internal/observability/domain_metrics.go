package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_questions_total",
			Help: "Total number of questions processed by the agent.",
		},
	)
	answersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_answers_total",
			Help: "Total number of answers by outcome (formatted, plain, exhausted, error).",
		},
		[]string{"outcome"},
	)
	agentRounds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_agent_rounds",
			Help:    "Model rounds consumed per question.",
			Buckets: []float64{1, 2, 3, 4, 5, 7, 10, 15},
		},
	)
	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_tool_calls_total",
			Help: "Total number of tool executions by tool name and status.",
		},
		[]string{"tool", "status"},
	)
	modelRequestDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_model_request_duration_seconds",
			Help:    "Chat completion request latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		answersTotal,
		agentRounds,
		toolCallsTotal,
		modelRequestDurationSeconds,
	)
}

func ObserveQuestion(outcome string, rounds int) {
	questionsTotal.Inc()
	answersTotal.WithLabelValues(outcome).Inc()
	agentRounds.Observe(float64(rounds))
}

func ObserveToolCall(tool, status string) {
	toolCallsTotal.WithLabelValues(tool, status).Inc()
}

func ObserveModelRequest(elapsed time.Duration) {
	modelRequestDurationSeconds.Observe(elapsed.Seconds())
}
