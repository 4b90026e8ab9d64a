package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/schema"
)

// maxRounds bounds the conversation with the model for one question.
const maxRounds = 15

const systemPrompt = `You are an intelligent NL2SQL assistant that helps users query databases using natural language.

You have access to these tools:
- discover_database_schema: Learn about database structure
- generate_sql_query: Create SQL queries from natural language
- verify_sql_query: Validate queries for safety and correctness
- execute_sql_query: Run queries against the database
- format_response: Convert results to natural language

CRITICAL RULE: Your SQL queries must ALWAYS return actual rows (SELECT * FROM table WHERE conditions),
NEVER use COUNT(*), SUM(), AVG() or other aggregations. The user wants to see the actual data.

You decide which tools to use and when. Use your intelligence to:
1. Understand what information you need
2. Call appropriate tools to gather that information
3. Generate SQL that returns raw data rows (never aggregated)
4. If verification fails because it expects COUNT(*), regenerate with SELECT * instead
5. Execute queries safely
6. Provide helpful responses

Be intelligent about tool usage - you might need schema info before generating SQL.

IMPORTANT: Always end by calling the format_response tool to provide the final structured response.`

type Config struct {
	Model       llm.Client
	Handle      *database.Handle
	Logger      *slog.Logger
	Temperature float64
	// Verbose raises tool-execution logging to info level. Observability
	// only; control flow is identical either way.
	Verbose bool
}

// Agent drives the tool-orchestration loop for one question at a time. The
// model picks the tools; the agent dispatches them, feeds results back, and
// keeps every failure inside the conversation so the model can adapt.
type Agent struct {
	model   llm.Client
	tools   *Toolset
	logger  *slog.Logger
	locator string
	verbose bool
	temp    float64
}

func New(cfg Config) (*Agent, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("model client is required")
	}
	if cfg.Handle == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		model: cfg.Model,
		tools: &Toolset{
			Model:       cfg.Model,
			Handle:      cfg.Handle,
			Inspector:   schema.NewInspector(cfg.Handle),
			Temperature: cfg.Temperature,
		},
		logger:  logger,
		locator: cfg.Handle.Locator(),
		verbose: cfg.Verbose,
		temp:    cfg.Temperature,
	}, nil
}

// Answer is the outcome of one question.
type Answer struct {
	Response  StructuredResponse
	Rounds    int
	ToolCalls int
}

// Ask runs the orchestration loop. It terminates when the model replies with
// plain text, and otherwise stops after maxRounds. The returned Answer always
// carries a valid StructuredResponse; an error is returned only when a model
// round fails before anything was captured.
func (a *Agent) Ask(ctx context.Context, question string) (Answer, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Database: %s\nQuestion: %s", a.locator, question)},
	}

	var captured *StructuredResponse
	answer := Answer{}

	for round := 1; round <= maxRounds; round++ {
		answer.Rounds = round
		a.log(ctx, "agent round", slog.Int("round", round), slog.Int("messages", len(messages)))

		start := time.Now()
		response, err := a.model.Complete(ctx, llm.CompletionRequest{
			Messages:    messages,
			Tools:       Definitions(),
			ToolChoice:  "auto",
			Temperature: a.temp,
		})
		observability.ObserveModelRequest(time.Since(start))
		if err != nil {
			if captured != nil {
				observability.ObserveQuestion("formatted", answer.Rounds)
				answer.Response = *captured
				return answer, nil
			}
			observability.ObserveQuestion("error", answer.Rounds)
			return Answer{}, fmt.Errorf("chat completion round %d: %w", round, err)
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})

		if len(response.ToolCalls) == 0 {
			if captured != nil {
				observability.ObserveQuestion("formatted", answer.Rounds)
				answer.Response = *captured
				return answer, nil
			}
			observability.ObserveQuestion("plain", answer.Rounds)
			answer.Response = StructuredResponse{
				Answer:   response.Content,
				SQLQuery: "N/A",
				RowCount: 0,
			}
			return answer, nil
		}

		for _, call := range response.ToolCalls {
			answer.ToolCalls++
			toolStart := time.Now()
			result := a.dispatch(ctx, call)
			status := "ok"
			if isErrorResult(result) {
				status = "error"
			}
			observability.ObserveToolCall(call.Name, status)
			a.log(ctx, "tool executed",
				slog.String("tool", call.Name),
				slog.String("status", status),
				slog.String("duration", time.Since(toolStart).String()),
				slog.Int("result_bytes", len(result)),
			)

			if call.Name == ToolFormatResponse {
				captured = captureStructured(result, call)
			}

			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}

	if captured != nil {
		observability.ObserveQuestion("formatted", answer.Rounds)
		answer.Response = *captured
		return answer, nil
	}
	observability.ObserveQuestion("exhausted", answer.Rounds)
	answer.Response = StructuredResponse{
		Answer:   fmt.Sprintf("Maximum rounds (%d) reached. Unable to complete the request.", maxRounds),
		SQLQuery: "N/A",
		RowCount: 0,
	}
	return answer, nil
}

// dispatch routes one tool call by name. Unknown names and bad arguments
// come back as error strings so the model can correct itself.
func (a *Agent) dispatch(ctx context.Context, call llm.ToolCall) string {
	args, err := parseArguments(call.Arguments)
	if err != nil {
		return fmt.Sprintf("Error: invalid arguments for tool %q: %v", call.Name, err)
	}

	switch call.Name {
	case ToolDiscoverSchema:
		return a.tools.DiscoverSchema(ctx)
	case ToolGenerateSQL:
		return a.tools.GenerateSQL(ctx, args["question"], args["schema_info"])
	case ToolVerifySQL:
		return a.tools.VerifySQL(ctx, args["sql_query"], args["schema_info"], args["question"])
	case ToolExecuteSQL:
		return a.tools.ExecuteSQL(ctx, args["sql_query"])
	case ToolFormatResponse:
		return a.tools.FormatResponse(ctx, args["question"], args["sql_query"], args["results"])
	default:
		return fmt.Sprintf("Error: tool %q not found", call.Name)
	}
}

func (a *Agent) log(ctx context.Context, msg string, attrs ...any) {
	level := slog.LevelDebug
	if a.verbose {
		level = slog.LevelInfo
	}
	a.logger.Log(ctx, level, msg, attrs...)
}

func parseArguments(raw string) (map[string]string, error) {
	if raw == "" {
		return map[string]string{}, nil
	}
	var generic map[string]any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, err
	}
	args := make(map[string]string, len(generic))
	for key, value := range generic {
		switch typed := value.(type) {
		case string:
			args[key] = typed
		default:
			args[key] = fmt.Sprintf("%v", typed)
		}
	}
	return args, nil
}

func captureStructured(result string, call llm.ToolCall) *StructuredResponse {
	parsed, err := ParseStructuredResponse(result)
	if err != nil {
		fallback := StructuredResponse{
			Answer:   result,
			SQLQuery: "N/A",
			RowCount: 0,
		}
		if args, argErr := parseArguments(call.Arguments); argErr == nil {
			if sqlQuery, ok := args["sql_query"]; ok && sqlQuery != "" {
				fallback.SQLQuery = sqlQuery
			}
		}
		return &fallback
	}
	return &parsed
}

func isErrorResult(result string) bool {
	return len(result) >= 5 && result[:5] == "Error"
}
