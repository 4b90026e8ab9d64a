package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/sqlcheck"
)

// Tool names are part of the model contract and must not change.
const (
	ToolDiscoverSchema = "discover_database_schema"
	ToolGenerateSQL    = "generate_sql_query"
	ToolVerifySQL      = "verify_sql_query"
	ToolExecuteSQL     = "execute_sql_query"
	ToolFormatResponse = "format_response"
)

// Toolset implements the five tool contracts. Every method returns a single
// string; failures become "Error ..." strings that flow back into the
// conversation instead of Go errors.
type Toolset struct {
	Model       llm.Client
	Handle      *database.Handle
	Inspector   *schema.Inspector
	Temperature float64
}

// Definitions returns the fixed tool catalog sent with every model round.
// database_path arguments are accepted for wire compatibility with the
// original tool schemas; execution always uses the agent's own handle.
func Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        ToolDiscoverSchema,
			Description: "Discover database schema (tables and columns)",
			Parameters: llm.StringParameters(map[string]string{
				"database_path": "Path to the database",
			}, "database_path"),
		},
		{
			Name:        ToolGenerateSQL,
			Description: "Generate SQL query from natural language",
			Parameters: llm.StringParameters(map[string]string{
				"question":    "Natural language question",
				"schema_info": "Database schema information",
			}, "question", "schema_info"),
		},
		{
			Name:        ToolVerifySQL,
			Description: "Verify SQL query for correctness and safety",
			Parameters: llm.StringParameters(map[string]string{
				"sql_query":   "SQL query to verify",
				"schema_info": "Database schema information",
				"question":    "Original natural language question",
			}, "sql_query", "schema_info", "question"),
		},
		{
			Name:        ToolExecuteSQL,
			Description: "Execute SQL query and get results",
			Parameters: llm.StringParameters(map[string]string{
				"sql_query":     "SQL query to execute",
				"database_path": "Path to the database",
			}, "sql_query", "database_path"),
		},
		{
			Name:        ToolFormatResponse,
			Description: "Format results into natural language",
			Parameters: llm.StringParameters(map[string]string{
				"question":  "Original question",
				"sql_query": "SQL query used",
				"results":   "Query results",
			}, "question", "sql_query", "results"),
		},
	}
}

func (t *Toolset) DiscoverSchema(ctx context.Context) string {
	description, err := t.Inspector.Describe(ctx)
	if err != nil {
		return fmt.Sprintf("Error discovering schema: %v", err)
	}
	serialized, err := description.JSON()
	if err != nil {
		return fmt.Sprintf("Error discovering schema: %v", err)
	}
	return serialized
}

const generatePromptFormat = `You are a SQL expert. Generate a SQL query for this question.

Database Schema:
%s

Question: %s

CRITICAL REQUIREMENTS:
1. NEVER use COUNT(*), SUM(), AVG(), or other aggregation functions
2. ALWAYS return SELECT * FROM table WHERE conditions to show actual rows
3. For "how many" questions, return the matching rows so we can count them by seeing the data
4. For "average" questions, return individual rows so we can see the underlying data
5. The user wants to see the full list of relevant rows corresponding to every answer
6. NEVER EVER use aggregation functions - always return raw matching rows
7. Example: For "how many survived", use SELECT * FROM table WHERE Survived = 1 (NOT SELECT COUNT(*))

Return only the SQL query - no explanations or formatting.`

func (t *Toolset) GenerateSQL(ctx context.Context, question, schemaInfo string) string {
	prompt := fmt.Sprintf(generatePromptFormat, schemaInfo, question)
	response, err := t.Model.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: t.Temperature,
	})
	if err != nil {
		return fmt.Sprintf("Error generating SQL: %v", err)
	}
	sqlText := stripMarkdownSQL(response.Content)
	if sqlText == "" {
		return "Error generating SQL: model returned empty SQL"
	}
	return sqlText
}

const verifyPromptFormat = `Verify this SQL query for correctness and relevance to the question.

Database Schema:
%s

Question: %s
SQL Query: %s

IMPORTANT: The query should return actual rows, NOT aggregated results.
For "how many" questions, SELECT * is CORRECT because we want to see the actual data.

Check:
1. Does the query use valid table/column names from the schema?
2. Is the query logically correct for answering the question?
3. Are there any obvious syntax errors?
4. ACCEPT queries that return rows instead of using COUNT(*) - this is the preferred approach

Return JSON with:
{
    "is_valid": true/false,
    "issues": ["list of any issues found"],
    "suggestions": ["list of suggestions for improvement"]
}`

// VerifySQL runs the static checks first; a static rejection short-circuits
// without a model call. The semantic verdict is advisory text only.
func (t *Toolset) VerifySQL(ctx context.Context, sqlQuery, schemaInfo, question string) string {
	if err := sqlcheck.Check(sqlQuery); err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	prompt := fmt.Sprintf(verifyPromptFormat, schemaInfo, question, sqlQuery)
	response, err := t.Model.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: t.Temperature,
		JSONObject:  true,
	})
	if err != nil {
		return fmt.Sprintf("Error verifying query: %v", err)
	}

	var verdict struct {
		IsValid     bool     `json:"is_valid"`
		Issues      []string `json:"issues"`
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(response.Content), &verdict); err != nil {
		return fmt.Sprintf("Error verifying query: %v", err)
	}
	if verdict.IsValid {
		return "Query verified successfully."
	}
	issues := verdict.Issues
	if len(issues) == 0 {
		issues = []string{"Unknown validation error"}
	}
	return fmt.Sprintf("Query validation failed: %s", strings.Join(issues, ", "))
}

// ExecuteSQL guards the SELECT prefix itself even though the verifier checks
// it too; the verifier's verdict does not gate execution.
func (t *Toolset) ExecuteSQL(ctx context.Context, sqlQuery string) string {
	if !sqlcheck.IsSelect(sqlQuery) {
		return "Error: Only SELECT queries are allowed"
	}
	result, err := t.Handle.Query(ctx, sqlQuery)
	if err != nil {
		return fmt.Sprintf("Error executing query: %v", err)
	}
	serialized, err := json.MarshalIndent(result.Rows, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error executing query: %v", err)
	}
	return string(serialized)
}

const formatPromptFormat = `Convert these query results into a natural, conversational response.

Original Question: %s
SQL Query: %s
Results: %s

Provide a clear, helpful answer in natural language that explains the results.`

// FormatResponse always returns a well-formed serialized StructuredResponse;
// failures are embedded in the answer text with empty rows.
func (t *Toolset) FormatResponse(ctx context.Context, question, sqlQuery, results string) string {
	rows, rowCount := parseResults(results)

	response, err := t.Model.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: fmt.Sprintf(formatPromptFormat, question, sqlQuery, results)}},
		Temperature: 0.3,
	})
	structured := StructuredResponse{
		SQLQuery: sqlQuery,
		Results:  rows,
		RowCount: rowCount,
	}
	if err != nil {
		structured.Answer = fmt.Sprintf("Error formatting response: %v", err)
		structured.Results = nil
		structured.RowCount = 0
	} else {
		structured.Answer = strings.TrimSpace(response.Content)
	}

	serialized, err := structured.JSON()
	if err != nil {
		// Last resort: a hand-built minimal artifact.
		return fmt.Sprintf(`{"response": %q, "sql_query": %q, "data_results": [], "row_count": 0}`,
			fmt.Sprintf("Error formatting response: %v", err), sqlQuery)
	}
	return serialized
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
