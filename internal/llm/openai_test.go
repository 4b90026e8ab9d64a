package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCompleteSendsToolsAndParsesToolCalls(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotPayload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"execute_sql_query","arguments":"{\"sql_query\":\"SELECT * FROM titanic\"}"}}]}}]}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	resp, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		Tools: []ToolDefinition{{
			Name:        "execute_sql_query",
			Description: "Execute SQL query and get results",
			Parameters:  StringParameters(map[string]string{"sql_query": "SQL query to execute"}, "sql_query"),
		}},
		ToolChoice:  "auto",
		Temperature: 0.1,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if gotPath != "/v1/chat/completions" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer k" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotPayload["tool_choice"] != "auto" {
		t.Fatalf("tool_choice = %v", gotPayload["tool_choice"])
	}
	tools, ok := gotPayload["tools"].([]any)
	if !ok || len(tools) != 1 {
		t.Fatalf("tools = %v", gotPayload["tools"])
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].Name != "execute_sql_query" || resp.ToolCalls[0].ID != "call_1" {
		t.Fatalf("tool call = %+v", resp.ToolCalls[0])
	}
	var args map[string]string
	if err := json.Unmarshal([]byte(resp.ToolCalls[0].Arguments), &args); err != nil {
		t.Fatalf("arguments not JSON: %v", err)
	}
	if args["sql_query"] != "SELECT * FROM titanic" {
		t.Fatalf("sql_query = %q", args["sql_query"])
	}
}

func TestCompleteUsesAzureStyleWhenAPIVersionSet(t *testing.T) {
	var gotQuery, gotAPIKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAPIKey = r.Header.Get("api-key")
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "azkey", APIVersion: "2024-06-01", Model: "gpt-4"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	resp, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "ok" {
		t.Fatalf("content = %q", resp.Content)
	}
	if gotQuery != "api-version=2024-06-01" {
		t.Fatalf("query = %q", gotQuery)
	}
	if gotAPIKey != "azkey" || gotAuth != "" {
		t.Fatalf("headers api-key=%q authorization=%q", gotAPIKey, gotAuth)
	}
}

func TestCompleteSetsJSONObjectResponseFormat(t *testing.T) {
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotPayload)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"is_valid\":true}"}}]}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	if _, err := client.Complete(context.Background(), CompletionRequest{
		Messages:   []Message{{Role: RoleUser, Content: "verify"}},
		JSONObject: true,
	}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	format, ok := gotPayload["response_format"].(map[string]any)
	if !ok || format["type"] != "json_object" {
		t.Fatalf("response_format = %v", gotPayload["response_format"])
	}
}

func TestCompleteForwardsToolResultMessages(t *testing.T) {
	var gotPayload struct {
		Messages []map[string]any `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotPayload)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"done"}}]}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	_, err = client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_1", Name: "discover_database_schema", Arguments: "{}"}}},
			{Role: RoleTool, ToolCallID: "call_1", Name: "discover_database_schema", Content: "{}"},
		},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if len(gotPayload.Messages) != 2 {
		t.Fatalf("messages = %d", len(gotPayload.Messages))
	}
	assistant := gotPayload.Messages[0]
	calls, ok := assistant["tool_calls"].([]any)
	if !ok || len(calls) != 1 {
		t.Fatalf("assistant tool_calls = %v", assistant["tool_calls"])
	}
	tool := gotPayload.Messages[1]
	if tool["tool_call_id"] != "call_1" || tool["role"] != "tool" {
		t.Fatalf("tool message = %v", tool)
	}
}

func TestCompleteFailsOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	if _, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	}); err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestNewOpenAIClientValidatesConfig(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{APIKey: "k", Model: "m"}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
	if _, err := NewOpenAIClient(OpenAIConfig{BaseURL: "https://api.openai.com", Model: "m"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
	if _, err := NewOpenAIClient(OpenAIConfig{BaseURL: "https://api.openai.com", APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing model")
	}
}
