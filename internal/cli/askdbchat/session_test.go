package askdbchat

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/askdb/askdb/internal/agent"
	"github.com/askdb/askdb/internal/schema"
)

type fakeAsker struct {
	answer    agent.Answer
	err       error
	questions []string
}

func (f *fakeAsker) Ask(_ context.Context, question string) (agent.Answer, error) {
	f.questions = append(f.questions, question)
	return f.answer, f.err
}

type fakeSchema struct {
	stats []schema.TableStats
}

func (f *fakeSchema) Statistics(context.Context) ([]schema.TableStats, error) {
	return f.stats, nil
}

func runSession(t *testing.T, session *Session, input string) string {
	t.Helper()
	var stdout bytes.Buffer
	session.Stdin = strings.NewReader(input)
	session.Stdout = &stdout
	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return stdout.String()
}

func TestSessionAsksQuestion(t *testing.T) {
	asker := &fakeAsker{answer: agent.Answer{
		Response: agent.StructuredResponse{
			Answer:   "Two passengers survived.",
			SQLQuery: "SELECT * FROM titanic WHERE Survived = 1",
			Results:  []map[string]any{{"Name": "Ada"}, {"Name": "Ben"}},
			RowCount: 2,
		},
	}}

	out := runSession(t, &Session{Agent: asker, Locator: "titanic.duckdb"}, "who survived?\nquit\n")

	if len(asker.questions) != 1 || asker.questions[0] != "who survived?" {
		t.Fatalf("questions = %v", asker.questions)
	}
	if !strings.Contains(out, "Two passengers survived.") {
		t.Fatalf("output missing answer: %s", out)
	}
	if !strings.Contains(out, "SQL: SELECT * FROM titanic WHERE Survived = 1") {
		t.Fatalf("output missing SQL: %s", out)
	}
	if !strings.Contains(out, "Rows: 2") {
		t.Fatalf("output missing row count: %s", out)
	}
	if !strings.Contains(out, `"Name":"Ada"`) {
		t.Fatalf("output missing rows: %s", out)
	}
}

func TestSessionCapsShownRows(t *testing.T) {
	rows := make([]map[string]any, 25)
	for i := range rows {
		rows[i] = map[string]any{"n": i}
	}
	asker := &fakeAsker{answer: agent.Answer{Response: agent.StructuredResponse{
		Answer: "25 rows.", SQLQuery: "SELECT * FROM t", Results: rows, RowCount: 25,
	}}}

	out := runSession(t, &Session{Agent: asker}, "all rows\nquit\n")
	if !strings.Contains(out, "... (5 more rows)") {
		t.Fatalf("output missing truncation marker: %s", out)
	}
}

func TestSessionHistoryKeepsLastFive(t *testing.T) {
	asker := &fakeAsker{answer: agent.Answer{Response: agent.StructuredResponse{
		Answer: "ok", SQLQuery: "SELECT 1", RowCount: 1,
	}}}

	var input strings.Builder
	for i := 1; i <= 7; i++ {
		fmt.Fprintf(&input, "question %d\n", i)
	}
	input.WriteString("history\nquit\n")

	out := runSession(t, &Session{Agent: asker}, input.String())
	if !strings.Contains(out, "1. question 3\n") {
		t.Fatalf("history should start at question 3: %s", out)
	}
	if strings.Contains(out, "question 1\n   SQL") {
		t.Fatalf("history should have dropped question 1: %s", out)
	}
	if !strings.Contains(out, "question 7") {
		t.Fatalf("history missing latest question: %s", out)
	}
}

func TestSessionDebugToggle(t *testing.T) {
	asker := &fakeAsker{answer: agent.Answer{
		Response:  agent.StructuredResponse{Answer: "ok", SQLQuery: "SELECT 1"},
		Rounds:    4,
		ToolCalls: 6,
	}}

	out := runSession(t, &Session{Agent: asker}, "debug\nq1\nquit\n")
	if !strings.Contains(out, "debug on") {
		t.Fatalf("output = %s", out)
	}
	if !strings.Contains(out, "Rounds: 4, tool calls: 6") {
		t.Fatalf("debug output missing: %s", out)
	}
}

func TestSessionSchemaCommand(t *testing.T) {
	session := &Session{
		Agent: &fakeAsker{},
		Schema: &fakeSchema{stats: []schema.TableStats{{
			Name:     "titanic",
			RowCount: 891,
			Columns: []schema.ColumnStats{{
				Name: "Name", Type: "VARCHAR", Nullable: true, Cardinality: 891,
			}},
		}}},
	}

	out := runSession(t, session, "schema\nquit\n")
	if !strings.Contains(out, `"titanic"`) || !strings.Contains(out, `"row_count": 891`) {
		t.Fatalf("output = %s", out)
	}
}

func TestSessionStatsCommand(t *testing.T) {
	asker := &fakeAsker{answer: agent.Answer{Response: agent.StructuredResponse{
		Answer: "ok", SQLQuery: "SELECT 1", RowCount: 1,
	}}}

	out := runSession(t, &Session{Agent: asker}, "stats\nq1\nq2\nstats\nquit\n")
	if !strings.Contains(out, "no questions asked yet") {
		t.Fatalf("initial stats missing: %s", out)
	}
	if !strings.Contains(out, "Questions: 2") || !strings.Contains(out, "Succeeded: 2") {
		t.Fatalf("output = %s", out)
	}
	if !strings.Contains(out, "Average latency:") {
		t.Fatalf("output = %s", out)
	}
}

func TestSessionExportWritesParquet(t *testing.T) {
	asker := &fakeAsker{answer: agent.Answer{Response: agent.StructuredResponse{
		Answer:   "one row",
		SQLQuery: "SELECT * FROM t",
		Results:  []map[string]any{{"Name": "Ada", "Survived": int64(1)}},
		RowCount: 1,
	}}}

	path := filepath.Join(t.TempDir(), "out.parquet")
	out := runSession(t, &Session{Agent: asker}, "q\nexport "+path+"\nquit\n")
	if !strings.Contains(out, "exported 1 rows to "+path) {
		t.Fatalf("output = %s", out)
	}
}

func TestSessionExportWithoutResult(t *testing.T) {
	out := runSession(t, &Session{Agent: &fakeAsker{}}, "export out.parquet\nquit\n")
	if !strings.Contains(out, "nothing to export") {
		t.Fatalf("output = %s", out)
	}
}

func TestSessionClear(t *testing.T) {
	asker := &fakeAsker{answer: agent.Answer{Response: agent.StructuredResponse{
		Answer: "ok", SQLQuery: "SELECT 1",
	}}}

	out := runSession(t, &Session{Agent: asker}, "q\nclear\nhistory\nquit\n")
	if !strings.Contains(out, "history cleared") || !strings.Contains(out, "no questions asked yet") {
		t.Fatalf("output = %s", out)
	}
}

func TestSessionAgentErrorIsPrinted(t *testing.T) {
	asker := &fakeAsker{err: fmt.Errorf("chat completion round 1: upstream 503")}
	out := runSession(t, &Session{Agent: asker}, "q\nquit\n")
	if !strings.Contains(out, "error: chat completion round 1") {
		t.Fatalf("output = %s", out)
	}
}
