// Package askdbchat implements the interactive question loop used by the
// askdb command.
package askdbchat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/agent"
	"github.com/askdb/askdb/internal/export"
	"github.com/askdb/askdb/internal/schema"
)

const (
	historySize  = 5
	maxShownRows = 20
)

type Asker interface {
	Ask(ctx context.Context, question string) (agent.Answer, error)
}

type SchemaReader interface {
	Statistics(ctx context.Context) ([]schema.TableStats, error)
}

type HistoryEntry struct {
	Question string
	SQLQuery string
	RowCount int
	Elapsed  time.Duration
}

type Session struct {
	Agent   Asker
	Schema  SchemaReader
	Locator string
	Stdin   io.Reader
	Stdout  io.Writer
	Debug   bool

	history      []HistoryEntry
	lastAnswer   *agent.Answer
	questions    int
	successes    int
	totalElapsed time.Duration
}

// Run reads lines until EOF or quit. Lines starting with a known command are
// handled locally; everything else is a question for the agent.
func (s *Session) Run(ctx context.Context) error {
	if s.Agent == nil {
		return fmt.Errorf("agent is required")
	}
	stdout := s.Stdout
	if stdout == nil {
		stdout = io.Discard
	}

	fmt.Fprintf(stdout, "askdb — connected to %s\n", s.Locator)
	fmt.Fprintln(stdout, `Type a question, or "help" for commands.`)

	scanner := bufio.NewScanner(s.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(stdout)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		switch strings.ToLower(fields[0]) {
		case "quit", "exit":
			return nil
		case "help":
			s.printHelp(stdout)
		case "history":
			s.printHistory(stdout)
		case "clear":
			s.history = nil
			s.lastAnswer = nil
			fmt.Fprintln(stdout, "history cleared")
		case "debug":
			s.Debug = !s.Debug
			fmt.Fprintf(stdout, "debug %s\n", onOff(s.Debug))
		case "schema":
			s.printSchema(ctx, stdout)
		case "stats":
			s.printSessionStats(stdout)
		case "export":
			if len(fields) < 2 {
				fmt.Fprintln(stdout, "usage: export <path.parquet>")
				continue
			}
			s.exportLast(stdout, fields[1])
		default:
			s.askQuestion(ctx, stdout, line)
		}
	}
}

func (s *Session) askQuestion(ctx context.Context, stdout io.Writer, question string) {
	start := time.Now()
	answer, err := s.Agent.Ask(ctx, question)
	elapsed := time.Since(start)
	s.questions++
	s.totalElapsed += elapsed
	if err != nil {
		fmt.Fprintf(stdout, "error: %v\n", err)
		return
	}
	s.successes++

	s.lastAnswer = &answer
	s.history = append(s.history, HistoryEntry{
		Question: question,
		SQLQuery: answer.Response.SQLQuery,
		RowCount: answer.Response.RowCount,
		Elapsed:  elapsed,
	})
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, answer.Response.Answer)
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "SQL: %s\n", answer.Response.SQLQuery)
	fmt.Fprintf(stdout, "Rows: %d (%s)\n", answer.Response.RowCount, elapsed.Round(time.Millisecond))
	if s.Debug {
		fmt.Fprintf(stdout, "Rounds: %d, tool calls: %d\n", answer.Rounds, answer.ToolCalls)
	}

	for i, row := range answer.Response.Results {
		if i == maxShownRows {
			fmt.Fprintf(stdout, "... (%d more rows)\n", len(answer.Response.Results)-maxShownRows)
			break
		}
		serialized, err := json.Marshal(row)
		if err != nil {
			continue
		}
		fmt.Fprintln(stdout, string(serialized))
	}
}

func (s *Session) exportLast(stdout io.Writer, path string) {
	if s.lastAnswer == nil || len(s.lastAnswer.Response.Results) == 0 {
		fmt.Fprintln(stdout, "nothing to export: ask a question that returns rows first")
		return
	}

	rows := s.lastAnswer.Response.Results
	columnSet := map[string]struct{}{}
	for _, row := range rows {
		for column := range row {
			columnSet[column] = struct{}{}
		}
	}
	columns := make([]string, 0, len(columnSet))
	for column := range columnSet {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	file, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(stdout, "export failed: %v\n", err)
		return
	}
	if err := export.WriteParquet(file, columns, rows); err != nil {
		_ = file.Close()
		fmt.Fprintf(stdout, "export failed: %v\n", err)
		return
	}
	if err := file.Close(); err != nil {
		fmt.Fprintf(stdout, "export failed: %v\n", err)
		return
	}
	fmt.Fprintf(stdout, "exported %d rows to %s\n", len(rows), path)
}

// printSchema shows tables with row counts and per-column statistics, the
// slow Inspector path. The agent takes its own schema snapshot per question.
func (s *Session) printSchema(ctx context.Context, stdout io.Writer) {
	if s.Schema == nil {
		fmt.Fprintln(stdout, "schema inspector is not available")
		return
	}
	stats, err := s.Schema.Statistics(ctx)
	if err != nil {
		fmt.Fprintf(stdout, "error: %v\n", err)
		return
	}
	serialized, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		fmt.Fprintf(stdout, "error: %v\n", err)
		return
	}
	fmt.Fprintln(stdout, string(serialized))
}

func (s *Session) printSessionStats(stdout io.Writer) {
	if s.questions == 0 {
		fmt.Fprintln(stdout, "no questions asked yet")
		return
	}
	average := s.totalElapsed / time.Duration(s.questions)
	fmt.Fprintf(stdout, "Questions: %d\nSucceeded: %d\nAverage latency: %s\n",
		s.questions, s.successes, average.Round(time.Millisecond))
}

func (s *Session) printHistory(stdout io.Writer) {
	if len(s.history) == 0 {
		fmt.Fprintln(stdout, "no questions asked yet")
		return
	}
	for i, entry := range s.history {
		fmt.Fprintf(stdout, "%d. %s\n   SQL: %s (%d rows, %s)\n",
			i+1, entry.Question, entry.SQLQuery, entry.RowCount, entry.Elapsed.Round(time.Millisecond))
	}
}

func (s *Session) printHelp(stdout io.Writer) {
	fmt.Fprintln(stdout, "commands:")
	fmt.Fprintln(stdout, "  help             show this help")
	fmt.Fprintln(stdout, "  schema           show tables with row counts and column statistics")
	fmt.Fprintln(stdout, "  stats            show session counters (questions, successes, latency)")
	fmt.Fprintln(stdout, "  history          show the last 5 questions")
	fmt.Fprintln(stdout, "  export <path>    write the last result rows to a parquet file")
	fmt.Fprintln(stdout, "  debug            toggle round/tool-call output")
	fmt.Fprintln(stdout, "  clear            forget history and the last result")
	fmt.Fprintln(stdout, "  quit             leave")
	fmt.Fprintln(stdout, "anything else is asked as a question")
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
