// Package sqlcheck holds the static safety checks applied to generated SQL
// before anything touches the database or a remote model. The checks are
// deliberately blunt: a substring denylist, a SELECT prefix requirement, and
// parenthesis balance. They are the hard safety layer; semantic verification
// by the model is advisory on top of them.
package sqlcheck

import (
	"fmt"
	"strings"
)

// DeniedKeywords matches the statement's uppercased text anywhere, including
// inside identifiers (CREATED_AT trips CREATE). That is intentional: false
// rejections are recoverable by the driving model, false acceptances are not.
var DeniedKeywords = []string{"DROP", "DELETE", "INSERT", "UPDATE", "ALTER", "CREATE", "TRUNCATE"}

// Check returns nil if the statement passes every static check, or an error
// describing the first rejection. No remote calls are made.
func Check(sqlText string) error {
	upper := strings.ToUpper(strings.TrimSpace(sqlText))

	for _, keyword := range DeniedKeywords {
		if strings.Contains(upper, keyword) {
			return fmt.Errorf("dangerous operation detected: %s; only SELECT queries are allowed", keyword)
		}
	}
	if !strings.HasPrefix(upper, "SELECT") {
		return fmt.Errorf("only SELECT queries are allowed")
	}
	if strings.Count(sqlText, "(") != strings.Count(sqlText, ")") {
		return fmt.Errorf("mismatched parentheses in SQL query")
	}
	return nil
}

// IsSelect reports whether the trimmed statement begins with SELECT. The
// executor applies this guard independently of Check.
func IsSelect(sqlText string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sqlText)), "SELECT")
}
