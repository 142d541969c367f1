// Package validate classifies candidate SQL as safe-to-run or rejected.
// Everything here is pure and concurrency-safe: no state is shared between
// calls and the same input always yields the same outcome.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// deniedKeywords are rejected anywhere in the query as whole words,
// including inside parenthesized subexpressions.
var deniedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE",
	"EXEC", "EXECUTE", "GRANT", "REVOKE", "ATTACH", "DETACH", "PRAGMA",
	"VACUUM", "REINDEX",
}

// injectionPatterns are matched against the upper-cased query
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`;\s*--`),             // comment after terminator
	regexp.MustCompile(`--\s*$`),             // trailing line comment
	regexp.MustCompile(`/\*.*\*/`),           // block comment
	regexp.MustCompile(`@@`),                 // system variable reference
	regexp.MustCompile(`UNION\s+ALL\s+SELECT`),
	regexp.MustCompile(`OR\s+1\s*=\s*1`),     // always-true condition
	regexp.MustCompile(`OR\s+'1'\s*=\s*'1'`),
}

var (
	keywordPatterns = buildKeywordPatterns()
	subExprPattern  = regexp.MustCompile(`\(([^)]+)\)`)
)

func buildKeywordPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(deniedKeywords))
	for _, kw := range deniedKeywords {
		patterns[kw] = regexp.MustCompile(`\b` + kw + `\b`)
	}

	return patterns
}

// RejectionError explains why a query was rejected, naming the violated rule
type RejectionError struct {
	Rule   string
	Reason string
}

func (e *RejectionError) Error() string {
	return e.Reason
}

// Validate checks whether the query is a safe, single-statement, read-only
// SELECT. Returns nil when the query may be executed; otherwise a
// *RejectionError describing the first violated rule.
func Validate(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return &RejectionError{Rule: "empty", Reason: "query is empty"}
	}

	normalized := strings.ToUpper(trimmed)

	if !strings.HasPrefix(normalized, "SELECT") {
		return &RejectionError{
			Rule:   "not_select",
			Reason: "only SELECT queries are supported",
		}
	}

	if kw := findDeniedKeyword(normalized); kw != "" {
		return &RejectionError{
			Rule:   "denied_keyword",
			Reason: fmt.Sprintf("keyword %q is not allowed", kw),
		}
	}

	// One trailing terminator is fine; anything beyond that is a second statement
	single := strings.TrimSuffix(trimmed, ";")
	if strings.Contains(single, ";") {
		return &RejectionError{
			Rule:   "multiple_statements",
			Reason: "multiple SQL statements are not supported",
		}
	}

	for _, pattern := range injectionPatterns {
		if pattern.MatchString(normalized) {
			return &RejectionError{
				Rule:   "injection_pattern",
				Reason: "query matches a suspicious SQL pattern",
			}
		}
	}

	// Parenthesized subexpressions are scanned separately so a denied
	// keyword cannot hide inside a subquery
	for _, match := range subExprPattern.FindAllStringSubmatch(normalized, -1) {
		if kw := findDeniedKeyword(match[1]); kw != "" {
			return &RejectionError{
				Rule:   "denied_keyword",
				Reason: fmt.Sprintf("keyword %q is not allowed in a subexpression", kw),
			}
		}
	}

	return nil
}

func findDeniedKeyword(normalized string) string {
	for _, kw := range deniedKeywords {
		if keywordPatterns[kw].MatchString(normalized) {
			return kw
		}
	}

	return ""
}
