package selector

import (
	"strings"

	"github.com/askql/askql/internal/retriever"
)

// Response markers and sentinel prefixes, matched case-insensitively at the
// start of a line.
const (
	markerDatabase = "DATABASE:"
	markerSQL      = "SQL:"

	sentinelAmbiguous   = "AMBIGUOUS:"
	sentinelIrrelevant  = "IRRELEVANT:"
	sentinelUnavailable = "UNAVAILABLE:"
)

// parseResponse decodes a raw model completion into a Decision. The grammar
// is deliberately small: sentinel prefixes win outright; otherwise the
// DATABASE and SQL marker lines are scanned independently of order, with the
// SQL block continuing across lines until a statement terminator. A line
// beginning with SELECT opens the SQL block even without its marker. A database
// name that matches no candidate falls back to the top-ranked one, as does a
// response where nothing parses (the empty SQL then fails validation
// downstream instead of crashing).
func parseResponse(response string, candidates []retriever.Candidate) Decision {
	top := candidates[0]

	lines := strings.Split(stripFences(response), "\n")

	var (
		database   string
		sqlBuilder strings.Builder
		inSQL      bool
		sqlDone    bool
	)

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if kind, message, ok := matchSentinel(line); ok {
			return Decision{
				Kind:      kind,
				Message:   message,
				Candidate: top,
			}
		}

		upper := strings.ToUpper(line)

		if rest, ok := cutMarker(line, upper, markerDatabase); ok {
			database = strings.TrimSpace(rest)
			continue
		}

		if inSQL && !sqlDone {
			sqlBuilder.WriteString(" ")
			sqlBuilder.WriteString(line)

			if strings.Contains(line, ";") {
				sqlDone = true
				inSQL = false
			}

			continue
		}

		if sqlBuilder.Len() > 0 {
			continue
		}

		fragment := ""
		if rest, ok := cutMarker(line, upper, markerSQL); ok {
			fragment = strings.TrimSpace(rest)
		} else if strings.HasPrefix(upper, "SELECT") {
			// Models occasionally emit the statement without the marker.
			fragment = line
		} else {
			continue
		}

		sqlBuilder.WriteString(fragment)

		if !strings.Contains(fragment, ";") {
			inSQL = true
		} else {
			sqlDone = true
		}
	}

	sqlQuery := strings.TrimSpace(sqlBuilder.String())
	candidate := resolveCandidate(database, candidates)

	return Decision{
		Kind:      KindQuery,
		Database:  candidate.Name,
		SQL:       sqlQuery,
		Candidate: candidate,
	}
}

// matchSentinel reports whether the line begins with a sentinel prefix and
// returns the decoded kind and trailing message.
func matchSentinel(line string) (Kind, string, bool) {
	upper := strings.ToUpper(line)

	for _, s := range []struct {
		prefix string
		kind   Kind
	}{
		{sentinelAmbiguous, KindAmbiguous},
		{sentinelIrrelevant, KindIrrelevant},
		{sentinelUnavailable, KindUnavailable},
	} {
		if strings.HasPrefix(upper, s.prefix) {
			return s.kind, strings.TrimSpace(line[len(s.prefix):]), true
		}
	}

	return KindQuery, "", false
}

// cutMarker strips a case-insensitive marker prefix from the line.
func cutMarker(line, upper, marker string) (string, bool) {
	if !strings.HasPrefix(upper, marker) {
		return "", false
	}

	return line[len(marker):], true
}

// stripFences removes Markdown code-fence lines and a leading language tag,
// which smaller models like to wrap SQL in despite instructions.
func stripFences(response string) string {
	var kept []string

	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			continue
		}

		if strings.EqualFold(trimmed, "sql") {
			continue
		}

		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}

// resolveCandidate maps a parsed database name back onto a candidate,
// accepting an exact or substring match in either direction. Anything else
// resolves to the top-ranked candidate.
func resolveCandidate(database string, candidates []retriever.Candidate) retriever.Candidate {
	if database == "" {
		return candidates[0]
	}

	lower := strings.ToLower(database)

	for _, candidate := range candidates {
		if strings.EqualFold(candidate.Name, database) {
			return candidate
		}
	}

	for _, candidate := range candidates {
		name := strings.ToLower(candidate.Name)
		if strings.Contains(name, lower) || strings.Contains(lower, name) {
			return candidate
		}
	}

	return candidates[0]
}
