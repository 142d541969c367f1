// Package selector routes a question to one database and synthesizes a
// candidate SQL query for it in a single model call.
package selector

import "github.com/askql/askql/internal/retriever"

// Kind enumerates the outcomes a selection can take.
type Kind int

const (
	// KindQuery means the model chose a database and produced SQL.
	KindQuery Kind = iota

	// KindAmbiguous means the question is plausible but does not map
	// cleanly onto available columns.
	KindAmbiguous

	// KindIrrelevant means the question does not concern any known database.
	KindIrrelevant

	// KindUnavailable means the question was understood but the requested
	// attribute exists in no schema.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindAmbiguous:
		return "ambiguous"
	case KindIrrelevant:
		return "irrelevant"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Decision is the parsed outcome of one selection call. For KindQuery the
// Database and SQL fields are set; for the sentinel kinds Message carries
// the model's explanation or suggested rephrasing.
type Decision struct {
	Kind      Kind
	Database  string
	SQL       string
	Message   string
	Candidate retriever.Candidate
}
