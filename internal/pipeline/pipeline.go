// Package pipeline orchestrates the question answering flow: retrieval,
// selection, validation, and sandboxed execution, with per-stage timing and
// a confidence score on every outcome.
package pipeline

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/askql/askql/internal/logging"
	"github.com/askql/askql/internal/retriever"
	"github.com/askql/askql/internal/sandbox"
	"github.com/askql/askql/internal/selector"
	"github.com/askql/askql/internal/validate"
)

// Outcome classifies how a request terminated.
type Outcome string

const (
	OutcomeSucceeded    Outcome = "succeeded"
	OutcomeRefused      Outcome = "refused"
	OutcomeNoCandidates Outcome = "no_candidates"
	OutcomeAmbiguous    Outcome = "ambiguous"
	OutcomeIrrelevant   Outcome = "irrelevant"
	OutcomeUnavailable  Outcome = "unavailable"
	OutcomeRejected     Outcome = "rejected"
	OutcomeFailed       Outcome = "failed"
)

// refusalMessage is returned verbatim for mutation-intent questions.
const refusalMessage = "This system only answers read-only questions. " +
	"Requests to modify data are not supported."

// mutationKeywords short-circuit a request before any retrieval or
// generation budget is spent.
var mutationKeywords = []string{
	"delete", "remove", "drop", "update", "insert",
	"create", "alter", "truncate", "erase",
}

var mutationPatterns = buildMutationPatterns()

func buildMutationPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(mutationKeywords))
	for _, kw := range mutationKeywords {
		patterns = append(patterns, regexp.MustCompile(`\b`+kw+`\b`))
	}

	return patterns
}

// Timings records wall-clock duration per stage in milliseconds.
type Timings struct {
	RetrievalMS   int64 `json:"retrieval_ms"`
	SelectionMS   int64 `json:"selection_ms"`
	ValidationMS  int64 `json:"validation_ms"`
	ExecutionMS   int64 `json:"execution_ms"`
	ExplanationMS int64 `json:"explanation_ms"`
	TotalMS       int64 `json:"total_ms"`
}

// Response is the terminal result of one question.
type Response struct {
	RequestID   string          `json:"request_id"`
	Question    string          `json:"question"`
	Success     bool            `json:"success"`
	Outcome     Outcome         `json:"outcome"`
	Database    string          `json:"database,omitempty"`
	SQL         string          `json:"sql,omitempty"`
	Message     string          `json:"message,omitempty"`
	Explanation string          `json:"explanation,omitempty"`
	Columns     []string        `json:"columns,omitempty"`
	Rows        [][]interface{} `json:"rows,omitempty"`
	RowCount    int             `json:"row_count"`
	Truncated   bool            `json:"truncated,omitempty"`
	Confidence  float64         `json:"confidence"`
	Timings     Timings         `json:"timings"`
}

// Pipeline wires the stages together. All dependencies are injected at
// construction and treated as read-only afterwards.
type Pipeline struct {
	retriever *retriever.Retriever
	selector  *selector.Selector
	sandbox   *sandbox.Sandbox
	topK      int
	logger    *logging.Logger
}

func New(r *retriever.Retriever, s *selector.Selector, sb *sandbox.Sandbox, topK int, logger *logging.Logger) *Pipeline {
	return &Pipeline{
		retriever: r,
		selector:  s,
		sandbox:   sb,
		topK:      topK,
		logger:    logger,
	}
}

// Ask runs the full pipeline for one question. Every path returns a
// populated Response; unexpected panics are caught at this boundary and
// surfaced as a generic failure.
func (p *Pipeline) Ask(ctx context.Context, question string) (resp *Response) {
	start := time.Now()

	resp = &Response{
		RequestID: uuid.New().String(),
		Question:  question,
	}

	logger := p.logger.WithField("request_id", resp.RequestID)

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("pipeline panic recovered")

			resp.Success = false
			resp.Outcome = OutcomeFailed
			resp.Message = "internal error while processing the question"
			resp.Confidence = 0
		}

		resp.Timings.TotalMS = time.Since(start).Milliseconds()
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		resp.Outcome = OutcomeRefused
		resp.Message = "question is empty"

		return resp
	}

	if kw := mutationIntent(question); kw != "" {
		logger.WithField("keyword", kw).Info("refusing mutation-intent question")

		resp.Outcome = OutcomeRefused
		resp.Message = refusalMessage

		return resp
	}

	// START -> RETRIEVED
	stageStart := time.Now()
	candidates, err := p.retriever.Search(ctx, question, p.topK)
	resp.Timings.RetrievalMS = time.Since(stageStart).Milliseconds()

	if err != nil {
		logger.ErrorWithErr("retrieval failed", err)

		resp.Outcome = OutcomeFailed
		resp.Message = "failed to search the schema catalog: " + err.Error()

		return resp
	}

	if len(candidates) == 0 {
		resp.Outcome = OutcomeNoCandidates
		resp.Message = "no suitable database found for this question"

		return resp
	}

	similarity := candidates[0].Similarity

	// RETRIEVED -> ROUTED
	stageStart = time.Now()
	decision, err := p.selector.Select(ctx, question, candidates)
	resp.Timings.SelectionMS = time.Since(stageStart).Milliseconds()

	if err != nil {
		logger.ErrorWithErr("selection failed", err)

		resp.Outcome = OutcomeFailed
		resp.Message = "failed to interpret the question: " + err.Error()
		resp.Confidence = Confidence(similarity, false, false, 0)

		return resp
	}

	resp.Database = decision.Candidate.Name
	similarity = decision.Candidate.Similarity

	if decision.Kind != selector.KindQuery {
		resp.Outcome = sentinelOutcome(decision.Kind)
		resp.Message = decision.Message
		resp.Confidence = Confidence(similarity, false, false, 0)

		logger.WithFields(map[string]interface{}{
			"outcome":  string(resp.Outcome),
			"database": resp.Database,
		}).Info("selection returned a sentinel outcome")

		return resp
	}

	resp.SQL = decision.SQL

	// ROUTED -> VALIDATED
	stageStart = time.Now()
	err = validate.Validate(decision.SQL)
	resp.Timings.ValidationMS = time.Since(stageStart).Milliseconds()

	if err != nil {
		logger.WithField("sql", decision.SQL).WithError(err).Warn("generated query rejected")

		resp.Outcome = OutcomeRejected
		resp.Message = err.Error()
		resp.Confidence = Confidence(similarity, false, false, 0)

		return resp
	}

	// VALIDATED -> EXECUTED
	stageStart = time.Now()
	result, err := p.sandbox.Execute(ctx, decision.Candidate.Schema.Path, decision.SQL)
	resp.Timings.ExecutionMS = time.Since(stageStart).Milliseconds()

	if err != nil {
		logger.ErrorWithErr("query execution failed", err)

		resp.Outcome = OutcomeFailed
		resp.Message = "query execution failed: " + err.Error()
		resp.Confidence = Confidence(similarity, true, false, 0)

		return resp
	}

	// EXECUTED -> SUCCEEDED
	stageStart = time.Now()
	resp.Explanation = p.selector.Explain(ctx, question, decision.SQL, result.RowCount)
	resp.Timings.ExplanationMS = time.Since(stageStart).Milliseconds()

	resp.Success = true
	resp.Outcome = OutcomeSucceeded
	resp.Columns = result.Columns
	resp.Rows = result.Rows
	resp.RowCount = result.RowCount
	resp.Truncated = result.Truncated
	resp.Confidence = Confidence(similarity, true, true, result.RowCount)

	logger.WithFields(map[string]interface{}{
		"database":   resp.Database,
		"row_count":  resp.RowCount,
		"confidence": resp.Confidence,
	}).Info("question answered")

	return resp
}

// mutationIntent returns the matched mutation keyword, or "" when the
// question is read-only.
func mutationIntent(question string) string {
	lower := strings.ToLower(question)

	for i, pattern := range mutationPatterns {
		if pattern.MatchString(lower) {
			return mutationKeywords[i]
		}
	}

	return ""
}

func sentinelOutcome(kind selector.Kind) Outcome {
	switch kind {
	case selector.KindAmbiguous:
		return OutcomeAmbiguous
	case selector.KindIrrelevant:
		return OutcomeIrrelevant
	case selector.KindUnavailable:
		return OutcomeUnavailable
	default:
		return OutcomeFailed
	}
}
