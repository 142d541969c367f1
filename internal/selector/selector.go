package selector

import (
	"context"
	"regexp"
	"strings"

	"github.com/askql/askql/internal/errors"
	"github.com/askql/askql/internal/llm"
	"github.com/askql/askql/internal/logging"
	"github.com/askql/askql/internal/retriever"
)

// Sampling temperatures. Selection runs near-deterministic; explanations
// get a little room to phrase.
const (
	selectionTemperature   = 0.1
	explanationTemperature = 0.3
)

// tableRefPattern extracts table identifiers following FROM and JOIN.
var tableRefPattern = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([A-Za-z_][A-Za-z0-9_]*)`)

// Selector turns a question plus ranked candidates into a Decision with a
// single model call.
type Selector struct {
	client llm.Client
	logger *logging.Logger
}

func New(client llm.Client, logger *logging.Logger) *Selector {
	return &Selector{client: client, logger: logger}
}

// Select prompts the model with the top candidate schemas and decodes its
// response. A generated query that references tables outside the chosen
// database degrades to an ambiguous outcome rather than being executed
// against the wrong schema.
func (s *Selector) Select(ctx context.Context, question string, candidates []retriever.Candidate) (Decision, error) {
	if len(candidates) == 0 {
		return Decision{}, errors.New(errors.ErrTypeRouting, "no candidate databases to select from")
	}

	prompt := buildSelectionPrompt(question, candidates)

	response, err := s.client.Complete(ctx, prompt, selectionTemperature)
	if err != nil {
		return Decision{}, errors.Wrap(err, errors.ErrTypeModel, "selection call failed")
	}

	decision := parseResponse(response, candidates)

	s.logger.WithFields(map[string]interface{}{
		"kind":     decision.Kind.String(),
		"database": decision.Database,
	}).Debug("selection decoded")

	if decision.Kind == KindQuery && decision.SQL != "" {
		if unknown := unknownTables(decision); unknown != "" {
			return Decision{
				Kind: KindAmbiguous,
				Message: "the generated query references " + unknown +
					", which is not a table in " + decision.Database +
					"; try rephrasing with the table names from that database",
				Candidate: decision.Candidate,
			}, nil
		}
	}

	return decision, nil
}

// Explain produces a one-sentence summary of an executed result. Failures
// degrade to an empty explanation.
func (s *Selector) Explain(ctx context.Context, question, sqlQuery string, rowCount int) string {
	prompt := buildExplanationPrompt(question, sqlQuery, rowCount)

	explanation, err := s.client.Complete(ctx, prompt, explanationTemperature)
	if err != nil {
		s.logger.WithError(err).Warn("explanation call failed, continuing without one")
		return ""
	}

	return strings.TrimSpace(explanation)
}

// unknownTables returns the first referenced table missing from the chosen
// schema, or "" when all references resolve.
func unknownTables(decision Decision) string {
	if decision.Candidate.Schema == nil {
		return ""
	}

	for _, match := range tableRefPattern.FindAllStringSubmatch(decision.SQL, -1) {
		table := match[1]
		if !decision.Candidate.Schema.HasTable(table) {
			return table
		}
	}

	return ""
}
