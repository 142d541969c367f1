package selector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askql/askql/internal/logging"
	"github.com/askql/askql/internal/testutil"
)

func TestSelectDecodesQuery(t *testing.T) {
	client := testutil.NewMockLLMClient(testutil.WithResponses(
		"DATABASE: concert_singer\nSQL: SELECT name FROM singer;"))

	s := New(client, logging.GetLogger())

	decision, err := s.Select(context.Background(), "list all singer names", fixtureCandidates())
	require.NoError(t, err)

	assert.Equal(t, KindQuery, decision.Kind)
	assert.Equal(t, "concert_singer", decision.Database)
	assert.Equal(t, "SELECT name FROM singer;", decision.SQL)

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.InDelta(t, selectionTemperature, calls[0].Temperature, 1e-9)

	// The prompt carries full column-level schema definitions and the guard
	assert.Contains(t, calls[0].Prompt, "CREATE TABLE singer")
	assert.Contains(t, calls[0].Prompt, "net_worth")
	assert.Contains(t, calls[0].Prompt, "AMBIGUOUS")
	assert.Contains(t, calls[0].Prompt, "list all singer names")
}

func TestSelectPromptShowsAtMostThreeSchemas(t *testing.T) {
	candidates := fixtureCandidates()
	extra := candidates[0]

	for _, name := range []string{"a", "b", "c"} {
		clone := extra
		clone.Name = name
		candidates = append(candidates, clone)
	}

	client := testutil.NewMockLLMClient(testutil.WithResponses(
		"DATABASE: concert_singer\nSQL: SELECT 1;"))
	s := New(client, logging.GetLogger())

	_, err := s.Select(context.Background(), "question", candidates)
	require.NoError(t, err)

	prompt := client.Calls()[0].Prompt
	assert.Contains(t, prompt, "-- Database: concert_singer")
	assert.Contains(t, prompt, "-- Database: a")
	assert.NotContains(t, prompt, "-- Database: b")
	assert.NotContains(t, prompt, "-- Database: c")
}

func TestSelectSentinelPassesThrough(t *testing.T) {
	client := testutil.NewMockLLMClient(testutil.WithResponses(
		"AMBIGUOUS: did you mean net_worth?"))
	s := New(client, logging.GetLogger())

	decision, err := s.Select(context.Background(), "how rich is each singer", fixtureCandidates())
	require.NoError(t, err)

	assert.Equal(t, KindAmbiguous, decision.Kind)
	assert.Equal(t, "did you mean net_worth?", decision.Message)
}

func TestSelectDegradesOnForeignTable(t *testing.T) {
	// Model picks concert_singer but queries a table from another schema
	client := testutil.NewMockLLMClient(testutil.WithResponses(
		"DATABASE: concert_singer\nSQL: SELECT pet_type FROM pet;"))
	s := New(client, logging.GetLogger())

	decision, err := s.Select(context.Background(), "what pets are there", fixtureCandidates())
	require.NoError(t, err)

	assert.Equal(t, KindAmbiguous, decision.Kind)
	assert.Contains(t, decision.Message, "pet")
	assert.Contains(t, decision.Message, "concert_singer")
}

func TestSelectAcceptsAliasedJoins(t *testing.T) {
	client := testutil.NewMockLLMClient(testutil.WithResponses(
		"DATABASE: concert_singer\nSQL: SELECT s.name FROM singer s JOIN concert c ON s.singer_id = c.singer_id;"))
	s := New(client, logging.GetLogger())

	decision, err := s.Select(context.Background(), "singers with concerts", fixtureCandidates())
	require.NoError(t, err)
	assert.Equal(t, KindQuery, decision.Kind)
}

func TestSelectModelErrorPropagates(t *testing.T) {
	client := testutil.NewMockLLMClient(
		testutil.WithCompletionError(errors.New("model unavailable")))
	s := New(client, logging.GetLogger())

	_, err := s.Select(context.Background(), "anything", fixtureCandidates())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestSelectRequiresCandidates(t *testing.T) {
	s := New(testutil.NewMockLLMClient(), logging.GetLogger())

	_, err := s.Select(context.Background(), "anything", nil)
	require.Error(t, err)
}

func TestExplainReturnsSummary(t *testing.T) {
	client := testutil.NewMockLLMClient(testutil.WithResponses(
		"  There are six singers in total.  "))
	s := New(client, logging.GetLogger())

	explanation := s.Explain(context.Background(), "how many singers", "SELECT COUNT(*) FROM singer;", 1)
	assert.Equal(t, "There are six singers in total.", explanation)

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.InDelta(t, explanationTemperature, calls[0].Temperature, 1e-9)
}

func TestExplainDegradesToEmpty(t *testing.T) {
	client := testutil.NewMockLLMClient(
		testutil.WithCompletionError(errors.New("model unavailable")))
	s := New(client, logging.GetLogger())

	assert.Empty(t, s.Explain(context.Background(), "q", "SELECT 1;", 0))
}
