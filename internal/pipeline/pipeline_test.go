package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askql/askql/internal/logging"
	"github.com/askql/askql/internal/retriever"
	"github.com/askql/askql/internal/sandbox"
	"github.com/askql/askql/internal/schema"
	"github.com/askql/askql/internal/selector"
	"github.com/askql/askql/internal/testutil"
)

// buildFixture creates a real singer database on disk and a pipeline whose
// catalog points at it, with scripted model responses.
func buildFixture(t *testing.T, llmOpts ...testutil.LLMOption) (*Pipeline, *testutil.MockLLMClient) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "concert_singer.sqlite")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE singer (
		singer_id INTEGER PRIMARY KEY,
		name TEXT,
		net_worth REAL
	)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO singer VALUES (1, 'Joe', 5.0), (2, 'Ann', 12.0)`)
	require.NoError(t, err)

	schemas := testutil.ConcertSchemas()
	schemas[0].Path = dbPath

	catalog, err := schema.NewCatalog(schemas)
	require.NoError(t, err)

	client := testutil.NewMockLLMClient(llmOpts...)
	logger := logging.GetLogger()

	r := retriever.New(testutil.NewMockEmbeddingProvider(), catalog, logger)
	require.NoError(t, r.BuildIndex(context.Background()))

	p := New(
		r,
		selector.New(client, logger),
		sandbox.New(5*time.Second, 1000),
		5,
		logger,
	)

	return p, client
}

func TestAskSucceeds(t *testing.T) {
	p, client := buildFixture(t,
		testutil.WithResponseFor("Question:", "DATABASE: concert_singer\nSQL: SELECT name FROM singer ORDER BY singer_id;"),
		testutil.WithResponseFor("Summarize", "The singers are Joe and Ann."),
	)

	resp := p.Ask(context.Background(), "list all singer names")

	assert.True(t, resp.Success)
	assert.Equal(t, OutcomeSucceeded, resp.Outcome)
	assert.Equal(t, "concert_singer", resp.Database)
	assert.Equal(t, "SELECT name FROM singer ORDER BY singer_id;", resp.SQL)
	assert.Equal(t, []string{"name"}, resp.Columns)
	assert.Equal(t, 2, resp.RowCount)
	assert.Equal(t, "The singers are Joe and Ann.", resp.Explanation)
	assert.NotEmpty(t, resp.RequestID)

	assert.GreaterOrEqual(t, resp.Confidence, 0.0)
	assert.LessOrEqual(t, resp.Confidence, 100.0)
	assert.GreaterOrEqual(t, resp.Timings.TotalMS, int64(0))

	// selection plus explanation
	assert.Len(t, client.Calls(), 2)
}

func TestAskRefusesMutationIntent(t *testing.T) {
	p, client := buildFixture(t)

	resp := p.Ask(context.Background(), "please delete all rows from singer")

	assert.False(t, resp.Success)
	assert.Equal(t, OutcomeRefused, resp.Outcome)
	assert.Equal(t, refusalMessage, resp.Message)
	assert.Zero(t, resp.Confidence)

	// No retrieval or generation budget was spent
	assert.Empty(t, client.Calls())
}

func TestAskRefusesEmptyQuestion(t *testing.T) {
	p, client := buildFixture(t)

	resp := p.Ask(context.Background(), "   ")

	assert.Equal(t, OutcomeRefused, resp.Outcome)
	assert.Empty(t, client.Calls())
}

func TestAskMutationKeywordsWholeWordOnly(t *testing.T) {
	p, _ := buildFixture(t,
		testutil.WithResponseFor("Question:", "DATABASE: concert_singer\nSQL: SELECT name FROM singer;"),
	)

	// "created" contains "create" as a substring only
	resp := p.Ask(context.Background(), "which singers created the most concerts")
	assert.NotEqual(t, OutcomeRefused, resp.Outcome)
}

func TestAskAmbiguousSentinel(t *testing.T) {
	p, _ := buildFixture(t,
		testutil.WithResponseFor("Question:", "AMBIGUOUS: did you mean net_worth instead of salary?"))

	resp := p.Ask(context.Background(), "what is each singer's salary")

	assert.False(t, resp.Success)
	assert.Equal(t, OutcomeAmbiguous, resp.Outcome)
	assert.Equal(t, "did you mean net_worth instead of salary?", resp.Message)
	assert.Empty(t, resp.SQL)

	// Similarity-only confidence: validity and execution score zero
	assert.Less(t, resp.Confidence, 60.0)
}

func TestAskUnavailableSentinel(t *testing.T) {
	p, _ := buildFixture(t,
		testutil.WithResponseFor("Question:", "UNAVAILABLE: no schema stores birthdays"))

	resp := p.Ask(context.Background(), "when was each singer born")

	assert.Equal(t, OutcomeUnavailable, resp.Outcome)
	assert.Equal(t, "no schema stores birthdays", resp.Message)
}

func TestAskRejectsUnsafeGeneratedSQL(t *testing.T) {
	p, _ := buildFixture(t,
		testutil.WithResponseFor("Question:", "DATABASE: concert_singer\nSQL: SELECT * FROM singer; DROP TABLE singer;"))

	resp := p.Ask(context.Background(), "show everything about singers")

	assert.False(t, resp.Success)
	assert.Equal(t, OutcomeRejected, resp.Outcome)
	assert.Contains(t, resp.Message, "DROP")
}

func TestAskEmptySQLFailsValidationNotCrash(t *testing.T) {
	p, _ := buildFixture(t,
		testutil.WithResponseFor("Question:", "I cannot help with that."))

	resp := p.Ask(context.Background(), "list singers")

	assert.False(t, resp.Success)
	assert.Equal(t, OutcomeRejected, resp.Outcome)
}

func TestAskExecutionFailure(t *testing.T) {
	p, _ := buildFixture(t,
		testutil.WithResponseFor("Question:", "DATABASE: concert_singer\nSQL: SELECT no_such_column FROM singer;"))

	resp := p.Ask(context.Background(), "list singers")

	assert.False(t, resp.Success)
	assert.Equal(t, OutcomeFailed, resp.Outcome)
	assert.Contains(t, resp.Message, "execution failed")
}

func TestAskModelFailure(t *testing.T) {
	p, _ := buildFixture(t,
		testutil.WithCompletionError(errors.New("model offline")))

	resp := p.Ask(context.Background(), "list singers")

	assert.False(t, resp.Success)
	assert.Equal(t, OutcomeFailed, resp.Outcome)
	assert.Contains(t, resp.Message, "model offline")
}

func TestAskExplanationFailureDegrades(t *testing.T) {
	p, _ := buildFixture(t,
		testutil.WithResponseFor("Question:", "DATABASE: concert_singer\nSQL: SELECT name FROM singer;"),
		testutil.WithResponseFor("Summarize", ""),
	)

	resp := p.Ask(context.Background(), "list singer names")

	assert.True(t, resp.Success)
	assert.Empty(t, resp.Explanation)
}

func TestAskEmptyResultSucceeds(t *testing.T) {
	p, _ := buildFixture(t,
		testutil.WithResponseFor("Question:", "DATABASE: concert_singer\nSQL: SELECT name FROM singer WHERE net_worth > 1000;"),
		testutil.WithResponseFor("Summarize", "No singer is that wealthy."),
	)

	resp := p.Ask(context.Background(), "which singers have net_worth over 1000")

	assert.True(t, resp.Success)
	assert.Equal(t, 0, resp.RowCount)
	assert.Greater(t, resp.Confidence, 0.0)
}
