package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askql/askql/internal/embedding"
	"github.com/askql/askql/internal/logging"
	"github.com/askql/askql/internal/testutil"
)

func TestBuildIndexEmbedsEverySchema(t *testing.T) {
	catalog := testutil.ConcertCatalog()
	provider := testutil.NewMockEmbeddingProvider()
	r := New(provider, catalog, logging.GetLogger())

	require.NoError(t, r.BuildIndex(context.Background()))
	assert.Equal(t, 2, r.IndexedCount())

	calls := provider.Calls()
	require.Len(t, calls, 2)

	for _, call := range calls {
		assert.Equal(t, embedding.RoleDocument, call.Role)
		assert.Contains(t, call.Text, "Database: ")
	}
}

func TestBuildIndexIsIdempotent(t *testing.T) {
	catalog := testutil.ConcertCatalog()
	r := New(testutil.NewMockEmbeddingProvider(), catalog, logging.GetLogger())

	require.NoError(t, r.BuildIndex(context.Background()))
	require.NoError(t, r.BuildIndex(context.Background()))

	assert.Equal(t, catalog.Len(), r.IndexedCount())
}

func TestBuildIndexPropagatesEmbedError(t *testing.T) {
	provider := testutil.NewMockEmbeddingProvider(
		testutil.WithEmbedError(errors.New("embedding service down")))
	r := New(provider, testutil.ConcertCatalog(), logging.GetLogger())

	err := r.BuildIndex(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding service down")
	assert.Equal(t, 0, r.IndexedCount())
}

func TestSearchRanksByQuestionSimilarity(t *testing.T) {
	catalog := testutil.ConcertCatalog()

	concerts := catalog.Get("concert_singer")
	pets := catalog.Get("pets")
	require.NotNil(t, concerts)
	require.NotNil(t, pets)

	provider := testutil.NewMockEmbeddingProvider(
		testutil.WithVector(concerts.EmbeddingText(), []float32{1, 0, 0}),
		testutil.WithVector(pets.EmbeddingText(), []float32{0, 1, 0}),
		testutil.WithVector("how many singers are there", []float32{0.95, 0.05, 0}),
	)

	r := New(provider, catalog, logging.GetLogger())
	require.NoError(t, r.BuildIndex(context.Background()))

	candidates, err := r.Search(context.Background(), "how many singers are there", 5)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, "concert_singer", candidates[0].Name)
	assert.Equal(t, "pets", candidates[1].Name)
	assert.Greater(t, candidates[0].Similarity, candidates[1].Similarity)
	assert.Equal(t, concerts.EmbeddingText(), candidates[0].Document)
	assert.Same(t, concerts, candidates[0].Schema)
}

func TestSearchUsesQueryRole(t *testing.T) {
	provider := testutil.NewMockEmbeddingProvider()
	r := New(provider, testutil.ConcertCatalog(), logging.GetLogger())

	require.NoError(t, r.BuildIndex(context.Background()))

	_, err := r.Search(context.Background(), "list pets", 3)
	require.NoError(t, err)

	calls := provider.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, embedding.RoleQuery, last.Role)
	assert.Equal(t, "list pets", last.Text)
}

func TestSearchTopKLimitsResults(t *testing.T) {
	r := New(testutil.NewMockEmbeddingProvider(), testutil.ConcertCatalog(), logging.GetLogger())
	require.NoError(t, r.BuildIndex(context.Background()))

	candidates, err := r.Search(context.Background(), "anything", 1)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestSearchRequiresBuiltIndex(t *testing.T) {
	r := New(testutil.NewMockEmbeddingProvider(), testutil.ConcertCatalog(), logging.GetLogger())

	_, err := r.Search(context.Background(), "anything", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reindex")
}
