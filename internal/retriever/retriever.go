// Package retriever ranks catalog databases by semantic similarity to a
// natural-language question.
package retriever

import (
	"context"

	"github.com/askql/askql/internal/embedding"
	"github.com/askql/askql/internal/errors"
	"github.com/askql/askql/internal/logging"
	"github.com/askql/askql/internal/schema"
	"github.com/askql/askql/internal/vectorindex"
)

// Candidate is a database ranked against a question.
type Candidate struct {
	Name       string                 `json:"name"`
	Similarity float64                `json:"similarity"`
	Document   string                 `json:"document"`
	Schema     *schema.DatabaseSchema `json:"-"`
}

// Retriever embeds catalog schemas into a vector index and answers
// top-K similarity searches over them.
type Retriever struct {
	provider embedding.Provider
	index    *vectorindex.Index
	catalog  *schema.Catalog
	logger   *logging.Logger
}

func New(provider embedding.Provider, catalog *schema.Catalog, logger *logging.Logger) *Retriever {
	return &Retriever{
		provider: provider,
		index:    vectorindex.New(),
		catalog:  catalog,
		logger:   logger,
	}
}

// BuildIndex embeds every catalog schema as a document and swaps the index
// contents in one step, so a rebuild over the same catalog is idempotent and
// searches never observe a partially built index.
func (r *Retriever) BuildIndex(ctx context.Context) error {
	vectors := make(map[string][]float32, r.catalog.Len())

	for _, dbSchema := range r.catalog.All() {
		document := dbSchema.EmbeddingText()

		vector, err := r.provider.Embed(ctx, document, embedding.RoleDocument)
		if err != nil {
			return errors.Wrapf(err, errors.ErrTypeModel,
				"failed to embed schema for database %s", dbSchema.Name)
		}

		vectors[dbSchema.Name] = vector

		r.logger.WithFields(map[string]interface{}{
			"database":   dbSchema.Name,
			"dimensions": len(vector),
		}).Debug("embedded database schema")
	}

	if err := r.index.ReplaceAll(vectors); err != nil {
		return err
	}

	r.logger.WithField("databases", len(vectors)).Info("schema index built")

	return nil
}

// Search embeds the question as a query and returns up to topK candidates
// ranked by descending cosine similarity.
func (r *Retriever) Search(ctx context.Context, question string, topK int) ([]Candidate, error) {
	if r.index.Count() == 0 {
		return nil, errors.New(errors.ErrTypeRouting,
			"schema index is empty, run a reindex first")
	}

	vector, err := r.provider.Embed(ctx, question, embedding.RoleQuery)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeModel, "failed to embed question")
	}

	matches := r.index.Search(vector, topK)

	candidates := make([]Candidate, 0, len(matches))
	for _, match := range matches {
		dbSchema := r.catalog.Get(match.ID)
		if dbSchema == nil {
			continue
		}

		candidates = append(candidates, Candidate{
			Name:       match.ID,
			Similarity: match.Similarity,
			Document:   dbSchema.EmbeddingText(),
			Schema:     dbSchema,
		})
	}

	return candidates, nil
}

// IndexedCount returns the number of databases in the index.
func (r *Retriever) IndexedCount() int {
	return r.index.Count()
}
