// Package vectorindex provides an in-memory cosine-similarity index over
// named embedding vectors.
package vectorindex

import (
	"math"
	"sort"
	"sync"

	"github.com/askql/askql/internal/errors"
)

// Match is a single search hit.
type Match struct {
	ID         string
	Similarity float64
}

// Index stores vectors keyed by ID and answers nearest-neighbor queries by
// exhaustive cosine comparison. It is safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

func New() *Index {
	return &Index{vectors: make(map[string][]float32)}
}

// Upsert stores a vector under the given ID, replacing any existing entry.
func (idx *Index) Upsert(id string, vector []float32) error {
	if id == "" {
		return errors.New(errors.ErrTypeInput, "vector ID must not be empty")
	}

	if len(vector) == 0 {
		return errors.Newf(errors.ErrTypeInput, "vector for %q must not be empty", id)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	stored := make([]float32, len(vector))
	copy(stored, vector)
	idx.vectors[id] = stored

	return nil
}

// ReplaceAll atomically swaps the full contents of the index. Rebuilding with
// the same input yields the same index regardless of prior state.
func (idx *Index) ReplaceAll(vectors map[string][]float32) error {
	replacement := make(map[string][]float32, len(vectors))

	for id, vector := range vectors {
		if id == "" {
			return errors.New(errors.ErrTypeInput, "vector ID must not be empty")
		}

		if len(vector) == 0 {
			return errors.Newf(errors.ErrTypeInput, "vector for %q must not be empty", id)
		}

		stored := make([]float32, len(vector))
		copy(stored, vector)
		replacement[id] = stored
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vectors = replacement

	return nil
}

// Search returns up to k entries ranked by descending cosine similarity to
// the query vector. Ties break on ID so results are deterministic.
func (idx *Index) Search(query []float32, k int) []Match {
	if len(query) == 0 || k <= 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := make([]Match, 0, len(idx.vectors))
	for id, vector := range idx.vectors {
		matches = append(matches, Match{
			ID:         id,
			Similarity: CosineSimilarity(query, vector),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}

		return matches[i].ID < matches[j].ID
	})

	if len(matches) > k {
		matches = matches[:k]
	}

	return matches
}

// Count returns the number of stored vectors.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.vectors)
}

// IDs returns the stored IDs in sorted order.
func (idx *Index) IDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := make([]string, 0, len(idx.vectors))
	for id := range idx.vectors {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64

	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
