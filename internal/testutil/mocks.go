// Package testutil provides mock implementations and fixtures shared by
// tests across the module.
package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/askql/askql/internal/embedding"
	"github.com/askql/askql/internal/schema"
)

// MockLLMClient implements llm.Client with scripted responses.
type MockLLMClient struct {
	mu sync.Mutex

	responses []string
	byPrompt  map[string]string
	err       error
	calls     []CompletionCall
	next      int
}

// CompletionCall records one Complete invocation.
type CompletionCall struct {
	Prompt      string
	Temperature float64
}

// LLMOption configures a MockLLMClient.
type LLMOption func(*MockLLMClient)

// WithResponses queues completions returned in order. The last response
// repeats once the queue is exhausted.
func WithResponses(responses ...string) LLMOption {
	return func(m *MockLLMClient) {
		m.responses = responses
	}
}

// WithResponseFor returns a fixed completion whenever the prompt contains
// the given substring.
func WithResponseFor(promptSubstring, response string) LLMOption {
	return func(m *MockLLMClient) {
		m.byPrompt[promptSubstring] = response
	}
}

// WithCompletionError makes every Complete call fail.
func WithCompletionError(err error) LLMOption {
	return func(m *MockLLMClient) {
		m.err = err
	}
}

func NewMockLLMClient(opts ...LLMOption) *MockLLMClient {
	mock := &MockLLMClient{
		byPrompt: make(map[string]string),
	}

	for _, opt := range opts {
		opt(mock)
	}

	return mock
}

func (m *MockLLMClient) Complete(_ context.Context, prompt string, temperature float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, CompletionCall{Prompt: prompt, Temperature: temperature})

	if m.err != nil {
		return "", m.err
	}

	for substring, response := range m.byPrompt {
		if substring != "" && strings.Contains(prompt, substring) {
			return response, nil
		}
	}

	if len(m.responses) == 0 {
		return "", nil
	}

	response := m.responses[min(m.next, len(m.responses)-1)]
	m.next++

	return response, nil
}

// Calls returns a copy of the recorded invocations.
func (m *MockLLMClient) Calls() []CompletionCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]CompletionCall, len(m.calls))
	copy(calls, m.calls)

	return calls
}

// MockEmbeddingProvider implements embedding.Provider deterministically:
// identical role-prefixed text always embeds to the same unit vector, and
// fixtures can pin exact vectors per text.
type MockEmbeddingProvider struct {
	mu sync.Mutex

	dimensions int
	fixed      map[string][]float32
	err        error
	calls      []EmbedCall
}

// EmbedCall records one Embed invocation.
type EmbedCall struct {
	Text string
	Role embedding.Role
}

// EmbeddingOption configures a MockEmbeddingProvider.
type EmbeddingOption func(*MockEmbeddingProvider)

// WithVector pins the vector returned for the given text (without prefix).
func WithVector(text string, vector []float32) EmbeddingOption {
	return func(m *MockEmbeddingProvider) {
		m.fixed[text] = vector
	}
}

// WithEmbedError makes every Embed call fail.
func WithEmbedError(err error) EmbeddingOption {
	return func(m *MockEmbeddingProvider) {
		m.err = err
	}
}

// WithDimensions sets the size of generated vectors (default 8).
func WithDimensions(dimensions int) EmbeddingOption {
	return func(m *MockEmbeddingProvider) {
		m.dimensions = dimensions
	}
}

func NewMockEmbeddingProvider(opts ...EmbeddingOption) *MockEmbeddingProvider {
	mock := &MockEmbeddingProvider{
		dimensions: 8,
		fixed:      make(map[string][]float32),
	}

	for _, opt := range opts {
		opt(mock)
	}

	return mock
}

func (m *MockEmbeddingProvider) Embed(_ context.Context, text string, role embedding.Role) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, EmbedCall{Text: text, Role: role})

	if m.err != nil {
		return nil, m.err
	}

	if vector, ok := m.fixed[text]; ok {
		return vector, nil
	}

	return hashVector(string(role)+text, m.dimensions), nil
}

func (m *MockEmbeddingProvider) Dimensions() int {
	return m.dimensions
}

// Calls returns a copy of the recorded invocations.
func (m *MockEmbeddingProvider) Calls() []EmbedCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]EmbedCall, len(m.calls))
	copy(calls, m.calls)

	return calls
}

// hashVector spreads the text hash across dimensions and normalizes, so
// distinct texts land in distinct directions.
func hashVector(text string, dimensions int) []float32 {
	vector := make([]float32, dimensions)

	var norm float64

	for i := range vector {
		h := fnv.New32a()
		h.Write([]byte(text))
		h.Write([]byte{byte(i)})

		v := float64(h.Sum32()%1000)/500.0 - 1.0
		vector[i] = float32(v)
		norm += v * v
	}

	if norm == 0 {
		vector[0] = 1
		return vector
	}

	scale := float32(1 / math.Sqrt(norm))
	for i := range vector {
		vector[i] *= scale
	}

	return vector
}

// ConcertSchemas returns a small fixture catalog covering two databases.
func ConcertSchemas() []*schema.DatabaseSchema {
	return []*schema.DatabaseSchema{
		{
			Name: "concert_singer",
			Path: "/data/concert_singer.sqlite",
			Tables: []schema.TableSpec{
				{
					Name: "singer",
					Columns: []schema.ColumnSpec{
						{Name: "singer_id", Type: "INTEGER", PrimaryKey: true},
						{Name: "name", Type: "TEXT"},
						{Name: "net_worth", Type: "REAL"},
					},
				},
				{
					Name: "concert",
					Columns: []schema.ColumnSpec{
						{Name: "concert_id", Type: "INTEGER", PrimaryKey: true},
						{Name: "singer_id", Type: "INTEGER", ForeignKey: true, References: "singer(singer_id)"},
						{Name: "year", Type: "INTEGER"},
					},
				},
			},
		},
		{
			Name: "pets",
			Path: "/data/pets.sqlite",
			Tables: []schema.TableSpec{
				{
					Name: "pet",
					Columns: []schema.ColumnSpec{
						{Name: "pet_id", Type: "INTEGER", PrimaryKey: true},
						{Name: "pet_type", Type: "TEXT"},
						{Name: "weight", Type: "REAL"},
					},
				},
			},
		},
	}
}

// ConcertCatalog wraps ConcertSchemas in a catalog, panicking on fixture
// errors so tests stay terse.
func ConcertCatalog() *schema.Catalog {
	catalog, err := schema.NewCatalog(ConcertSchemas())
	if err != nil {
		panic(err)
	}

	return catalog
}
