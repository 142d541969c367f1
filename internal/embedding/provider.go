// Package embedding produces dense vector representations of text through an
// embedding model API.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/askql/askql/internal/errors"
)

// Role distinguishes document embeddings from query embeddings. Asymmetric
// models such as E5 expect a role prefix on the input text and produce
// incomparable vectors without it.
type Role string

const (
	// RoleDocument marks text being indexed.
	RoleDocument Role = "passage: "

	// RoleQuery marks text being searched for.
	RoleQuery Role = "query: "
)

// Provider generates embeddings for text.
type Provider interface {
	// Embed returns the embedding vector for the given text. The role prefix
	// is applied before the text is sent to the model.
	Embed(ctx context.Context, text string, role Role) ([]float32, error)

	// Dimensions returns the dimensionality of vectors this provider produces.
	Dimensions() int
}

// Config holds embedding provider settings.
type Config struct {
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// OllamaProvider calls the Ollama embeddings endpoint.
type OllamaProvider struct {
	config     Config
	httpClient *http.Client
}

func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	if config.Model == "" {
		return nil, errors.New(errors.ErrTypeConfig, "embedding model is required")
	}

	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	return &OllamaProvider{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

func (p *OllamaProvider) Embed(ctx context.Context, text string, role Role) ([]float32, error) {
	reqBody := ollamaEmbedRequest{
		Model:  p.config.Model,
		Prompt: string(role) + text,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeModel, "failed to marshal embedding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.BaseURL+"/api/embeddings", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeModel, "failed to create embedding request")
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeModel, "embedding request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeModel, "failed to read embedding response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrTypeModel,
			"embedding request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response ollamaEmbedResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeModel, "failed to parse embedding response")
	}

	if response.Error != "" {
		return nil, errors.Newf(errors.ErrTypeModel, "embedding API error: %s", response.Error)
	}

	if len(response.Embedding) == 0 {
		return nil, errors.New(errors.ErrTypeModel, "embedding API returned an empty vector")
	}

	if p.config.Dimensions > 0 && len(response.Embedding) != p.config.Dimensions {
		return nil, errors.Newf(errors.ErrTypeModel,
			"embedding dimension mismatch: expected %d, got %d",
			p.config.Dimensions, len(response.Embedding))
	}

	return response.Embedding, nil
}

func (p *OllamaProvider) Dimensions() int {
	return p.config.Dimensions
}
