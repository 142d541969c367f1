// Package cmd implements the askql command line interface.
package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/askql/askql/internal/config"
	"github.com/askql/askql/internal/embedding"
	"github.com/askql/askql/internal/llm"
	"github.com/askql/askql/internal/logging"
	"github.com/askql/askql/internal/pipeline"
	"github.com/askql/askql/internal/retriever"
	"github.com/askql/askql/internal/sandbox"
	"github.com/askql/askql/internal/schema"
	"github.com/askql/askql/internal/selector"

	apperrors "github.com/askql/askql/internal/errors"
)

// app holds the fully wired service graph. Built once per invocation and
// shared read-only by the command that requested it.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	catalog   *schema.Catalog
	retriever *retriever.Retriever
	selector  *selector.Selector
	sandbox   *sandbox.Sandbox
	pipeline  *pipeline.Pipeline
}

// newApp loads configuration, initializes logging, builds the schema catalog
// (from the cache unless rebuildCatalog is set), and wires the pipeline.
func newApp(ctx context.Context, rebuildCatalog bool) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	cfg.ExpandAllPaths()

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	if err := logging.InitializeLogger(cfg.Logging); err != nil {
		return nil, err
	}

	logger := logging.GetLogger()

	catalog, err := buildCatalog(ctx, cfg, logger, rebuildCatalog)
	if err != nil {
		return nil, err
	}

	provider, err := embedding.NewOllamaProvider(embedding.Config{
		BaseURL:    cfg.Retrieval.EmbeddingURL,
		Model:      cfg.Retrieval.EmbeddingModel,
		Dimensions: cfg.Retrieval.Dimensions,
		Timeout:    cfg.LLMTimeout(),
	})
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.LLMTimeout(),
	})
	if err != nil {
		return nil, err
	}

	protected := llm.NewBreakerClient(client, "llm", llm.DefaultBreakerConfig, logger)

	r := retriever.New(provider, catalog, logger)
	sel := selector.New(protected, logger)
	sb := sandbox.New(cfg.QueryTimeout(), cfg.Sandbox.MaxRows)

	return &app{
		cfg:       cfg,
		logger:    logger,
		catalog:   catalog,
		retriever: r,
		selector:  sel,
		sandbox:   sb,
		pipeline:  pipeline.New(r, sel, sb, cfg.Retrieval.TopK, logger),
	}, nil
}

// buildCatalog loads the schema cache when present, introspecting the
// physical databases only on a miss or a forced rebuild.
func buildCatalog(ctx context.Context, cfg *config.Config, logger *logging.Logger, rebuild bool) (*schema.Catalog, error) {
	if !rebuild {
		catalog, err := schema.LoadCatalog(cfg.Catalog.CacheFile)
		if err == nil {
			logger.WithFields(map[string]interface{}{
				"cache":     cfg.Catalog.CacheFile,
				"databases": catalog.Len(),
			}).Debug("loaded schema catalog from cache")

			return catalog, nil
		}

		if !errors.Is(err, os.ErrNotExist) {
			logger.WithError(err).Warn("schema cache unreadable, re-introspecting databases")
		}
	}

	catalog, err := schema.DiscoverCatalog(ctx, cfg.Catalog.Root)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrTypeCatalog,
			"failed to introspect databases under %s", cfg.Catalog.Root)
	}

	if err := schema.SaveCatalog(catalog, cfg.Catalog.CacheFile); err != nil {
		logger.WithError(err).Warn("failed to write schema cache")
	}

	return catalog, nil
}

func (a *app) close() {
	a.logger.Close()
}
