// Package server exposes the question pipeline and schema catalog over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/askql/askql/internal/logging"
	"github.com/askql/askql/internal/pipeline"
	"github.com/askql/askql/internal/retriever"
	"github.com/askql/askql/internal/schema"
)

// Server wires the pipeline and catalog into a gin router.
type Server struct {
	engine    *gin.Engine
	pipeline  *pipeline.Pipeline
	retriever *retriever.Retriever
	catalog   *schema.Catalog
	logger    *logging.Logger
}

func New(p *pipeline.Pipeline, r *retriever.Retriever, catalog *schema.Catalog, logger *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:    engine,
		pipeline:  p,
		retriever: r,
		catalog:   catalog,
		logger:    logger,
	}

	engine.Use(s.requestLogger())

	engine.GET("/health", s.handleHealth)

	api := engine.Group("/api")
	api.POST("/ask", s.handleAsk)
	api.GET("/databases", s.handleListDatabases)
	api.GET("/databases/:name", s.handleGetDatabase)
	api.POST("/reindex", s.handleReindex)

	return s
}

// Handler returns the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves HTTP until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.WithField("addr", addr).Info("HTTP server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.New().String()
		c.Set("request_id", requestID)

		c.Next()

		s.logger.WithFields(map[string]interface{}{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		}).Info("request handled")
	}
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

func (s *Server) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must contain a question field"})
		return
	}

	resp := s.pipeline.Ask(c.Request.Context(), req.Question)

	c.JSON(statusFor(resp.Outcome), resp)
}

// statusFor maps pipeline outcomes onto HTTP status codes. Sentinel outcomes
// are well-formed answers about the question, not server faults, so they
// return 422 rather than 5xx.
func statusFor(outcome pipeline.Outcome) int {
	switch outcome {
	case pipeline.OutcomeSucceeded:
		return http.StatusOK
	case pipeline.OutcomeRefused, pipeline.OutcomeRejected:
		return http.StatusBadRequest
	case pipeline.OutcomeAmbiguous, pipeline.OutcomeIrrelevant,
		pipeline.OutcomeUnavailable, pipeline.OutcomeNoCandidates:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type databaseSummary struct {
	Name   string `json:"name"`
	Tables int    `json:"tables"`
}

func (s *Server) handleListDatabases(c *gin.Context) {
	summaries := make([]databaseSummary, 0, s.catalog.Len())

	for _, dbSchema := range s.catalog.All() {
		summaries = append(summaries, databaseSummary{
			Name:   dbSchema.Name,
			Tables: len(dbSchema.Tables),
		})
	}

	c.JSON(http.StatusOK, gin.H{"databases": summaries})
}

func (s *Server) handleGetDatabase(c *gin.Context) {
	name := c.Param("name")

	dbSchema := s.catalog.Get(name)
	if dbSchema == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown database: " + name})
		return
	}

	c.JSON(http.StatusOK, dbSchema)
}

func (s *Server) handleReindex(c *gin.Context) {
	if err := s.retriever.BuildIndex(c.Request.Context()); err != nil {
		s.logger.ErrorWithErr("reindex failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, gin.H{"indexed": s.retriever.IndexedCount()})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"databases": s.catalog.Len(),
		"indexed":   s.retriever.IndexedCount(),
	})
}
