// Package server exposes the search orchestrator over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/hession/searchbridge/internal/history"
	"github.com/hession/searchbridge/internal/metrics"
	"github.com/hession/searchbridge/internal/websearch"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
	shutdownTimeout     = 30 * time.Second
)

// Searcher runs one search request and always returns an envelope.
type Searcher interface {
	Execute(ctx context.Context, req websearch.Request) websearch.Response
}

// Options configures a Server. History and Metrics are optional.
// DefaultEngine applies when a request leaves engine empty.
type Options struct {
	Searcher      Searcher
	DefaultEngine string
	History       history.Store
	MaxHistory    int
	Metrics       *metrics.Collector
	CORSOrigins   []string
	GinMode       string
	Logger        *zerolog.Logger
}

// Server serves the search API.
type Server struct {
	searcher      Searcher
	defaultEngine string
	history       history.Store
	maxHistory    int
	metrics       *metrics.Collector
	log           *zerolog.Logger

	router  *gin.Engine
	handler http.Handler
}

// New builds the router and wraps it with CORS.
func New(opts Options) *Server {
	if opts.GinMode != "" {
		gin.SetMode(opts.GinMode)
	}
	log := opts.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	defaultEngine := strings.TrimSpace(opts.DefaultEngine)
	if defaultEngine == "" {
		defaultEngine = websearch.DefaultEngine
	}

	s := &Server{
		searcher:      opts.Searcher,
		defaultEngine: defaultEngine,
		history:       opts.History,
		maxHistory:    opts.MaxHistory,
		metrics:       opts.Metrics,
		log:           log,
	}

	router := gin.New()
	router.Use(requestID())
	router.Use(requestLogger(log))
	router.Use(recovery(log))
	if s.metrics != nil {
		router.Use(s.metrics.Middleware())
	}

	router.GET("/", s.handleRoot)
	router.GET("/health", s.handleHealth)
	router.POST("/search", s.handleSearchJSON)
	router.GET("/search", s.handleSearchQuery)
	router.GET("/history", s.handleHistory)
	if s.metrics != nil {
		router.GET("/metrics", s.metrics.Handler())
	}

	s.router = router
	s.handler = cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
	}).Handler(router)

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.log.Info().Msg("Server stopped")
	return nil
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Web Search API is running"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleSearchJSON(c *gin.Context) {
	req := websearch.NewRequest("")
	req.Engine = ""
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	s.search(c, req)
}

// searchQuery maps GET /search parameters onto a Request.
type searchQuery struct {
	Query      string `form:"query" binding:"required"`
	Engine     string `form:"engine"`
	NumResults int    `form:"num_results,default=10"`
	Language   string `form:"language,default=en"`
	Country    string `form:"country,default=us"`
	SafeSearch bool   `form:"safe_search,default=true"`
}

func (s *Server) handleSearchQuery(c *gin.Context) {
	var q searchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	req := websearch.NewRequest(q.Query)
	req.Engine = q.Engine
	req.NumResults = q.NumResults
	req.Language = q.Language
	req.Country = q.Country
	req.SafeSearch = q.SafeSearch
	s.search(c, req)
}

// search runs req detached from the client connection: a disconnect does
// not abort in-flight provider calls.
func (s *Server) search(c *gin.Context, req websearch.Request) {
	if strings.TrimSpace(req.Engine) == "" {
		req.Engine = s.defaultEngine
	}
	resp := s.searcher.Execute(context.WithoutCancel(c.Request.Context()), req)

	if resp.Error != "" {
		s.log.Warn().
			Str("request_id", c.GetString(requestIDKey)).
			Str("engine", resp.Engine).
			Str("kind", websearch.ErrorKind(resp.Err()).String()).
			Msgf("Search failed: '%s': %s", resp.Query, resp.Error)
	} else {
		s.log.Info().
			Str("request_id", c.GetString(requestIDKey)).
			Str("engine", resp.Engine).
			Msgf("Search completed: '%s' with %d results in %.2fs", resp.Query, resp.TotalResults, resp.SearchTime)
	}

	if s.metrics != nil {
		s.metrics.ObserveSearch(resp)
	}
	s.record(resp)

	c.JSON(http.StatusOK, resp)
}

func (s *Server) record(resp websearch.Response) {
	if s.history == nil {
		return
	}
	if _, err := s.history.Record(resp); err != nil {
		s.log.Warn().Err(err).Msg("Failed to record search history")
		return
	}
	if s.maxHistory > 0 {
		if _, err := s.history.Prune(s.maxHistory); err != nil {
			s.log.Warn().Err(err).Msg("Failed to prune search history")
		}
	}
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "search history is disabled"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.history.Recent(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list search history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list search history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}
