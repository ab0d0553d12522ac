// Package api serves the harvest archive and run history over HTTP.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pevans/newsharvest/archive"
	"github.com/pevans/newsharvest/config"
	"github.com/pevans/newsharvest/history"
	"github.com/pevans/newsharvest/snapshot"
	"go.uber.org/zap"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 500
)

// Server exposes archived listings and articles, and the run ledger when
// one is configured.
type Server struct {
	archive *archive.Archive
	history *history.Store
	sources []config.Source
	logger  *zap.Logger
}

// NewServer creates a Server. ledger may be nil, in which case the run
// endpoints answer 503.
func NewServer(arc *archive.Archive, ledger *history.Store, sources []config.Source, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		archive: arc,
		history: ledger,
		sources: sources,
		logger:  logger,
	}
}

// SetupRouter configures the Gin router with all API routes.
func (s *Server) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	api := router.Group("/api/v1")
	{
		api.GET("/health", s.HandleHealth)
		api.GET("/sources", s.HandleListSources)
		api.GET("/sources/:source/listings", s.HandleListListings)
		api.GET("/sources/:source/listings/:name", s.HandleGetListing)
		api.GET("/sources/:source/articles", s.HandleListArticles)
		api.GET("/sources/:source/articles/:slug", s.HandleGetArticle)
		api.GET("/runs", s.HandleListRuns)
		api.GET("/runs/:id", s.HandleGetRun)
	}

	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// archiveError maps archive errors onto 404 or 500.
func archiveError(c *gin.Context, err error, what string) {
	if errors.Is(err, archive.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorResponse("not_found", what+" not found"))
		return
	}
	c.JSON(http.StatusInternalServerError, errorResponse("internal_error", err.Error()))
}

// HandleHealth handles GET /api/v1/health.
func (s *Server) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"history":   s.history != nil,
	})
}

// SourceSummary describes one source for GET /api/v1/sources.
type SourceSummary struct {
	Name       string `json:"name"`
	URL        string `json:"url,omitempty"`
	Type       string `json:"type,omitempty"`
	Enabled    bool   `json:"enabled"`
	Configured bool   `json:"configured"`
	Listings   int    `json:"listings"`
	Articles   int    `json:"articles"`
}

// HandleListSources handles GET /api/v1/sources. Configured sources come
// first in file order, followed by archive-only sources.
func (s *Server) HandleListSources(c *gin.Context) {
	archived, err := s.archive.Sources()
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", err.Error()))
		return
	}

	summaries := []SourceSummary{}
	known := map[string]bool{}
	for _, src := range s.sources {
		known[src.Name] = true
		typ := src.Type
		if typ == "" {
			typ = config.SourceTypeHTML
		}
		summaries = append(summaries, s.summarize(SourceSummary{
			Name:       src.Name,
			URL:        src.URL,
			Type:       typ,
			Enabled:    src.IsEnabled(),
			Configured: true,
		}))
	}
	for _, name := range archived {
		if known[name] {
			continue
		}
		summaries = append(summaries, s.summarize(SourceSummary{Name: name}))
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": summaries,
		"total":   len(summaries),
	})
}

func (s *Server) summarize(sum SourceSummary) SourceSummary {
	if listings, err := s.archive.ListListings(sum.Name); err == nil {
		sum.Listings = len(listings)
	}
	if details, err := s.archive.ListDetails(sum.Name); err == nil {
		sum.Articles = len(details)
	}
	return sum
}

// HandleListListings handles GET /api/v1/sources/:source/listings.
func (s *Server) HandleListListings(c *gin.Context) {
	source := c.Param("source")
	files, err := s.archive.ListListings(source)
	if err != nil {
		archiveError(c, err, "source")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source":   source,
		"listings": files,
		"total":    len(files),
	})
}

// HandleGetListing handles GET /api/v1/sources/:source/listings/:name. The
// name "latest" returns the most recent snapshot.
func (s *Server) HandleGetListing(c *gin.Context) {
	source := c.Param("source")
	name := c.Param("name")

	var (
		listing *snapshot.Listing
		err     error
	)
	if name == "latest" {
		listing, err = s.archive.LatestListing(source)
	} else {
		listing, err = s.archive.GetListing(source, name)
	}
	if err != nil {
		archiveError(c, err, "listing")
		return
	}

	c.JSON(http.StatusOK, listing)
}

// HandleListArticles handles GET /api/v1/sources/:source/articles.
func (s *Server) HandleListArticles(c *gin.Context) {
	source := c.Param("source")
	files, err := s.archive.ListDetails(source)
	if err != nil {
		archiveError(c, err, "source")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source":   source,
		"articles": files,
		"total":    len(files),
	})
}

// HandleGetArticle handles GET /api/v1/sources/:source/articles/:slug.
func (s *Server) HandleGetArticle(c *gin.Context) {
	detail, err := s.archive.GetDetail(c.Param("source"), c.Param("slug"))
	if err != nil {
		archiveError(c, err, "article")
		return
	}

	c.JSON(http.StatusOK, detail)
}

// HandleListRuns handles GET /api/v1/runs.
func (s *Server) HandleListRuns(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}

	limit := defaultRunLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRunLimit {
			c.JSON(http.StatusBadRequest, errorResponse("bad_request", "limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	runs, err := s.history.ListRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
		"limit": limit,
	})
}

// HandleGetRun handles GET /api/v1/runs/:id. The source, kind and status
// query parameters filter the returned fetches.
func (s *Server) HandleGetRun(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}

	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "invalid run ID"))
		return
	}

	run, err := s.history.GetRun(runID)
	if err != nil {
		if errors.Is(err, history.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("not_found", "run not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", err.Error()))
		return
	}

	var filter history.FetchFilter
	if v := c.Query("source"); v != "" {
		filter.Source = &v
	}
	if v := c.Query("kind"); v != "" {
		filter.Kind = &v
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}

	fetches, err := s.history.ListFetches(runID, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":     run,
		"fetches": fetches,
	})
}

func (s *Server) requireHistory(c *gin.Context) bool {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse("unavailable", "run history is not configured"))
		return false
	}
	return true
}
