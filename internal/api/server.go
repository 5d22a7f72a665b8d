package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/selivandex/news-digest/internal/health"
	"github.com/selivandex/news-digest/internal/preferences"
	"github.com/selivandex/news-digest/pkg/logger"
	"github.com/selivandex/news-digest/pkg/models"
)

// Digests builds per-user digests
type Digests interface {
	FetchDigest(ctx context.Context, userID int64, prefs models.Preferences) []models.Article
	ClearCache(userID int64)
}

// Reading manages preferences and reading history
type Reading interface {
	Preferences(ctx context.Context, userID int64) (models.Preferences, error)
	SavePreferences(ctx context.Context, userID int64, prefs models.Preferences) (models.Preferences, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
	TrackRead(ctx context.Context, userID int64, article models.Article) (bool, error)
	Stats(ctx context.Context, userID int64) (models.ReadingStats, error)
	History(ctx context.Context, userID int64, limit int) ([]models.ReadingEntry, error)
	ClearHistory(ctx context.Context, userID int64) (int, error)
	Export(ctx context.Context, userID int64) (models.DataExport, error)
}

// Advisor suggests and applies preferences learned from reading history
type Advisor interface {
	SuggestInterests(ctx context.Context, userID int64) ([]string, error)
	SuggestSentiment(ctx context.Context, userID int64) (string, error)
	AutoAdjust(ctx context.Context, userID int64) (preferences.AdjustResult, error)
}

// Server serves the digest JSON and WebSocket API
type Server struct {
	server   *http.Server
	digests  Digests
	reading  Reading
	advisor  Advisor
	upgrader websocket.Upgrader
}

// NewServer creates new API server. probes may be nil.
func NewServer(port string, digests Digests, reading Reading, advisor Advisor, probes *health.Checker) *Server {
	s := &Server{
		digests: digests,
		reading: reading,
		advisor: advisor,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 16384,
		},
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/digest", s.withUser(s.handleDigest))
	mux.HandleFunc("GET /api/digest/stream", s.withUser(s.handleDigestStream))
	mux.HandleFunc("GET /api/preferences", s.withUser(s.handleGetPreferences))
	mux.HandleFunc("PUT /api/preferences", s.withUser(s.handlePutPreferences))
	mux.HandleFunc("GET /api/preferences/suggestions", s.withUser(s.handleSuggestions))
	mux.HandleFunc("POST /api/preferences/adjust", s.withUser(s.handleAdjust))
	mux.HandleFunc("POST /api/cache/clear", s.withUser(s.handleClearCache))
	mux.HandleFunc("POST /api/history", s.withUser(s.handleTrackRead))
	mux.HandleFunc("GET /api/history", s.withUser(s.handleHistory))
	mux.HandleFunc("DELETE /api/history", s.withUser(s.handleClearHistory))
	mux.HandleFunc("GET /api/stats", s.withUser(s.handleStats))
	mux.HandleFunc("GET /api/export", s.withUser(s.handleExport))

	if probes != nil {
		probes.Register(mux)
	}

	s.server = &http.Server{
		Addr:              ":" + port,
		Handler:           requestLogging(mux),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Stop is called
func (s *Server) Start() error {
	logger.Info("api server starting",
		zap.String("addr", s.server.Addr),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("stopping api server...")
	return s.server.Shutdown(ctx)
}
