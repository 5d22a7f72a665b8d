package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/selivandex/news-digest/internal/preferences"
	"github.com/selivandex/news-digest/pkg/logger"
	"github.com/selivandex/news-digest/pkg/models"
)

const (
	maxBodyBytes     = 64 << 10
	maxStreamMessage = 16 << 10
)

type actionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type suggestionsResponse struct {
	Interests       []string `json:"interests"`
	SentimentFilter string   `json:"sentimentFilter"`
}

type trackResponse struct {
	Recorded bool `json:"recorded"`
}

type clearHistoryResponse struct {
	Removed int `json:"removed"`
}

type streamFrame struct {
	Articles []models.Article `json:"articles"`
}

// parsePreferences decodes a preferences payload over the defaults, so
// omitted fields keep their default values
func parsePreferences(data []byte) (models.Preferences, error) {
	prefs := *models.DefaultPreferences()
	if err := json.Unmarshal(data, &prefs); err != nil {
		return models.Preferences{}, fmt.Errorf("%w: %v", models.ErrInvalidPreferences, err)
	}

	prefs.Normalize()
	if err := prefs.Validate(); err != nil {
		return models.Preferences{}, err
	}

	return prefs, nil
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

// handleDigest builds a digest for the posted preferences. Known users get
// the preferences saved as a side effect; an empty body uses the stored ones.
func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request, userID int64) {
	ctx := r.Context()

	body, err := readBody(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "failed to read body")
		return
	}

	var prefs models.Preferences
	if len(body) == 0 {
		prefs, err = s.reading.Preferences(ctx, userID)
		if err != nil {
			internalError(w, r, userID, "load preferences", err)
			return
		}
	} else {
		prefs, err = parsePreferences(body)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		s.rememberPreferences(r, userID, prefs)
	}

	articles := s.digests.FetchDigest(ctx, userID, prefs)
	if articles == nil {
		articles = []models.Article{}
	}

	writeJSON(w, http.StatusOK, articles)
}

func (s *Server) rememberPreferences(r *http.Request, userID int64, prefs models.Preferences) {
	ctx := r.Context()

	exists, err := s.reading.UserExists(ctx, userID)
	if err != nil {
		logger.Warn("failed to look up user",
			zap.String("request_id", requestID(ctx)),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return
	}
	if !exists {
		return
	}

	if _, err := s.reading.SavePreferences(ctx, userID, prefs); err != nil {
		logger.Warn("failed to save preferences with digest request",
			zap.String("request_id", requestID(ctx)),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
	}
}

// handleDigestStream answers every text frame holding preferences with a
// digest frame
func (s *Server) handleDigestStream(w http.ResponseWriter, r *http.Request, userID int64) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxStreamMessage)

	logger.Debug("digest stream opened", zap.Int64("user_id", userID))

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("digest stream closed unexpectedly",
					zap.Int64("user_id", userID),
					zap.Error(err),
				)
			}
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		var reply interface{}
		prefs, err := parsePreferences(data)
		if err != nil {
			reply = errorResponse{Error: err.Error(), RequestID: requestID(r.Context())}
		} else {
			articles := s.digests.FetchDigest(r.Context(), userID, prefs)
			if articles == nil {
				articles = []models.Article{}
			}
			reply = streamFrame{Articles: articles}
		}

		if err := conn.WriteJSON(reply); err != nil {
			logger.Warn("failed to write digest frame",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			return
		}
	}
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request, userID int64) {
	prefs, err := s.reading.Preferences(r.Context(), userID)
	if err != nil {
		internalError(w, r, userID, "load preferences", err)
		return
	}

	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request, userID int64) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "failed to read body")
		return
	}

	prefs, err := parsePreferences(body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := s.reading.SavePreferences(r.Context(), userID, prefs)
	switch {
	case errors.Is(err, models.ErrInvalidPreferences):
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, preferences.ErrUserNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
		return
	case err != nil:
		internalError(w, r, userID, "save preferences", err)
		return
	}

	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request, userID int64) {
	interests, err := s.advisor.SuggestInterests(r.Context(), userID)
	if err != nil {
		internalError(w, r, userID, "suggest interests", err)
		return
	}

	sentiment, err := s.advisor.SuggestSentiment(r.Context(), userID)
	if err != nil {
		internalError(w, r, userID, "suggest sentiment", err)
		return
	}

	writeJSON(w, http.StatusOK, suggestionsResponse{
		Interests:       interests,
		SentimentFilter: sentiment,
	})
}

// handleAdjust never fails the request; problems come back as a message
func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request, userID int64) {
	result, err := s.advisor.AutoAdjust(r.Context(), userID)
	switch {
	case errors.Is(err, preferences.ErrUserNotFound):
		writeJSON(w, http.StatusOK, actionResponse{Message: "User not found"})
		return
	case err != nil:
		logger.Error("auto-adjust failed",
			zap.String("request_id", requestID(r.Context())),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, actionResponse{Message: "Error adjusting preferences"})
		return
	}

	if !result.Adjusted {
		writeJSON(w, http.StatusOK, actionResponse{Message: "Preferences unchanged: " + result.Reason})
		return
	}

	writeJSON(w, http.StatusOK, actionResponse{
		Success: true,
		Message: "Preferences auto-adjusted based on your reading history!",
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request, userID int64) {
	s.digests.ClearCache(userID)

	writeJSON(w, http.StatusOK, actionResponse{
		Success: true,
		Message: "Cache cleared! You'll see fresh articles.",
	})
}

func (s *Server) handleTrackRead(w http.ResponseWriter, r *http.Request, userID int64) {
	var article models.Article
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&article); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid article payload")
		return
	}

	recorded, err := s.reading.TrackRead(r.Context(), userID, article)
	switch {
	case errors.Is(err, preferences.ErrInvalidArticle):
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, preferences.ErrUserNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
		return
	case err != nil:
		internalError(w, r, userID, "track read", err)
		return
	}

	writeJSON(w, http.StatusOK, trackResponse{Recorded: recorded})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, userID int64) {
	limit := preferences.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.reading.History(r.Context(), userID, limit)
	if err != nil {
		internalError(w, r, userID, "load history", err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request, userID int64) {
	removed, err := s.reading.ClearHistory(r.Context(), userID)
	if err != nil {
		internalError(w, r, userID, "clear history", err)
		return
	}

	writeJSON(w, http.StatusOK, clearHistoryResponse{Removed: removed})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, userID int64) {
	stats, err := s.reading.Stats(r.Context(), userID)
	if err != nil {
		internalError(w, r, userID, "load stats", err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, userID int64) {
	export, err := s.reading.Export(r.Context(), userID)
	switch {
	case errors.Is(err, preferences.ErrUserNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
		return
	case err != nil:
		internalError(w, r, userID, "export data", err)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="newsdigest-export-%d.json"`, userID))
	writeJSON(w, http.StatusOK, export)
}
