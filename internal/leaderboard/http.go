package leaderboard

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	httperrors "github.com/codequest-edu/game-server/pkg/http/errors"
)

// HTTPHandler exposes REST endpoints for leaderboard queries.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler.
func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

// HandleTop responds with the campaign-wide leaderboard, or a single world's
// when ?world_id is set.
// Route: GET /v1/leaderboard?limit=10&world_id=<uuid>
func (h *HTTPHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	ctx := r.Context()
	var (
		entries []Entry
		err     error
		scope   = "campaign"
	)
	if raw := r.URL.Query().Get("world_id"); raw != "" {
		worldID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "world_id must be a UUID")
			return
		}
		scope = "world"
		entries, err = h.svc.TopByWorld(ctx, worldID, limit)
	} else {
		entries, err = h.svc.Top(ctx, limit)
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("leaderboard fetch failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeLeaderboardFetchFailed, "failed to fetch leaderboard")
		return
	}
	if entries == nil {
		entries = []Entry{}
	}

	writeJSON(w, map[string]any{
		"scope":       scope,
		"top":         entries,
		"retrievedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleRank responds with one user's points and rank.
// Route: GET /v1/leaderboard/users/{user_id}
func (h *HTTPHandler) HandleRank(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "user_id must be a UUID")
		return
	}

	entry, err := h.svc.Rank(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Stringer("user_id", userID).Msg("rank fetch failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeLeaderboardFetchFailed, "failed to fetch rank")
		return
	}
	writeJSON(w, entry)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
