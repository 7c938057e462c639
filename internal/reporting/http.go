package reporting

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codequest-edu/game-server/internal/game"
	httperrors "github.com/codequest-edu/game-server/pkg/http/errors"
)

// HTTPHandler exposes world statistics over REST.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "reporting_http").Logger(),
	}
}

// HandleWorldStatistics reports aggregates for one world.
// Route: GET /v1/worlds/{world_id}/statistics
func (h *HTTPHandler) HandleWorldStatistics(w http.ResponseWriter, r *http.Request) {
	worldID, err := uuid.Parse(r.PathValue("world_id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "world_id must be a UUID")
		return
	}

	stats, err := h.svc.WorldStatistics(r.Context(), worldID)
	if err != nil {
		if game.IsNotFound(err) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, err.Error())
			return
		}
		h.logger.Error().Err(err).Stringer("world_id", worldID).Msg("statistics fetch failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeStatisticsFetchFailed, "failed to fetch statistics")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
