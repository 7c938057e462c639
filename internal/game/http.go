package game

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codequest-edu/game-server/internal/identity"
	httperrors "github.com/codequest-edu/game-server/pkg/http/errors"
)

// HTTPHandler exposes the progression controller over REST. Routes are
// registered by the server package; identity arrives via the identity
// middleware.
type HTTPHandler struct {
	ctrl   *Controller
	logger zerolog.Logger
}

func NewHTTPHandler(ctrl *Controller, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		ctrl:   ctrl,
		logger: logger.With().Str("component", "game_http").Logger(),
	}
}

type worldDTO struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Topic    string    `json:"topic,omitempty"`
	IsCustom bool      `json:"is_custom"`
}

type sectionDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type levelDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	IsBossLevel bool      `json:"is_boss_level"`
	IsFinalBoss bool      `json:"is_final_boss"`
}

type positionDTO struct {
	World          worldDTO   `json:"world"`
	Section        sectionDTO `json:"section"`
	Level          levelDTO   `json:"level"`
	WorldCompleted bool       `json:"world_completed"`
}

// answerOptionDTO deliberately omits correctness; clients learn it only by
// submitting.
type answerOptionDTO struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text"`
}

type questionCardDTO struct {
	RecordID   uuid.UUID         `json:"record_id"`
	Index      int               `json:"index"`
	QuestionID uuid.UUID         `json:"question_id"`
	Prompt     string            `json:"prompt"`
	Difficulty string            `json:"difficulty"`
	Answers    []answerOptionDTO `json:"answers"`
}

type dealDTO struct {
	Cards []questionCardDTO `json:"cards"`
	Stats levelStatsDTO     `json:"stats"`
}

type levelStatsDTO struct {
	Points       int `json:"points"`
	CorrectCount int `json:"correct_count"`
}

type answerSubmissionDTO struct {
	RecordID uuid.UUID `json:"record_id"`
	AnswerID uuid.UUID `json:"answer_id"`
}

type answerRequestDTO struct {
	Answers []answerSubmissionDTO `json:"answers"`
}

type answerResultDTO struct {
	RecordID     uuid.UUID `json:"record_id"`
	Correct      bool      `json:"correct"`
	PointsChange int       `json:"points_change"`
}

type unlockDTO struct {
	Status    string    `json:"status"`
	NextLevel *levelDTO `json:"next_level,omitempty"`
}

type answerOutcomeDTO struct {
	Results      []answerResultDTO `json:"results"`
	LevelCleared bool              `json:"level_cleared"`
	Unlock       *unlockDTO        `json:"unlock,omitempty"`
}

// HandlePosition reports where the caller stands in a world.
// Route: GET /v1/worlds/{world_id}/position
func (h *HTTPHandler) HandlePosition(w http.ResponseWriter, r *http.Request) {
	userID, worldID, ok := h.scope(w, r)
	if !ok {
		return
	}

	pos, err := h.ctrl.CurrentPosition(r.Context(), userID, worldID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, toPositionDTO(pos))
}

// HandleQuestions deals the caller's next question or boss batch.
// Route: GET /v1/worlds/{world_id}/questions
func (h *HTTPHandler) HandleQuestions(w http.ResponseWriter, r *http.Request) {
	userID, worldID, ok := h.scope(w, r)
	if !ok {
		return
	}

	deal, err := h.ctrl.GetQuestions(r.Context(), userID, worldID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	cards := make([]questionCardDTO, 0, len(deal.Cards))
	for _, card := range deal.Cards {
		options := make([]answerOptionDTO, 0, len(card.Answers))
		for _, a := range card.Answers {
			options = append(options, answerOptionDTO{ID: a.ID, Text: a.Text})
		}
		cards = append(cards, questionCardDTO{
			RecordID:   card.RecordID,
			Index:      card.Index,
			QuestionID: card.Question.ID,
			Prompt:     card.Question.Prompt,
			Difficulty: card.Question.Difficulty,
			Answers:    options,
		})
	}
	writeJSON(w, dealDTO{
		Cards: cards,
		Stats: levelStatsDTO{Points: deal.Stats.Points, CorrectCount: deal.Stats.CorrectCount},
	})
}

// HandleAnswers scores a submitted answer batch.
// Route: POST /v1/answers
func (h *HTTPHandler) HandleAnswers(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.UserID(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeIdentityRequired, "missing identity")
		return
	}

	var req answerRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "malformed JSON body")
		return
	}

	subs := make([]AnswerSubmission, 0, len(req.Answers))
	for _, a := range req.Answers {
		subs = append(subs, AnswerSubmission{RecordID: a.RecordID, AnswerID: a.AnswerID})
	}

	outcome, err := h.ctrl.AnswerQuestions(r.Context(), userID, subs)
	if err != nil {
		h.respondError(w, err)
		return
	}
	observeOutcome(outcome)

	results := make([]answerResultDTO, 0, len(outcome.Results))
	for _, res := range outcome.Results {
		results = append(results, answerResultDTO{RecordID: res.RecordID, Correct: res.Correct, PointsChange: res.PointsChange})
	}
	dto := answerOutcomeDTO{Results: results, LevelCleared: outcome.LevelCleared}
	if outcome.Unlock != nil {
		dto.Unlock = &unlockDTO{Status: string(outcome.Unlock.Status)}
		if outcome.Unlock.NextLevel != nil {
			lvl := toLevelDTO(*outcome.Unlock.NextLevel)
			dto.Unlock.NextLevel = &lvl
		}
	}
	writeJSON(w, dto)
}

// HandlePoints reports the caller's points total in a world.
// Route: GET /v1/worlds/{world_id}/points
func (h *HTTPHandler) HandlePoints(w http.ResponseWriter, r *http.Request) {
	userID, worldID, ok := h.scope(w, r)
	if !ok {
		return
	}

	points, err := h.ctrl.PointsInWorld(r.Context(), userID, worldID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, map[string]any{"world_id": worldID, "points": points})
}

// HandleDifficulty reports the adaptive difficulty tier the caller's next
// question will draw from.
// Route: GET /v1/worlds/{world_id}/difficulty
func (h *HTTPHandler) HandleDifficulty(w http.ResponseWriter, r *http.Request) {
	userID, worldID, ok := h.scope(w, r)
	if !ok {
		return
	}

	difficulty, err := h.ctrl.DifficultyInWorld(r.Context(), userID, worldID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, map[string]any{"world_id": worldID, "difficulty": difficulty})
}

func (h *HTTPHandler) scope(w http.ResponseWriter, r *http.Request) (userID, worldID uuid.UUID, ok bool) {
	userID, ok = identity.UserID(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeIdentityRequired, "missing identity")
		return uuid.Nil, uuid.Nil, false
	}
	worldID, err := uuid.Parse(r.PathValue("world_id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "world_id must be a UUID")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, worldID, true
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, err error) {
	switch {
	case IsValidation(err):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeValidationFailed, err.Error())
	case errors.Is(err, ErrSessionAlreadyCompleted):
		httperrors.RespondForbidden(w, httperrors.ErrCodeSessionCompleted, err.Error())
	case IsPermissionDenied(err):
		httperrors.RespondForbidden(w, httperrors.ErrCodeForbidden, err.Error())
	case errors.Is(err, ErrQuestionPoolExhausted):
		httperrors.RespondNotFound(w, httperrors.ErrCodePoolExhausted, err.Error())
	case IsNotFound(err):
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, err.Error())
	case IsDataIntegrity(err):
		h.logger.Error().Err(err).Msg("data integrity violation")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeDataIntegrity, "inconsistent progression state")
	default:
		h.logger.Error().Err(err).Msg("unhandled error")
		httperrors.RespondInternalError(w, "internal error")
	}
}

func toPositionDTO(pos Position) positionDTO {
	return positionDTO{
		World: worldDTO{
			ID:       pos.World.ID,
			Name:     pos.World.Name,
			Topic:    pos.World.Topic,
			IsCustom: pos.World.IsCustom,
		},
		Section:        sectionDTO{ID: pos.Section.ID, Name: pos.Section.Name},
		Level:          toLevelDTO(pos.Level),
		WorldCompleted: pos.WorldCompleted,
	}
}

func toLevelDTO(l Level) levelDTO {
	return levelDTO{ID: l.ID, Name: l.Name, IsBossLevel: l.IsBossLevel, IsFinalBoss: l.IsFinalBossLevel}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
