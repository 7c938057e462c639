package content

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codequest-edu/game-server/internal/game"
	"github.com/codequest-edu/game-server/internal/identity"
	httperrors "github.com/codequest-edu/game-server/pkg/http/errors"
)

// HTTPHandler exposes world authoring over REST.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "content_http").Logger(),
	}
}

type createWorldRequest struct {
	Name  string `json:"name"`
	Topic string `json:"topic"`
}

type worldResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Topic      string    `json:"topic,omitempty"`
	AccessCode string    `json:"access_code"`
}

type addQuestionRequest struct {
	Prompt  string `json:"prompt"`
	Answers []struct {
		Text    string `json:"text"`
		Correct bool   `json:"correct"`
	} `json:"answers"`
}

type createAssignmentRequest struct {
	Name     string    `json:"name"`
	Deadline time.Time `json:"deadline"`
}

type joinResponse struct {
	World    worldResponse `json:"world"`
	Deadline *time.Time    `json:"deadline,omitempty"`
}

// HandleCreateWorld creates a custom world owned by the caller.
// Route: POST /v1/custom-worlds
func (h *HTTPHandler) HandleCreateWorld(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := identity.UserID(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeIdentityRequired, "missing identity")
		return
	}

	var req createWorldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "malformed JSON body")
		return
	}

	world, err := h.svc.CreateCustomWorld(r.Context(), ownerID, req.Name, req.Topic)
	if err != nil {
		h.respondError(w, err, httperrors.ErrCodeWorldCreationFailed)
		return
	}
	writeJSONStatus(w, http.StatusCreated, toWorldResponse(world))
}

// HandleAddQuestion authors a question into the caller's world.
// Route: POST /v1/custom-worlds/{world_id}/questions
func (h *HTTPHandler) HandleAddQuestion(w http.ResponseWriter, r *http.Request) {
	actorID, ok := identity.UserID(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeIdentityRequired, "missing identity")
		return
	}
	worldID, err := uuid.Parse(r.PathValue("world_id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "world_id must be a UUID")
		return
	}

	var req addQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "malformed JSON body")
		return
	}
	in := QuestionInput{Prompt: req.Prompt}
	for _, a := range req.Answers {
		in.Answers = append(in.Answers, AnswerInput{Text: a.Text, Correct: a.Correct})
	}

	question, err := h.svc.AddQuestion(r.Context(), actorID, worldID, in)
	if err != nil {
		h.respondError(w, err, httperrors.ErrCodeQuestionCreationFailed)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{
		"id":         question.ID,
		"prompt":     question.Prompt,
		"difficulty": question.Difficulty,
	})
}

// HandleCreateAssignment schedules the caller's world with a deadline.
// Route: POST /v1/custom-worlds/{world_id}/assignments
func (h *HTTPHandler) HandleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	actorID, ok := identity.UserID(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeIdentityRequired, "missing identity")
		return
	}
	worldID, err := uuid.Parse(r.PathValue("world_id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "world_id must be a UUID")
		return
	}

	var req createAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "malformed JSON body")
		return
	}

	assignment, err := h.svc.CreateAssignment(r.Context(), actorID, worldID, req.Name, req.Deadline)
	if err != nil {
		h.respondError(w, err, httperrors.ErrCodeAssignmentFailed)
		return
	}
	writeJSONStatus(w, http.StatusCreated, assignment)
}

// HandleJoin resolves an access code to its world.
// Route: GET /v1/custom-worlds/code/{access_code}
func (h *HTTPHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.JoinByAccessCode(r.Context(), r.PathValue("access_code"))
	if err != nil {
		h.respondError(w, err, httperrors.ErrCodeInvalidAccessCode)
		return
	}
	writeJSON(w, joinResponse{World: toWorldResponse(result.World), Deadline: result.Deadline})
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, err error, fallbackCode string) {
	switch {
	case game.IsValidation(err):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeValidationFailed, err.Error())
	case game.IsPermissionDenied(err):
		httperrors.RespondForbidden(w, httperrors.ErrCodeForbidden, err.Error())
	case game.IsNotFound(err):
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, err.Error())
	default:
		h.logger.Error().Err(err).Msg("authoring request failed")
		httperrors.RespondError(w, http.StatusInternalServerError, fallbackCode, "internal error")
	}
}

func toWorldResponse(world game.World) worldResponse {
	return worldResponse{ID: world.ID, Name: world.Name, Topic: world.Topic, AccessCode: world.AccessCode}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func writeJSONStatus(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
