package content

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codequest-edu/game-server/internal/game"
)

// Shape of an auto-created custom world.
const (
	CustomLevelCount    = 4
	MaxSectionQuestions = 12

	accessCodeLength   = 6
	accessCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts    = 5
)

// Assignment schedules a custom world with a submission deadline.
type Assignment struct {
	ID        uuid.UUID `json:"id"`
	WorldID   uuid.UUID `json:"world_id"`
	Name      string    `json:"name"`
	Deadline  time.Time `json:"deadline"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence surface for world authoring.
type Store interface {
	// WithTx runs fn against a store bound to one transaction.
	WithTx(ctx context.Context, fn func(Store) error) error

	CreateWorld(ctx context.Context, w game.World) error
	CreateSection(ctx context.Context, s game.Section) error
	CreateLevel(ctx context.Context, l game.Level) error
	CreateQuestion(ctx context.Context, q game.Question, answers []game.Answer) error

	WorldByID(ctx context.Context, id uuid.UUID) (game.World, error)
	WorldByAccessCode(ctx context.Context, code string) (game.World, error)
	SectionsByWorld(ctx context.Context, worldID uuid.UUID) ([]game.Section, error)
	QuestionCountBySection(ctx context.Context, sectionID uuid.UUID) (int, error)
	AccessCodeInUse(ctx context.Context, code string) (bool, error)

	CreateAssignment(ctx context.Context, a Assignment) error
	AssignmentsByWorld(ctx context.Context, worldID uuid.UUID) ([]Assignment, error)
}

// QuestionInput is one authored question with its four answer options.
type QuestionInput struct {
	Prompt  string
	Answers []AnswerInput
}

// AnswerInput is one authored answer option.
type AnswerInput struct {
	Text    string
	Correct bool
}

// JoinResult resolves an access code to its world and, when assigned, the
// nearest open deadline.
type JoinResult struct {
	World    game.World
	Deadline *time.Time
}

// Service manages authored custom worlds: creation with generated access
// codes, the question bank behind them, and assignment deadlines.
type Service struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService constructs the authoring service. rng must be non-nil; now may be
// nil, defaulting to time.Now.
func NewService(store Store, rng *rand.Rand, logger zerolog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "content").Logger(),
		now:    now,
		rng:    rng,
	}
}

// CreateCustomWorld creates an owner's world with a unique access code and the
// fixed single-section layout: three normal levels and a closing boss level.
func (s *Service) CreateCustomWorld(ctx context.Context, ownerID uuid.UUID, name, topic string) (game.World, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return game.World{}, fmt.Errorf("world name is required: %w", game.ErrValidation)
	}

	code, err := s.reserveAccessCode(ctx)
	if err != nil {
		return game.World{}, err
	}

	world := game.World{
		ID:         uuid.New(),
		Name:       name,
		Topic:      topic,
		IsCustom:   true,
		AccessCode: code,
		CreatedBy:  ownerID,
	}
	section := game.Section{ID: uuid.New(), WorldID: world.ID, Name: name, Index: 0}

	err = s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.CreateWorld(ctx, world); err != nil {
			return fmt.Errorf("create world: %w", err)
		}
		if err := tx.CreateSection(ctx, section); err != nil {
			return fmt.Errorf("create section: %w", err)
		}
		for i := 1; i <= CustomLevelCount; i++ {
			level := game.Level{
				ID:        uuid.New(),
				SectionID: section.ID,
				Name:      fmt.Sprintf("Level %d", i),
				Index:     i,
			}
			if i == CustomLevelCount {
				level.Name = "Boss Level"
				level.IsBossLevel = true
				level.IsFinalBossLevel = true
			}
			if err := tx.CreateLevel(ctx, level); err != nil {
				return fmt.Errorf("create level %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return game.World{}, err
	}

	s.logger.Info().
		Stringer("world_id", world.ID).
		Stringer("owner_id", ownerID).
		Msg("custom world created")
	return world, nil
}

// AddQuestion authors one question into the owner's world. Custom questions
// are always easy and carry exactly four answers with exactly one correct.
func (s *Service) AddQuestion(ctx context.Context, actorID, worldID uuid.UUID, in QuestionInput) (game.Question, error) {
	world, err := s.store.WorldByID(ctx, worldID)
	if err != nil {
		return game.Question{}, err
	}
	if !world.IsCustom {
		return game.Question{}, fmt.Errorf("world %s is not custom: %w", worldID, game.ErrValidation)
	}
	if world.CreatedBy != actorID {
		return game.Question{}, fmt.Errorf("world %s is owned by another user: %w", worldID, game.ErrPermissionDenied)
	}
	if err := validateQuestionInput(in); err != nil {
		return game.Question{}, err
	}

	sections, err := s.store.SectionsByWorld(ctx, worldID)
	if err != nil {
		return game.Question{}, err
	}
	if len(sections) == 0 {
		return game.Question{}, fmt.Errorf("world %s has no section: %w", worldID, game.ErrDataIntegrity)
	}
	section := sections[0]

	count, err := s.store.QuestionCountBySection(ctx, section.ID)
	if err != nil {
		return game.Question{}, err
	}
	if count >= MaxSectionQuestions {
		return game.Question{}, fmt.Errorf("section holds the maximum of %d questions: %w", MaxSectionQuestions, game.ErrValidation)
	}

	question := game.Question{
		ID:         uuid.New(),
		SectionID:  section.ID,
		Prompt:     strings.TrimSpace(in.Prompt),
		Difficulty: game.DifficultyEasy,
		CreatedBy:  actorID,
	}
	answers := make([]game.Answer, 0, len(in.Answers))
	for _, a := range in.Answers {
		answers = append(answers, game.Answer{
			ID:         uuid.New(),
			QuestionID: question.ID,
			Text:       strings.TrimSpace(a.Text),
			IsCorrect:  a.Correct,
		})
	}
	if err := s.store.CreateQuestion(ctx, question, answers); err != nil {
		return game.Question{}, fmt.Errorf("create question: %w", err)
	}
	return question, nil
}

// CreateAssignment schedules the owner's world with a future deadline.
func (s *Service) CreateAssignment(ctx context.Context, actorID, worldID uuid.UUID, name string, deadline time.Time) (Assignment, error) {
	world, err := s.store.WorldByID(ctx, worldID)
	if err != nil {
		return Assignment{}, err
	}
	if !world.IsCustom {
		return Assignment{}, fmt.Errorf("world %s is not custom: %w", worldID, game.ErrValidation)
	}
	if world.CreatedBy != actorID {
		return Assignment{}, fmt.Errorf("world %s is owned by another user: %w", worldID, game.ErrPermissionDenied)
	}
	if !deadline.After(s.now()) {
		return Assignment{}, fmt.Errorf("assignment deadline must be in the future: %w", game.ErrValidation)
	}

	assignment := Assignment{
		ID:        uuid.New(),
		WorldID:   worldID,
		Name:      strings.TrimSpace(name),
		Deadline:  deadline,
		CreatedBy: actorID,
	}
	if assignment.Name == "" {
		assignment.Name = world.Name
	}
	if err := s.store.CreateAssignment(ctx, assignment); err != nil {
		return Assignment{}, fmt.Errorf("create assignment: %w", err)
	}
	return assignment, nil
}

// JoinByAccessCode resolves a code to its world. A world whose assignments
// have all expired can no longer be joined.
func (s *Service) JoinByAccessCode(ctx context.Context, code string) (JoinResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != accessCodeLength {
		return JoinResult{}, fmt.Errorf("access codes are %d characters: %w", accessCodeLength, game.ErrValidation)
	}

	world, err := s.store.WorldByAccessCode(ctx, code)
	if err != nil {
		return JoinResult{}, err
	}

	assignments, err := s.store.AssignmentsByWorld(ctx, world.ID)
	if err != nil {
		return JoinResult{}, err
	}
	if len(assignments) == 0 {
		return JoinResult{World: world}, nil
	}

	now := s.now()
	var nearest *time.Time
	for i := range assignments {
		d := assignments[i].Deadline
		if d.After(now) && (nearest == nil || d.Before(*nearest)) {
			nearest = &d
		}
	}
	if nearest == nil {
		return JoinResult{}, fmt.Errorf("all assignments for world %s are past their deadline: %w", world.ID, game.ErrPermissionDenied)
	}
	return JoinResult{World: world, Deadline: nearest}, nil
}

func (s *Service) reserveAccessCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := s.generateCode()
		inUse, err := s.store.AccessCodeInUse(ctx, code)
		if err != nil {
			return "", fmt.Errorf("probe access code: %w", err)
		}
		if !inUse {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique access code after %d attempts", maxCodeAttempts)
}

func (s *Service) generateCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	b.Grow(accessCodeLength)
	for i := 0; i < accessCodeLength; i++ {
		b.WriteByte(accessCodeAlphabet[s.rng.Intn(len(accessCodeAlphabet))])
	}
	return b.String()
}

func validateQuestionInput(in QuestionInput) error {
	if strings.TrimSpace(in.Prompt) == "" {
		return fmt.Errorf("question prompt is required: %w", game.ErrValidation)
	}
	if len(in.Answers) != 4 {
		return fmt.Errorf("questions take exactly 4 answers, got %d: %w", len(in.Answers), game.ErrValidation)
	}
	correct := 0
	for i, a := range in.Answers {
		if strings.TrimSpace(a.Text) == "" {
			return fmt.Errorf("answer %d is empty: %w", i+1, game.ErrValidation)
		}
		if a.Correct {
			correct++
		}
	}
	if correct != 1 {
		return fmt.Errorf("exactly one answer must be correct, got %d: %w", correct, game.ErrValidation)
	}
	return nil
}
