package reporting

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codequest-edu/game-server/internal/game"
)

// SectionTotal is the raw per-section aggregate from the store.
type SectionTotal struct {
	SectionID   uuid.UUID
	Name        string
	Index       int
	TotalPoints int
	PlayerCount int
}

// QuestionStats counts resolved attempts against one question.
type QuestionStats struct {
	QuestionID   uuid.UUID `json:"question_id"`
	SectionID    uuid.UUID `json:"-"`
	Prompt       string    `json:"prompt"`
	CorrectCount int       `json:"correct_count"`
	WrongCount   int       `json:"wrong_count"`
}

// SectionStats is the reported per-section slice of world statistics.
type SectionStats struct {
	SectionID     uuid.UUID       `json:"section_id"`
	Name          string          `json:"name"`
	TotalPoints   int             `json:"total_points"`
	AveragePoints float64         `json:"average_points"`
	PlayerCount   int             `json:"player_count"`
	Questions     []QuestionStats `json:"questions"`
}

// WorldStatistics aggregates a world's play data for its owner or operators.
type WorldStatistics struct {
	WorldID  uuid.UUID      `json:"world_id"`
	Name     string         `json:"name"`
	Sections []SectionStats `json:"sections"`
}

// Store runs the statistics aggregates.
type Store interface {
	WorldByID(ctx context.Context, id uuid.UUID) (game.World, error)
	SectionTotals(ctx context.Context, worldID uuid.UUID) ([]SectionTotal, error)
	QuestionBreakdown(ctx context.Context, worldID uuid.UUID) ([]QuestionStats, error)
}

// Service assembles world statistics from store aggregates.
type Service struct {
	store  Store
	logger zerolog.Logger
}

func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "reporting").Logger(),
	}
}

// WorldStatistics reports per-section totals and averages plus per-question
// correct/wrong counts for one world. Average is over users who answered in
// the section; an unplayed section averages zero.
func (s *Service) WorldStatistics(ctx context.Context, worldID uuid.UUID) (WorldStatistics, error) {
	world, err := s.store.WorldByID(ctx, worldID)
	if err != nil {
		return WorldStatistics{}, err
	}

	totals, err := s.store.SectionTotals(ctx, worldID)
	if err != nil {
		return WorldStatistics{}, fmt.Errorf("load section totals: %w", err)
	}
	questions, err := s.store.QuestionBreakdown(ctx, worldID)
	if err != nil {
		return WorldStatistics{}, fmt.Errorf("load question breakdown: %w", err)
	}

	bySection := make(map[uuid.UUID][]QuestionStats, len(totals))
	for _, q := range questions {
		bySection[q.SectionID] = append(bySection[q.SectionID], q)
	}

	stats := WorldStatistics{WorldID: world.ID, Name: world.Name}
	for _, total := range totals {
		section := SectionStats{
			SectionID:   total.SectionID,
			Name:        total.Name,
			TotalPoints: total.TotalPoints,
			PlayerCount: total.PlayerCount,
			Questions:   bySection[total.SectionID],
		}
		if total.PlayerCount > 0 {
			section.AveragePoints = float64(total.TotalPoints) / float64(total.PlayerCount)
		}
		if section.Questions == nil {
			section.Questions = []QuestionStats{}
		}
		stats.Sections = append(stats.Sections, section)
	}
	return stats, nil
}
