package game

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ContentStore is the read-mostly query surface over worlds, sections, levels,
// questions and answers. Lookups by ID return an error wrapping ErrNotFound
// when the entity does not exist; "next/first" lookups return nil when the
// progression graph simply ends there.
type ContentStore interface {
	WorldByID(ctx context.Context, id uuid.UUID) (World, error)
	SectionByID(ctx context.Context, id uuid.UUID) (Section, error)
	LevelByID(ctx context.Context, id uuid.UUID) (Level, error)

	// FirstLevelOfWorld returns the lowest-index level across the world's
	// sections, where a fresh player is positioned.
	FirstLevelOfWorld(ctx context.Context, worldID uuid.UUID) (Level, error)

	// NextLevelInSection returns the next level of the section with index
	// greater than afterIndex, or nil when the section is exhausted.
	NextLevelInSection(ctx context.Context, sectionID uuid.UUID, afterIndex int) (*Level, error)

	// NextCampaignSection returns the next section by global index among
	// campaign worlds only, or nil when the campaign is exhausted.
	NextCampaignSection(ctx context.Context, afterIndex int) (*Section, error)

	// FirstLevelOfSection returns the section's lowest-index level, or nil
	// for a section with no levels.
	FirstLevelOfSection(ctx context.Context, sectionID uuid.UUID) (*Level, error)

	// QuestionsBySection lists the section's questions, filtered to one
	// difficulty when difficulty is non-empty, excluding the given IDs.
	QuestionsBySection(ctx context.Context, sectionID uuid.UUID, difficulty string, exclude []uuid.UUID) ([]Question, error)

	// QuestionsByWorld lists questions across all sections of a world,
	// excluding the given IDs.
	QuestionsByWorld(ctx context.Context, worldID uuid.UUID, exclude []uuid.UUID) ([]Question, error)

	QuestionByID(ctx context.Context, id uuid.UUID) (Question, error)
	AnswerByID(ctx context.Context, id uuid.UUID) (Answer, error)
	AnswersForQuestion(ctx context.Context, questionID uuid.UUID) ([]Answer, error)
}

// ProgressStore holds the mutable per-user state: level progress records,
// question-answer sessions and world cursors.
type ProgressStore interface {
	// WithTx runs fn against a store bound to one transaction. Writes made
	// inside fn become visible atomically; any error rolls everything back.
	WithTx(ctx context.Context, fn func(ProgressStore) error) error

	// Cursor returns the user's position pointer in a world, nil if the user
	// has never entered it.
	Cursor(ctx context.Context, userID, worldID uuid.UUID) (*WorldCursor, error)

	// SaveCursor upserts the (user, world) cursor.
	SaveCursor(ctx context.Context, cursor WorldCursor) error

	CreateLevelProgress(ctx context.Context, userID, levelID uuid.UUID) (LevelProgress, error)

	// ActiveLevelProgress returns the single uncompleted progress record for
	// (user, level), nil if none exists.
	ActiveLevelProgress(ctx context.Context, userID, levelID uuid.UUID) (*LevelProgress, error)

	CompleteLevelProgress(ctx context.Context, id uuid.UUID, at time.Time) error

	CreateRecord(ctx context.Context, record QuestionRecord) (QuestionRecord, error)

	// CreateRecords inserts a boss batch atomically.
	CreateRecords(ctx context.Context, records []QuestionRecord) ([]QuestionRecord, error)

	RecordByID(ctx context.Context, id uuid.UUID) (QuestionRecord, error)
	RecordsByLevel(ctx context.Context, userID, levelID uuid.UUID) ([]QuestionRecord, error)

	// CompleteRecord resolves a session with its correctness and points delta.
	CompleteRecord(ctx context.Context, id uuid.UUID, correct bool, points int, at time.Time) error

	// SumPointsByWorld totals points_change over the user's sessions scoped
	// to one world; no sessions counts as zero.
	SumPointsByWorld(ctx context.Context, userID, worldID uuid.UUID) (int, error)

	// CorrectQuestionIDs lists every question the user has ever answered
	// correctly, across all worlds. Feeds the picker's mastery exclusion.
	CorrectQuestionIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)

	// LevelStats sums points and counts correct answers over the user's
	// sessions for one level.
	LevelStats(ctx context.Context, userID, levelID uuid.UUID) (LevelStats, error)

	// CompletedRecordCount counts resolved sessions for (user, level) created
	// at or after since. A zero since counts across all visits.
	CompletedRecordCount(ctx context.Context, userID, levelID uuid.UUID, since time.Time) (int, error)
}
