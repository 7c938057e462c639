package game

import (
	"time"

	"github.com/google/uuid"
)

// Difficulty tiers for questions. Stored as strings to keep the schema readable.
const (
	DifficultyEasy   = "easy"
	DifficultyNormal = "normal"
	DifficultyHard   = "hard"
)

// World is a top-level topic container. Campaign worlds are ordered by Index;
// custom worlds are unordered (Index is nil) and owned by their creator.
type World struct {
	ID         uuid.UUID
	Name       string
	Topic      string
	IsCustom   bool
	Index      *int
	AccessCode string
	CreatedBy  uuid.UUID
}

// Section groups levels inside exactly one world. Index is unique across the
// whole system so "next section" lookups can run globally.
type Section struct {
	ID      uuid.UUID
	WorldID uuid.UUID
	Name    string
	Index   int
}

// Level is a single progression node. Index is globally unique, like Section.
// A mini boss ends a section; a final boss ends the last section of a world
// and is the only level type that deals a question batch.
type Level struct {
	ID               uuid.UUID
	SectionID        uuid.UUID
	Name             string
	Index            int
	IsBossLevel      bool
	IsFinalBossLevel bool
}

// DealsBatch reports whether answering this level requires a full boss batch.
func (l Level) DealsBatch() bool {
	return l.IsFinalBossLevel
}

// Question belongs to a section, not a level: any level in the section draws
// from the section's pool.
type Question struct {
	ID         uuid.UUID
	SectionID  uuid.UUID
	Prompt     string
	Difficulty string
	CreatedBy  uuid.UUID
	CreatedAt  time.Time
}

// Answer is one of exactly four options for a question.
type Answer struct {
	ID         uuid.UUID
	QuestionID uuid.UUID
	Text       string
	IsCorrect  bool
}

// LevelProgress tracks whether a user has reached (uncompleted) or cleared
// (completed) a level. At most one uncompleted row may exist per (user, level).
type LevelProgress struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	LevelID     uuid.UUID
	Completed   bool
	StartedAt   time.Time
	CompletedAt *time.Time
}

// QuestionRecord is one question-attempt session for a (user, level, question)
// tuple. Correct stays nil until the attempt is resolved.
type QuestionRecord struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	LevelID      uuid.UUID
	QuestionID   uuid.UUID
	Correct      *bool
	PointsChange int
	Completed    bool
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// WorldCursor is the explicit per-(user, world) position pointer. It is
// advanced transactionally on unlock instead of being inferred from the most
// recent progress record.
type WorldCursor struct {
	UserID    uuid.UUID
	WorldID   uuid.UUID
	LevelID   uuid.UUID
	Completed bool
	UpdatedAt time.Time
}

// Position is the resolved location of a user inside a world.
type Position struct {
	World          World
	Section        Section
	Level          Level
	WorldCompleted bool
}

// QuestionCard is a dealt question with its answer options and the session
// record the answer must reference. Index orders cards within a boss batch.
type QuestionCard struct {
	Question Question
	Answers  []Answer
	RecordID uuid.UUID
	Index    int
}

// LevelStats summarizes a user's sessions on the current level.
type LevelStats struct {
	Points       int
	CorrectCount int
}

// Deal is the payload returned by GetQuestions.
type Deal struct {
	Cards []QuestionCard
	Stats LevelStats
}

// AnswerSubmission ties a session record to the chosen answer option.
type AnswerSubmission struct {
	RecordID uuid.UUID
	AnswerID uuid.UUID
}

// AnswerResult is the scored outcome of one submission.
type AnswerResult struct {
	RecordID     uuid.UUID
	Correct      bool
	PointsChange int
}

// UnlockStatus describes what, if anything, a cleared level unlocked.
type UnlockStatus string

const (
	UnlockNextLevel    UnlockStatus = "next_level"
	UnlockWorldDone    UnlockStatus = "world_complete"
	UnlockCampaignDone UnlockStatus = "campaign_complete"
)

// Unlock is the result of the unlock-next-node walk.
type Unlock struct {
	Status    UnlockStatus
	NextLevel *Level
}

// AnswerOutcome aggregates the results of an answer batch.
type AnswerOutcome struct {
	Results      []AnswerResult
	LevelCleared bool
	Unlock       *Unlock
}

// Rules holds the tunable progression constants. It is injected into the
// controller at construction so rule changes never touch core logic.
type Rules struct {
	DifficultyLowThreshold  int
	DifficultyHighThreshold int

	CorrectPoints map[string]int
	WrongPoints   map[string]int

	NormalLevelQuestionCount int
	BossLevelQuestionCount   int
	BossPassThreshold        int
}

// DefaultRules returns the production points model.
func DefaultRules() Rules {
	return Rules{
		DifficultyLowThreshold:  20,
		DifficultyHighThreshold: 65,
		CorrectPoints: map[string]int{
			DifficultyEasy:   10,
			DifficultyNormal: 20,
			DifficultyHard:   30,
		},
		WrongPoints: map[string]int{
			DifficultyEasy:   -5,
			DifficultyNormal: -10,
			DifficultyHard:   -15,
		},
		NormalLevelQuestionCount: 3,
		BossLevelQuestionCount:   10,
		BossPassThreshold:        5,
	}
}
