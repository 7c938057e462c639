package game

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Controller is the top-level orchestrator of the progression engine: it
// resolves positions, deals questions, validates answer batches and walks the
// unlock chain across level, section and world boundaries.
type Controller struct {
	content  ContentStore
	progress ProgressStore
	picker   *Picker
	sessions *SessionManager
	scorer   *Scorer
	rules    Rules
	logger   zerolog.Logger
	now      func() time.Time
}

// NewController wires the progression controller. now may be nil, defaulting
// to time.Now.
func NewController(content ContentStore, progress ProgressStore, picker *Picker, sessions *SessionManager, scorer *Scorer, rules Rules, logger zerolog.Logger, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{
		content:  content,
		progress: progress,
		picker:   picker,
		sessions: sessions,
		scorer:   scorer,
		rules:    rules,
		logger:   logger.With().Str("component", "progression").Logger(),
		now:      now,
	}
}

// Rules exposes the injected rule set (read-only).
func (c *Controller) Rules() Rules {
	return c.rules
}

// CurrentPosition resolves where the user stands in a world. First access
// instantiates the position at the world's first level and creates both the
// cursor and the level progress record in one transaction.
func (c *Controller) CurrentPosition(ctx context.Context, userID, worldID uuid.UUID) (Position, error) {
	world, err := c.content.WorldByID(ctx, worldID)
	if err != nil {
		return Position{}, err
	}

	cursor, err := c.progress.Cursor(ctx, userID, worldID)
	if err != nil {
		return Position{}, fmt.Errorf("load cursor: %w", err)
	}

	var level Level
	completed := false
	if cursor == nil {
		level, err = c.content.FirstLevelOfWorld(ctx, worldID)
		if err != nil {
			return Position{}, err
		}
		err = c.progress.WithTx(ctx, func(tx ProgressStore) error {
			if _, err := tx.CreateLevelProgress(ctx, userID, level.ID); err != nil {
				return err
			}
			return tx.SaveCursor(ctx, WorldCursor{UserID: userID, WorldID: worldID, LevelID: level.ID})
		})
		if err != nil {
			return Position{}, fmt.Errorf("instantiate position: %w", err)
		}
		c.logger.Debug().
			Stringer("user_id", userID).
			Stringer("level_id", level.ID).
			Msg("position instantiated at first level")
	} else {
		level, err = c.content.LevelByID(ctx, cursor.LevelID)
		if err != nil {
			return Position{}, err
		}
		completed = cursor.Completed
	}

	section, err := c.content.SectionByID(ctx, level.SectionID)
	if err != nil {
		return Position{}, err
	}

	return Position{World: world, Section: section, Level: level, WorldCompleted: completed}, nil
}

// PointsInWorld returns the user's accumulated points for a world.
func (c *Controller) PointsInWorld(ctx context.Context, userID, worldID uuid.UUID) (int, error) {
	return c.progress.SumPointsByWorld(ctx, userID, worldID)
}

// DifficultyInWorld returns the adaptively-chosen difficulty tier for the
// user's next question in a world.
func (c *Controller) DifficultyInWorld(ctx context.Context, userID, worldID uuid.UUID) (string, error) {
	points, err := c.progress.SumPointsByWorld(ctx, userID, worldID)
	if err != nil {
		return "", err
	}
	return c.rules.DifficultyFor(points), nil
}

// GetQuestions deals the user's next questions in a world: one question for a
// normal level, a full batch for a final boss. Calling it again before
// submitting returns the identical in-flight sessions.
func (c *Controller) GetQuestions(ctx context.Context, userID, worldID uuid.UUID) (Deal, error) {
	pos, err := c.CurrentPosition(ctx, userID, worldID)
	if err != nil {
		return Deal{}, err
	}
	if pos.WorldCompleted {
		return Deal{}, fmt.Errorf("world %s already completed: %w", worldID, ErrPermissionDenied)
	}

	var records []QuestionRecord
	if pos.Level.DealsBatch() {
		questions, err := c.picker.PickBossBatch(ctx, userID, worldID, c.rules.BossLevelQuestionCount)
		if err != nil {
			return Deal{}, err
		}
		records, err = c.sessions.GetOrCreateBossBatch(ctx, userID, pos.Level, questions)
		if err != nil {
			return Deal{}, err
		}
	} else {
		points, err := c.progress.SumPointsByWorld(ctx, userID, worldID)
		if err != nil {
			return Deal{}, fmt.Errorf("sum world points: %w", err)
		}
		question, err := c.picker.Pick(ctx, userID, pos.Section.ID, c.rules.DifficultyFor(points))
		if err != nil {
			return Deal{}, err
		}
		record, err := c.sessions.GetOrCreateSession(ctx, userID, pos.Level, question)
		if err != nil {
			return Deal{}, err
		}
		records = []QuestionRecord{record}
	}

	cards := make([]QuestionCard, 0, len(records))
	for i, rec := range records {
		// The session's question is authoritative; a reused session may hold
		// a different question than the one just picked.
		question, err := c.content.QuestionByID(ctx, rec.QuestionID)
		if err != nil {
			return Deal{}, err
		}
		answers, err := c.content.AnswersForQuestion(ctx, rec.QuestionID)
		if err != nil {
			return Deal{}, err
		}
		cards = append(cards, QuestionCard{Question: question, Answers: answers, RecordID: rec.ID, Index: i})
	}

	stats, err := c.progress.LevelStats(ctx, userID, pos.Level.ID)
	if err != nil {
		return Deal{}, fmt.Errorf("load level stats: %w", err)
	}

	return Deal{Cards: cards, Stats: stats}, nil
}

// AnswerQuestions validates and scores a submitted answer batch. The batch
// must hold exactly one submission for a normal level and exactly the boss
// question count for a final boss. On level completion the unlock walk runs
// and its outcome is returned with the per-question results.
func (c *Controller) AnswerQuestions(ctx context.Context, userID uuid.UUID, subs []AnswerSubmission) (AnswerOutcome, error) {
	if len(subs) == 0 {
		return AnswerOutcome{}, fmt.Errorf("empty answer batch: %w", ErrValidation)
	}

	records := make([]QuestionRecord, 0, len(subs))
	answers := make([]Answer, 0, len(subs))
	seen := make(map[uuid.UUID]struct{}, len(subs))
	for _, sub := range subs {
		// Each submission must reference a distinct session; the dealt batch
		// never contains the same record twice.
		if _, dup := seen[sub.RecordID]; dup {
			return AnswerOutcome{}, fmt.Errorf("session %s submitted more than once: %w", sub.RecordID, ErrValidation)
		}
		seen[sub.RecordID] = struct{}{}
		rec, err := c.progress.RecordByID(ctx, sub.RecordID)
		if err != nil {
			return AnswerOutcome{}, err
		}
		if rec.UserID != userID {
			return AnswerOutcome{}, fmt.Errorf("session %s belongs to another user: %w", rec.ID, ErrPermissionDenied)
		}
		if rec.Completed {
			return AnswerOutcome{}, fmt.Errorf("session %s: %w", rec.ID, ErrSessionAlreadyCompleted)
		}
		if len(records) > 0 && rec.LevelID != records[0].LevelID {
			return AnswerOutcome{}, fmt.Errorf("answer batch spans multiple levels: %w", ErrValidation)
		}
		answer, err := c.content.AnswerByID(ctx, sub.AnswerID)
		if err != nil {
			return AnswerOutcome{}, err
		}
		records = append(records, rec)
		answers = append(answers, answer)
	}

	level, err := c.content.LevelByID(ctx, records[0].LevelID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	section, err := c.content.SectionByID(ctx, level.SectionID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	world, err := c.content.WorldByID(ctx, section.WorldID)
	if err != nil {
		return AnswerOutcome{}, err
	}

	if level.DealsBatch() {
		return c.answerBoss(ctx, userID, level, section, world, records, answers)
	}
	return c.answerNormal(ctx, userID, level, section, world, records, answers)
}

func (c *Controller) answerNormal(ctx context.Context, userID uuid.UUID, level Level, section Section, world World, records []QuestionRecord, answers []Answer) (AnswerOutcome, error) {
	if len(records) != 1 {
		return AnswerOutcome{}, fmt.Errorf("normal level takes exactly 1 answer, got %d: %w", len(records), ErrValidation)
	}

	result, err := c.scorer.ScoreNormalAnswer(ctx, world.ID, records[0], answers[0])
	if err != nil {
		return AnswerOutcome{}, err
	}
	outcome := AnswerOutcome{Results: []AnswerResult{result}}

	// Only sessions belonging to the current visit count toward the quota:
	// a reopened level starts from zero even though older completed sessions
	// remain on record.
	var visitStart time.Time
	active, err := c.progress.ActiveLevelProgress(ctx, userID, level.ID)
	if err != nil {
		return AnswerOutcome{}, fmt.Errorf("load level progress: %w", err)
	}
	if active != nil {
		visitStart = active.StartedAt
	}
	completed, err := c.progress.CompletedRecordCount(ctx, userID, level.ID, visitStart)
	if err != nil {
		return AnswerOutcome{}, fmt.Errorf("count completed sessions: %w", err)
	}
	if completed >= c.rules.NormalLevelQuestionCount {
		unlock, err := c.completeAndUnlock(ctx, userID, level, section, world)
		if err != nil {
			return AnswerOutcome{}, err
		}
		outcome.LevelCleared = true
		outcome.Unlock = unlock
	}

	return outcome, nil
}

func (c *Controller) answerBoss(ctx context.Context, userID uuid.UUID, level Level, section Section, world World, records []QuestionRecord, answers []Answer) (AnswerOutcome, error) {
	batch := make([]BossSubmission, 0, len(records))
	for i := range records {
		batch = append(batch, BossSubmission{Session: records[i], Answer: answers[i]})
	}

	results, passed, err := c.scorer.ScoreBossBatch(ctx, level, batch)
	if err != nil {
		return AnswerOutcome{}, err
	}
	outcome := AnswerOutcome{Results: results}

	if passed {
		unlock, err := c.completeAndUnlock(ctx, userID, level, section, world)
		if err != nil {
			return AnswerOutcome{}, err
		}
		outcome.LevelCleared = true
		outcome.Unlock = unlock
	} else {
		// Failed checkpoint: the active progress record survives, so the next
		// GetQuestions call deals a brand-new batch.
		c.logger.Info().
			Stringer("user_id", userID).
			Stringer("level_id", level.ID).
			Msg("boss checkpoint failed, level stays open")
	}

	return outcome, nil
}

// completeAndUnlock clears the active progress record and advances the cursor
// to the next node: next level in section, first level of the next campaign
// section (possibly in the next campaign world), or a terminal state. The
// whole transition commits atomically.
func (c *Controller) completeAndUnlock(ctx context.Context, userID uuid.UUID, level Level, section Section, world World) (*Unlock, error) {
	var unlock Unlock
	now := c.now()

	err := c.progress.WithTx(ctx, func(tx ProgressStore) error {
		active, err := tx.ActiveLevelProgress(ctx, userID, level.ID)
		if err != nil {
			return fmt.Errorf("load level progress: %w", err)
		}
		if active == nil {
			return fmt.Errorf("cleared level %s has no active progress record: %w", level.ID, ErrDataIntegrity)
		}
		if err := tx.CompleteLevelProgress(ctx, active.ID, now); err != nil {
			return fmt.Errorf("complete level progress: %w", err)
		}

		next, err := c.content.NextLevelInSection(ctx, section.ID, level.Index)
		if err != nil {
			return fmt.Errorf("find next level: %w", err)
		}
		if next != nil {
			if _, err := tx.CreateLevelProgress(ctx, userID, next.ID); err != nil {
				return err
			}
			if err := tx.SaveCursor(ctx, WorldCursor{UserID: userID, WorldID: world.ID, LevelID: next.ID}); err != nil {
				return err
			}
			unlock = Unlock{Status: UnlockNextLevel, NextLevel: next}
			return nil
		}

		// Section exhausted. Custom worlds are single-section by
		// construction, so this ends them.
		if world.IsCustom {
			if err := tx.SaveCursor(ctx, WorldCursor{UserID: userID, WorldID: world.ID, LevelID: level.ID, Completed: true}); err != nil {
				return err
			}
			unlock = Unlock{Status: UnlockWorldDone}
			return nil
		}

		nextSection, err := c.content.NextCampaignSection(ctx, section.Index)
		if err != nil {
			return fmt.Errorf("find next section: %w", err)
		}
		if nextSection == nil {
			if err := tx.SaveCursor(ctx, WorldCursor{UserID: userID, WorldID: world.ID, LevelID: level.ID, Completed: true}); err != nil {
				return err
			}
			unlock = Unlock{Status: UnlockCampaignDone}
			return nil
		}

		first, err := c.content.FirstLevelOfSection(ctx, nextSection.ID)
		if err != nil {
			return fmt.Errorf("find first level of section: %w", err)
		}
		if first == nil {
			// Malformed content: a section with zero levels. Treat the world
			// as complete instead of crashing the unlock walk.
			c.logger.Warn().
				Stringer("section_id", nextSection.ID).
				Msg("next section has no levels, treating world as complete")
			if err := tx.SaveCursor(ctx, WorldCursor{UserID: userID, WorldID: world.ID, LevelID: level.ID, Completed: true}); err != nil {
				return err
			}
			unlock = Unlock{Status: UnlockWorldDone}
			return nil
		}

		if _, err := tx.CreateLevelProgress(ctx, userID, first.ID); err != nil {
			return err
		}
		if nextSection.WorldID != world.ID {
			// Crossing a world boundary: close out the old cursor and open
			// one in the next campaign world.
			if err := tx.SaveCursor(ctx, WorldCursor{UserID: userID, WorldID: world.ID, LevelID: level.ID, Completed: true}); err != nil {
				return err
			}
		}
		if err := tx.SaveCursor(ctx, WorldCursor{UserID: userID, WorldID: nextSection.WorldID, LevelID: first.ID}); err != nil {
			return err
		}
		unlock = Unlock{Status: UnlockNextLevel, NextLevel: first}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Stringer("user_id", userID).
		Stringer("level_id", level.ID).
		Str("unlock", string(unlock.Status)).
		Msg("level cleared")
	return &unlock, nil
}
