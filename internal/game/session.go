package game

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// SessionManager creates and reuses question-answer sessions while enforcing
// the at-most-one-active-session-per-level invariants. Duplicate "deal me a
// question" calls are absorbed here by returning the in-flight session
// instead of creating another; that is the whole concurrency story for
// overlapping requests from the same user.
type SessionManager struct {
	progress ProgressStore
	rules    Rules
}

// NewSessionManager builds a session manager.
func NewSessionManager(progress ProgressStore, rules Rules) *SessionManager {
	return &SessionManager{progress: progress, rules: rules}
}

// GetOrCreateSession returns the session a normal-level visit should play.
// The question argument only matters when a fresh session is dealt; an
// in-flight session is authoritative and returned unchanged.
func (m *SessionManager) GetOrCreateSession(ctx context.Context, userID uuid.UUID, level Level, question Question) (QuestionRecord, error) {
	existing, err := m.progress.RecordsByLevel(ctx, userID, level.ID)
	if err != nil {
		return QuestionRecord{}, fmt.Errorf("load sessions: %w", err)
	}

	for _, rec := range existing {
		if !rec.Completed {
			return rec, nil
		}
	}

	if len(existing) > 0 {
		// Every session is resolved; only deal another while the level is
		// still uncleared.
		active, err := m.progress.ActiveLevelProgress(ctx, userID, level.ID)
		if err != nil {
			return QuestionRecord{}, fmt.Errorf("check level progress: %w", err)
		}
		if active == nil {
			return QuestionRecord{}, fmt.Errorf("level %s already cleared: %w", level.ID, ErrPermissionDenied)
		}
	}

	return m.progress.CreateRecord(ctx, QuestionRecord{
		ID:         uuid.New(),
		UserID:     userID,
		LevelID:    level.ID,
		QuestionID: question.ID,
	})
}

// GetOrCreateBossBatch returns the boss batch for a final-boss visit. A full
// uncompleted batch is returned as-is (idempotent retry, the questions
// argument is ignored); a partially uncompleted batch means the store holds
// state that atomic batch scoring can never produce.
func (m *SessionManager) GetOrCreateBossBatch(ctx context.Context, userID uuid.UUID, level Level, questions []Question) ([]QuestionRecord, error) {
	if !level.DealsBatch() {
		return nil, fmt.Errorf("level %s is not a boss level: %w", level.ID, ErrPermissionDenied)
	}

	existing, err := m.progress.RecordsByLevel(ctx, userID, level.ID)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	var open []QuestionRecord
	for _, rec := range existing {
		if !rec.Completed {
			open = append(open, rec)
		}
	}

	switch {
	case len(open) == m.rules.BossLevelQuestionCount:
		return open, nil
	case len(open) > 0:
		return nil, fmt.Errorf("level %s has %d of %d boss sessions open: %w",
			level.ID, len(open), m.rules.BossLevelQuestionCount, ErrDataIntegrity)
	}

	active, err := m.progress.ActiveLevelProgress(ctx, userID, level.ID)
	if err != nil {
		return nil, fmt.Errorf("check level progress: %w", err)
	}
	if active == nil {
		return nil, fmt.Errorf("level %s already cleared: %w", level.ID, ErrPermissionDenied)
	}

	batch := make([]QuestionRecord, 0, len(questions))
	for _, q := range questions {
		batch = append(batch, QuestionRecord{
			ID:         uuid.New(),
			UserID:     userID,
			LevelID:    level.ID,
			QuestionID: q.ID,
		})
	}
	return m.progress.CreateRecords(ctx, batch)
}
