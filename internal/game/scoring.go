package game

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Scorer applies the points model to submitted answers and resolves sessions.
// No mutation happens until every validation for the operation has passed.
type Scorer struct {
	content  ContentStore
	progress ProgressStore
	rules    Rules
	now      func() time.Time
}

// NewScorer builds a scorer. now may be nil, defaulting to time.Now.
func NewScorer(content ContentStore, progress ProgressStore, rules Rules, now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{content: content, progress: progress, rules: rules, now: now}
}

// ScoreNormalAnswer resolves one normal-level session. The points delta
// follows the question's difficulty; a negative delta is clamped so the
// user's world total never drops below zero.
func (s *Scorer) ScoreNormalAnswer(ctx context.Context, worldID uuid.UUID, session QuestionRecord, answer Answer) (AnswerResult, error) {
	if answer.QuestionID != session.QuestionID {
		return AnswerResult{}, fmt.Errorf("answer %s does not belong to session question: %w", answer.ID, ErrPermissionDenied)
	}
	if session.Completed {
		return AnswerResult{}, fmt.Errorf("session %s: %w", session.ID, ErrSessionAlreadyCompleted)
	}

	question, err := s.content.QuestionByID(ctx, session.QuestionID)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("load question: %w", err)
	}

	delta := s.rules.WrongPoints[question.Difficulty]
	if answer.IsCorrect {
		delta = s.rules.CorrectPoints[question.Difficulty]
	}

	if delta < 0 {
		total, err := s.progress.SumPointsByWorld(ctx, session.UserID, worldID)
		if err != nil {
			return AnswerResult{}, fmt.Errorf("sum world points: %w", err)
		}
		if total+delta < 0 {
			delta = -total // floor at zero, never below
		}
	}

	if err := s.progress.CompleteRecord(ctx, session.ID, answer.IsCorrect, delta, s.now()); err != nil {
		return AnswerResult{}, fmt.Errorf("complete session: %w", err)
	}

	return AnswerResult{RecordID: session.ID, Correct: answer.IsCorrect, PointsChange: delta}, nil
}

// BossSubmission pairs a boss session with the chosen answer.
type BossSubmission struct {
	Session QuestionRecord
	Answer  Answer
}

// ScoreBossBatch resolves a full boss batch atomically: either every session
// is marked completed or none is. Boss questions record zero points; the
// checkpoint is pass/fail by correctness count, not points-driving.
func (s *Scorer) ScoreBossBatch(ctx context.Context, level Level, batch []BossSubmission) ([]AnswerResult, bool, error) {
	if len(batch) != s.rules.BossLevelQuestionCount {
		return nil, false, fmt.Errorf("boss batch needs %d answers, got %d: %w",
			s.rules.BossLevelQuestionCount, len(batch), ErrValidation)
	}

	for _, sub := range batch {
		if sub.Session.LevelID != level.ID {
			return nil, false, fmt.Errorf("session %s belongs to another level: %w", sub.Session.ID, ErrValidation)
		}
		if sub.Session.Completed {
			return nil, false, fmt.Errorf("session %s: %w", sub.Session.ID, ErrSessionAlreadyCompleted)
		}
		if sub.Answer.QuestionID != sub.Session.QuestionID {
			return nil, false, fmt.Errorf("answer %s does not belong to session question: %w", sub.Answer.ID, ErrPermissionDenied)
		}
	}

	now := s.now()
	results := make([]AnswerResult, 0, len(batch))
	correct := 0

	err := s.progress.WithTx(ctx, func(tx ProgressStore) error {
		for _, sub := range batch {
			if err := tx.CompleteRecord(ctx, sub.Session.ID, sub.Answer.IsCorrect, 0, now); err != nil {
				return fmt.Errorf("complete session %s: %w", sub.Session.ID, err)
			}
			if sub.Answer.IsCorrect {
				correct++
			}
			results = append(results, AnswerResult{RecordID: sub.Session.ID, Correct: sub.Answer.IsCorrect})
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return results, correct >= s.rules.BossPassThreshold, nil
}
