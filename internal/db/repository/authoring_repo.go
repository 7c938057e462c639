package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codequest-edu/game-server/internal/content"
	"github.com/codequest-edu/game-server/internal/game"
)

// AuthoringRepository persists authored custom worlds, their question bank and
// assignments. It implements content.Store, reusing ContentRepository for the
// read side.
type AuthoringRepository struct {
	*ContentRepository
	db   querier
	pool *pgxpool.Pool
}

func NewAuthoringRepository(pool *pgxpool.Pool) *AuthoringRepository {
	return &AuthoringRepository{
		ContentRepository: NewContentRepository(pool),
		db:                pool,
		pool:              pool,
	}
}

func (r *AuthoringRepository) WithTx(ctx context.Context, fn func(content.Store) error) error {
	if r.pool == nil {
		return fn(r)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	bound := &AuthoringRepository{ContentRepository: NewContentRepository(tx), db: tx}
	if err := fn(bound); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *AuthoringRepository) CreateWorld(ctx context.Context, w game.World) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO worlds (id, name, topic, is_custom, world_index, access_code, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.ID, w.Name, w.Topic, w.IsCustom, w.Index, w.AccessCode, nullableUUID(w.CreatedBy))
	if isUniqueViolation(err) {
		return fmt.Errorf("world conflicts with an existing one: %w", game.ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("insert world: %w", err)
	}
	return nil
}

func (r *AuthoringRepository) CreateSection(ctx context.Context, s game.Section) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sections (id, world_id, name, section_index)
		 VALUES ($1, $2, $3, $4)`, s.ID, s.WorldID, s.Name, s.Index)
	if err != nil {
		return fmt.Errorf("insert section: %w", err)
	}
	return nil
}

func (r *AuthoringRepository) CreateLevel(ctx context.Context, l game.Level) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO levels (id, section_id, name, level_index, is_boss, is_final_boss)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.SectionID, l.Name, l.Index, l.IsBossLevel, l.IsFinalBossLevel)
	if err != nil {
		return fmt.Errorf("insert level: %w", err)
	}
	return nil
}

func (r *AuthoringRepository) CreateQuestion(ctx context.Context, q game.Question, answers []game.Answer) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO questions (id, section_id, prompt, difficulty, created_by)
		 VALUES ($1, $2, $3, $4, $5)`,
		q.ID, q.SectionID, q.Prompt, q.Difficulty, nullableUUID(q.CreatedBy))
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	for _, a := range answers {
		_, err := r.db.Exec(ctx,
			`INSERT INTO answers (id, question_id, answer_text, is_correct)
			 VALUES ($1, $2, $3, $4)`, a.ID, a.QuestionID, a.Text, a.IsCorrect)
		if err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
	}
	return nil
}

func (r *AuthoringRepository) QuestionCountBySection(ctx context.Context, sectionID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM questions WHERE section_id = $1`, sectionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count section questions: %w", err)
	}
	return count, nil
}

func (r *AuthoringRepository) AccessCodeInUse(ctx context.Context, code string) (bool, error) {
	var inUse bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM worlds WHERE access_code = $1)`, code,
	).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("probe access code: %w", err)
	}
	return inUse, nil
}

func (r *AuthoringRepository) CreateAssignment(ctx context.Context, a content.Assignment) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO assignments (id, world_id, name, deadline, created_by)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.WorldID, a.Name, a.Deadline, nullableUUID(a.CreatedBy))
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

func (r *AuthoringRepository) AssignmentsByWorld(ctx context.Context, worldID uuid.UUID) ([]content.Assignment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, world_id, name, deadline, created_by, created_at
		 FROM assignments
		 WHERE world_id = $1
		 ORDER BY deadline`, worldID)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var out []content.Assignment
	for rows.Next() {
		var a content.Assignment
		var createdBy *uuid.UUID
		if err := rows.Scan(&a.ID, &a.WorldID, &a.Name, &a.Deadline, &createdBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		if createdBy != nil {
			a.CreatedBy = *createdBy
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
