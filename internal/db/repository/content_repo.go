package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/codequest-edu/game-server/internal/game"
)

// ContentRepository reads the progression graph (worlds, sections, levels) and
// the question bank from Postgres. It implements game.ContentStore.
type ContentRepository struct {
	db querier
}

func NewContentRepository(db querier) *ContentRepository {
	return &ContentRepository{db: db}
}

const worldColumns = `id, name, topic, is_custom, world_index, access_code, created_by`

func scanWorld(row pgx.Row) (game.World, error) {
	var w game.World
	var createdBy *uuid.UUID
	err := row.Scan(&w.ID, &w.Name, &w.Topic, &w.IsCustom, &w.Index, &w.AccessCode, &createdBy)
	if err != nil {
		return game.World{}, err
	}
	if createdBy != nil {
		w.CreatedBy = *createdBy
	}
	return w, nil
}

func (r *ContentRepository) WorldByID(ctx context.Context, id uuid.UUID) (game.World, error) {
	row := r.db.QueryRow(ctx, `SELECT `+worldColumns+` FROM worlds WHERE id = $1`, id)
	w, err := scanWorld(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.World{}, fmt.Errorf("world %s: %w", id, game.ErrNotFound)
	}
	if err != nil {
		return game.World{}, fmt.Errorf("query world: %w", err)
	}
	return w, nil
}

// WorldByAccessCode resolves a custom world from its join code.
func (r *ContentRepository) WorldByAccessCode(ctx context.Context, code string) (game.World, error) {
	row := r.db.QueryRow(ctx, `SELECT `+worldColumns+` FROM worlds WHERE access_code = $1`, code)
	w, err := scanWorld(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.World{}, fmt.Errorf("access code %q: %w", code, game.ErrNotFound)
	}
	if err != nil {
		return game.World{}, fmt.Errorf("query world by access code: %w", err)
	}
	return w, nil
}

func (r *ContentRepository) SectionByID(ctx context.Context, id uuid.UUID) (game.Section, error) {
	var s game.Section
	err := r.db.QueryRow(ctx,
		`SELECT id, world_id, name, section_index FROM sections WHERE id = $1`, id,
	).Scan(&s.ID, &s.WorldID, &s.Name, &s.Index)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Section{}, fmt.Errorf("section %s: %w", id, game.ErrNotFound)
	}
	if err != nil {
		return game.Section{}, fmt.Errorf("query section: %w", err)
	}
	return s, nil
}

// SectionsByWorld lists a world's sections in index order.
func (r *ContentRepository) SectionsByWorld(ctx context.Context, worldID uuid.UUID) ([]game.Section, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, world_id, name, section_index FROM sections WHERE world_id = $1 ORDER BY section_index`, worldID)
	if err != nil {
		return nil, fmt.Errorf("query sections: %w", err)
	}
	defer rows.Close()

	var out []game.Section
	for rows.Next() {
		var s game.Section
		if err := rows.Scan(&s.ID, &s.WorldID, &s.Name, &s.Index); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const levelColumns = `id, section_id, name, level_index, is_boss, is_final_boss`

func scanLevel(row pgx.Row) (game.Level, error) {
	var l game.Level
	err := row.Scan(&l.ID, &l.SectionID, &l.Name, &l.Index, &l.IsBossLevel, &l.IsFinalBossLevel)
	return l, err
}

func (r *ContentRepository) LevelByID(ctx context.Context, id uuid.UUID) (game.Level, error) {
	l, err := scanLevel(r.db.QueryRow(ctx, `SELECT `+levelColumns+` FROM levels WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Level{}, fmt.Errorf("level %s: %w", id, game.ErrNotFound)
	}
	if err != nil {
		return game.Level{}, fmt.Errorf("query level: %w", err)
	}
	return l, nil
}

func (r *ContentRepository) FirstLevelOfWorld(ctx context.Context, worldID uuid.UUID) (game.Level, error) {
	l, err := scanLevel(r.db.QueryRow(ctx,
		`SELECT l.id, l.section_id, l.name, l.level_index, l.is_boss, l.is_final_boss
		 FROM levels l
		 JOIN sections s ON s.id = l.section_id
		 WHERE s.world_id = $1
		 ORDER BY l.level_index
		 LIMIT 1`, worldID))
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Level{}, fmt.Errorf("world %s has no levels: %w", worldID, game.ErrNotFound)
	}
	if err != nil {
		return game.Level{}, fmt.Errorf("query first level of world: %w", err)
	}
	return l, nil
}

func (r *ContentRepository) NextLevelInSection(ctx context.Context, sectionID uuid.UUID, afterIndex int) (*game.Level, error) {
	l, err := scanLevel(r.db.QueryRow(ctx,
		`SELECT `+levelColumns+` FROM levels
		 WHERE section_id = $1 AND level_index > $2
		 ORDER BY level_index
		 LIMIT 1`, sectionID, afterIndex))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query next level: %w", err)
	}
	return &l, nil
}

func (r *ContentRepository) NextCampaignSection(ctx context.Context, afterIndex int) (*game.Section, error) {
	var s game.Section
	err := r.db.QueryRow(ctx,
		`SELECT s.id, s.world_id, s.name, s.section_index
		 FROM sections s
		 JOIN worlds w ON w.id = s.world_id
		 WHERE NOT w.is_custom AND s.section_index > $1
		 ORDER BY s.section_index
		 LIMIT 1`, afterIndex,
	).Scan(&s.ID, &s.WorldID, &s.Name, &s.Index)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query next campaign section: %w", err)
	}
	return &s, nil
}

func (r *ContentRepository) FirstLevelOfSection(ctx context.Context, sectionID uuid.UUID) (*game.Level, error) {
	l, err := scanLevel(r.db.QueryRow(ctx,
		`SELECT `+levelColumns+` FROM levels
		 WHERE section_id = $1
		 ORDER BY level_index
		 LIMIT 1`, sectionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query first level of section: %w", err)
	}
	return &l, nil
}

const questionColumns = `id, section_id, prompt, difficulty, created_by, created_at`

func scanQuestion(row pgx.Row) (game.Question, error) {
	var q game.Question
	var createdBy *uuid.UUID
	err := row.Scan(&q.ID, &q.SectionID, &q.Prompt, &q.Difficulty, &createdBy, &q.CreatedAt)
	if err != nil {
		return game.Question{}, err
	}
	if createdBy != nil {
		q.CreatedBy = *createdBy
	}
	return q, nil
}

func (r *ContentRepository) QuestionsBySection(ctx context.Context, sectionID uuid.UUID, difficulty string, exclude []uuid.UUID) ([]game.Question, error) {
	if exclude == nil {
		exclude = []uuid.UUID{}
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+questionColumns+` FROM questions
		 WHERE section_id = $1
		   AND ($2 = '' OR difficulty = $2)
		   AND NOT (id = ANY($3))
		 ORDER BY created_at, id`, sectionID, difficulty, exclude)
	if err != nil {
		return nil, fmt.Errorf("query section questions: %w", err)
	}
	defer rows.Close()
	return collectQuestions(rows)
}

func (r *ContentRepository) QuestionsByWorld(ctx context.Context, worldID uuid.UUID, exclude []uuid.UUID) ([]game.Question, error) {
	if exclude == nil {
		exclude = []uuid.UUID{}
	}
	rows, err := r.db.Query(ctx,
		`SELECT q.id, q.section_id, q.prompt, q.difficulty, q.created_by, q.created_at
		 FROM questions q
		 JOIN sections s ON s.id = q.section_id
		 WHERE s.world_id = $1
		   AND NOT (q.id = ANY($2))
		 ORDER BY q.created_at, q.id`, worldID, exclude)
	if err != nil {
		return nil, fmt.Errorf("query world questions: %w", err)
	}
	defer rows.Close()
	return collectQuestions(rows)
}

func collectQuestions(rows pgx.Rows) ([]game.Question, error) {
	var out []game.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *ContentRepository) QuestionByID(ctx context.Context, id uuid.UUID) (game.Question, error) {
	q, err := scanQuestion(r.db.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Question{}, fmt.Errorf("question %s: %w", id, game.ErrNotFound)
	}
	if err != nil {
		return game.Question{}, fmt.Errorf("query question: %w", err)
	}
	return q, nil
}

func (r *ContentRepository) AnswerByID(ctx context.Context, id uuid.UUID) (game.Answer, error) {
	var a game.Answer
	err := r.db.QueryRow(ctx,
		`SELECT id, question_id, answer_text, is_correct FROM answers WHERE id = $1`, id,
	).Scan(&a.ID, &a.QuestionID, &a.Text, &a.IsCorrect)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Answer{}, fmt.Errorf("answer %s: %w", id, game.ErrNotFound)
	}
	if err != nil {
		return game.Answer{}, fmt.Errorf("query answer: %w", err)
	}
	return a, nil
}

func (r *ContentRepository) AnswersForQuestion(ctx context.Context, questionID uuid.UUID) ([]game.Answer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, question_id, answer_text, is_correct
		 FROM answers
		 WHERE question_id = $1
		 ORDER BY id`, questionID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var out []game.Answer
	for rows.Next() {
		var a game.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Text, &a.IsCorrect); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
