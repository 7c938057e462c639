package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codequest-edu/game-server/internal/game"
)

// ProgressRepository persists per-user progression state: world cursors, level
// progress and question sessions. It implements game.ProgressStore.
//
// The zero pool marks a repository already bound to a transaction; WithTx on
// such a repository reuses the enclosing transaction.
type ProgressRepository struct {
	db   querier
	pool *pgxpool.Pool
}

func NewProgressRepository(pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{db: pool, pool: pool}
}

func (r *ProgressRepository) WithTx(ctx context.Context, fn func(game.ProgressStore) error) error {
	if r.pool == nil {
		return fn(r)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&ProgressRepository{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *ProgressRepository) Cursor(ctx context.Context, userID, worldID uuid.UUID) (*game.WorldCursor, error) {
	c := game.WorldCursor{UserID: userID, WorldID: worldID}
	err := r.db.QueryRow(ctx,
		`SELECT level_id, completed, updated_at
		 FROM world_cursors
		 WHERE user_id = $1 AND world_id = $2`, userID, worldID,
	).Scan(&c.LevelID, &c.Completed, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cursor: %w", err)
	}
	return &c, nil
}

func (r *ProgressRepository) SaveCursor(ctx context.Context, cursor game.WorldCursor) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO world_cursors (user_id, world_id, level_id, completed, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (user_id, world_id) DO UPDATE
		 SET level_id = EXCLUDED.level_id,
		     completed = EXCLUDED.completed,
		     updated_at = now()`,
		cursor.UserID, cursor.WorldID, cursor.LevelID, cursor.Completed)
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

func (r *ProgressRepository) CreateLevelProgress(ctx context.Context, userID, levelID uuid.UUID) (game.LevelProgress, error) {
	p := game.LevelProgress{ID: uuid.New(), UserID: userID, LevelID: levelID}
	err := r.db.QueryRow(ctx,
		`INSERT INTO level_progress (id, user_id, level_id)
		 VALUES ($1, $2, $3)
		 RETURNING started_at`, p.ID, userID, levelID,
	).Scan(&p.StartedAt)
	if isUniqueViolation(err) {
		// The partial unique index allows one uncompleted row per (user, level).
		return game.LevelProgress{}, fmt.Errorf("active progress exists for level %s: %w", levelID, game.ErrDataIntegrity)
	}
	if err != nil {
		return game.LevelProgress{}, fmt.Errorf("insert level progress: %w", err)
	}
	return p, nil
}

func (r *ProgressRepository) ActiveLevelProgress(ctx context.Context, userID, levelID uuid.UUID) (*game.LevelProgress, error) {
	var p game.LevelProgress
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, level_id, completed, started_at, completed_at
		 FROM level_progress
		 WHERE user_id = $1 AND level_id = $2 AND NOT completed`, userID, levelID,
	).Scan(&p.ID, &p.UserID, &p.LevelID, &p.Completed, &p.StartedAt, &p.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active level progress: %w", err)
	}
	return &p, nil
}

func (r *ProgressRepository) CompleteLevelProgress(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE level_progress
		 SET completed = true, completed_at = $2
		 WHERE id = $1 AND NOT completed`, id, at)
	if err != nil {
		return fmt.Errorf("complete level progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("progress %s: %w", id, game.ErrNotFound)
	}
	return nil
}

func (r *ProgressRepository) CreateRecord(ctx context.Context, record game.QuestionRecord) (game.QuestionRecord, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO question_records (id, user_id, level_id, question_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		record.ID, record.UserID, record.LevelID, record.QuestionID,
	).Scan(&record.CreatedAt)
	if err != nil {
		return game.QuestionRecord{}, fmt.Errorf("insert question record: %w", err)
	}
	return record, nil
}

func (r *ProgressRepository) CreateRecords(ctx context.Context, records []game.QuestionRecord) ([]game.QuestionRecord, error) {
	batch := &pgx.Batch{}
	out := make([]game.QuestionRecord, len(records))
	for i, rec := range records {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		out[i] = rec
		batch.Queue(
			`INSERT INTO question_records (id, user_id, level_id, question_id)
			 VALUES ($1, $2, $3, $4)
			 RETURNING created_at`,
			rec.ID, rec.UserID, rec.LevelID, rec.QuestionID)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for i := range out {
		if err := results.QueryRow().Scan(&out[i].CreatedAt); err != nil {
			return nil, fmt.Errorf("insert question record %d of %d: %w", i+1, len(out), err)
		}
	}
	return out, nil
}

const recordColumns = `id, user_id, level_id, question_id, correct, points_change, completed, created_at, completed_at`

func scanRecord(row pgx.Row) (game.QuestionRecord, error) {
	var rec game.QuestionRecord
	err := row.Scan(&rec.ID, &rec.UserID, &rec.LevelID, &rec.QuestionID,
		&rec.Correct, &rec.PointsChange, &rec.Completed, &rec.CreatedAt, &rec.CompletedAt)
	return rec, err
}

func (r *ProgressRepository) RecordByID(ctx context.Context, id uuid.UUID) (game.QuestionRecord, error) {
	rec, err := scanRecord(r.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM question_records WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return game.QuestionRecord{}, fmt.Errorf("session %s: %w", id, game.ErrNotFound)
	}
	if err != nil {
		return game.QuestionRecord{}, fmt.Errorf("query question record: %w", err)
	}
	return rec, nil
}

func (r *ProgressRepository) RecordsByLevel(ctx context.Context, userID, levelID uuid.UUID) ([]game.QuestionRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+recordColumns+` FROM question_records
		 WHERE user_id = $1 AND level_id = $2
		 ORDER BY created_at, id`, userID, levelID)
	if err != nil {
		return nil, fmt.Errorf("query level records: %w", err)
	}
	defer rows.Close()

	var out []game.QuestionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *ProgressRepository) CompleteRecord(ctx context.Context, id uuid.UUID, correct bool, points int, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE question_records
		 SET completed = true, correct = $2, points_change = $3, completed_at = $4
		 WHERE id = $1 AND NOT completed`, id, correct, points, at)
	if err != nil {
		return fmt.Errorf("complete question record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, game.ErrNotFound)
	}
	return nil
}

func (r *ProgressRepository) SumPointsByWorld(ctx context.Context, userID, worldID uuid.UUID) (int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(r.points_change), 0)
		 FROM question_records r
		 JOIN levels l ON l.id = r.level_id
		 JOIN sections s ON s.id = l.section_id
		 WHERE r.user_id = $1 AND s.world_id = $2`, userID, worldID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum world points: %w", err)
	}
	return total, nil
}

func (r *ProgressRepository) CorrectQuestionIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT question_id
		 FROM question_records
		 WHERE user_id = $1 AND correct`, userID)
	if err != nil {
		return nil, fmt.Errorf("query correct questions: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *ProgressRepository) LevelStats(ctx context.Context, userID, levelID uuid.UUID) (game.LevelStats, error) {
	var stats game.LevelStats
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(points_change), 0),
		        COUNT(*) FILTER (WHERE correct)
		 FROM question_records
		 WHERE user_id = $1 AND level_id = $2`, userID, levelID,
	).Scan(&stats.Points, &stats.CorrectCount)
	if err != nil {
		return game.LevelStats{}, fmt.Errorf("query level stats: %w", err)
	}
	return stats, nil
}

func (r *ProgressRepository) CompletedRecordCount(ctx context.Context, userID, levelID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM question_records
		 WHERE user_id = $1 AND level_id = $2 AND completed AND created_at >= $3`, userID, levelID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completed sessions: %w", err)
	}
	return count, nil
}
