package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/codequest-edu/game-server/internal/leaderboard"
)

// LeaderboardRepository aggregates points totals from question records. It
// implements leaderboard.Store.
type LeaderboardRepository struct {
	db querier
}

func NewLeaderboardRepository(db querier) *LeaderboardRepository {
	return &LeaderboardRepository{db: db}
}

// TopTotals ranks campaign play only; custom-world points stay out of the
// global board.
func (r *LeaderboardRepository) TopTotals(ctx context.Context, limit int) ([]leaderboard.Entry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT rec.user_id, SUM(rec.points_change) AS total
		 FROM question_records rec
		 JOIN levels l ON l.id = rec.level_id
		 JOIN sections s ON s.id = l.section_id
		 JOIN worlds w ON w.id = s.world_id
		 WHERE NOT w.is_custom
		 GROUP BY rec.user_id
		 ORDER BY total DESC, rec.user_id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top totals: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *LeaderboardRepository) TopTotalsByWorld(ctx context.Context, worldID uuid.UUID, limit int) ([]leaderboard.Entry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT rec.user_id, SUM(rec.points_change) AS total
		 FROM question_records rec
		 JOIN levels l ON l.id = rec.level_id
		 JOIN sections s ON s.id = l.section_id
		 WHERE s.world_id = $1
		 GROUP BY rec.user_id
		 ORDER BY total DESC, rec.user_id
		 LIMIT $2`, worldID, limit)
	if err != nil {
		return nil, fmt.Errorf("query world top totals: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *LeaderboardRepository) UserTotal(ctx context.Context, userID uuid.UUID) (int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(rec.points_change), 0)
		 FROM question_records rec
		 JOIN levels l ON l.id = rec.level_id
		 JOIN sections s ON s.id = l.section_id
		 JOIN worlds w ON w.id = s.world_id
		 WHERE rec.user_id = $1 AND NOT w.is_custom`, userID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("query user total: %w", err)
	}
	return total, nil
}

func collectEntries(rows pgx.Rows) ([]leaderboard.Entry, error) {
	var out []leaderboard.Entry
	for rows.Next() {
		var e leaderboard.Entry
		if err := rows.Scan(&e.UserID, &e.Points); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
