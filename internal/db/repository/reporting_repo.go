package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/codequest-edu/game-server/internal/reporting"
)

// ReportingRepository runs the world-statistics aggregates. It implements
// reporting.Store together with an embedded ContentRepository for the world
// lookup.
type ReportingRepository struct {
	*ContentRepository
	db querier
}

func NewReportingRepository(db querier) *ReportingRepository {
	return &ReportingRepository{ContentRepository: NewContentRepository(db), db: db}
}

func (r *ReportingRepository) SectionTotals(ctx context.Context, worldID uuid.UUID) ([]reporting.SectionTotal, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.id, s.name, s.section_index,
		        COALESCE(SUM(rec.points_change), 0) AS total,
		        COUNT(DISTINCT rec.user_id) AS players
		 FROM sections s
		 LEFT JOIN levels l ON l.section_id = s.id
		 LEFT JOIN question_records rec ON rec.level_id = l.id
		 WHERE s.world_id = $1
		 GROUP BY s.id, s.name, s.section_index
		 ORDER BY s.section_index`, worldID)
	if err != nil {
		return nil, fmt.Errorf("query section totals: %w", err)
	}
	defer rows.Close()

	var out []reporting.SectionTotal
	for rows.Next() {
		var t reporting.SectionTotal
		if err := rows.Scan(&t.SectionID, &t.Name, &t.Index, &t.TotalPoints, &t.PlayerCount); err != nil {
			return nil, fmt.Errorf("scan section total: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *ReportingRepository) QuestionBreakdown(ctx context.Context, worldID uuid.UUID) ([]reporting.QuestionStats, error) {
	rows, err := r.db.Query(ctx,
		`SELECT q.id, q.section_id, q.prompt,
		        COUNT(*) FILTER (WHERE rec.correct) AS correct_count,
		        COUNT(*) FILTER (WHERE rec.completed AND NOT rec.correct) AS wrong_count
		 FROM questions q
		 JOIN sections s ON s.id = q.section_id
		 LEFT JOIN question_records rec ON rec.question_id = q.id
		 WHERE s.world_id = $1
		 GROUP BY q.id, q.section_id, q.prompt, q.created_at
		 ORDER BY q.created_at, q.id`, worldID)
	if err != nil {
		return nil, fmt.Errorf("query question breakdown: %w", err)
	}
	defer rows.Close()

	var out []reporting.QuestionStats
	for rows.Next() {
		var q reporting.QuestionStats
		if err := rows.Scan(&q.QuestionID, &q.SectionID, &q.Prompt, &q.CorrectCount, &q.WrongCount); err != nil {
			return nil, fmt.Errorf("scan question stats: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
