package store

import (
	"context"
	"fmt"
	"time"

	"github.com/skillforge/skillforge/internal/ranking"
)

// UserAggregates implements ranking.SubmissionSource. It returns one
// row per user with at least one submission inside the scope and time
// filter; ordering and rank assignment happen in the engine.
func (s *PostgresStore) UserAggregates(ctx context.Context, scope ranking.Scope, since time.Time) ([]ranking.UserAggregate, error) {
	query := `
		SELECT
			u.id,
			u.first_name,
			u.last_name,
			u.avatar_url,
			COALESCE(SUM(sub.score) FILTER (WHERE sub.status = 'approved'), 0) AS total_score,
			COUNT(sub.id) AS total_submissions,
			COUNT(sub.id) FILTER (WHERE sub.status = 'approved') AS approved_submissions,
			COALESCE(AVG(sub.score) FILTER (WHERE sub.status = 'approved'), 0)::float8 AS average_score,
			(SELECT COUNT(*) FROM user_badges b WHERE b.user_id = u.id) AS badge_count,
			MAX(sub.created_at) AS last_submission_at
		FROM users u
		JOIN submissions sub ON sub.user_id = u.id
		JOIN projects p ON p.id = sub.project_id
		WHERE 1=1`

	args := []any{}
	n := 0

	switch scope.Kind {
	case ranking.ScopeProject:
		n++
		query += fmt.Sprintf(" AND sub.project_id = $%d", n)
		args = append(args, scope.ID)
	case ranking.ScopeCategory:
		n++
		query += fmt.Sprintf(" AND p.category = $%d", n)
		args = append(args, scope.ID)
	}

	if !since.IsZero() {
		n++
		query += fmt.Sprintf(" AND sub.created_at >= $%d", n)
		args = append(args, since)
	}

	query += `
		GROUP BY u.id, u.first_name, u.last_name, u.avatar_url`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query user aggregates: %w", err)
	}
	defer rows.Close()

	var aggregates []ranking.UserAggregate
	for rows.Next() {
		var agg ranking.UserAggregate
		if err := rows.Scan(
			&agg.UserID,
			&agg.FirstName,
			&agg.LastName,
			&agg.AvatarURL,
			&agg.TotalScore,
			&agg.TotalSubmissions,
			&agg.ApprovedSubmissions,
			&agg.AverageScore,
			&agg.BadgeCount,
			&agg.LastSubmissionAt,
		); err != nil {
			return nil, fmt.Errorf("scan user aggregate: %w", err)
		}
		aggregates = append(aggregates, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user aggregates: %w", err)
	}
	return aggregates, nil
}

// ReviewSubmission moves a submission out of pending and returns the
// event the ranking engine needs for invalidation and broadcast.
func (s *PostgresStore) ReviewSubmission(ctx context.Context, submissionID string, status ranking.ReviewStatus, score int) (*ranking.ReviewEvent, error) {
	var event ranking.ReviewEvent
	err := s.pool.QueryRow(ctx, `
		UPDATE submissions sub
		SET status = $2, score = $3, reviewed_at = NOW()
		FROM projects p
		WHERE sub.id = $1 AND sub.status = 'pending' AND p.id = sub.project_id
		RETURNING sub.id, sub.user_id, sub.project_id, p.category
	`, submissionID, string(status), score).Scan(
		&event.SubmissionID,
		&event.UserID,
		&event.ProjectID,
		&event.Category,
	)
	if err != nil {
		return nil, fmt.Errorf("review submission %s: %w", submissionID, err)
	}
	event.Status = status
	return &event, nil
}
