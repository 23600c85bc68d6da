package repo

import (
	"context"

	"wishline/internal/domain"
)

// MostCompleted ranks users by count of completed assignments, descending.
// Users with no completed assignments are excluded. Ties break on user ID
// ascending.
func (r Repo) MostCompleted(ctx context.Context, limit int) ([]domain.RankingEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT u.id, u.nickname, COUNT(a.id) AS total
FROM users u
JOIN assignments a ON a.assigned_to=u.id AND a.is_completed=1
GROUP BY u.id, u.nickname
ORDER BY total DESC, u.id ASC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RankingEntry
	for rows.Next() {
		var e domain.RankingEntry
		if err := rows.Scan(&e.UserID, &e.Nickname, &e.TotalCompleted); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// BestRated ranks users by mean execution rating over their completed
// assignments, descending. Same exclusion and tie-break as MostCompleted.
func (r Repo) BestRated(ctx context.Context, limit int) ([]domain.RankingEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT u.id, u.nickname, COUNT(a.id) AS total, AVG(x.rating) AS avg_rating
FROM users u
JOIN assignments a ON a.assigned_to=u.id AND a.is_completed=1
JOIN executions x ON x.assignment_id=a.id
GROUP BY u.id, u.nickname
ORDER BY avg_rating DESC, u.id ASC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RankingEntry
	for rows.Next() {
		var e domain.RankingEntry
		var avg float64
		if err := rows.Scan(&e.UserID, &e.Nickname, &e.TotalCompleted, &avg); err != nil {
			return nil, err
		}
		e.AverageRating = &avg
		res = append(res, e)
	}
	return res, rows.Err()
}

// FastestCompletion ranks users by mean days between allocation and the
// recorded completion date, ascending (lower is faster).
func (r Repo) FastestCompletion(ctx context.Context, limit int) ([]domain.RankingEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT u.id, u.nickname, COUNT(a.id) AS total,
       AVG(julianday(x.completed_date) - julianday(a.assigned_at)) AS avg_days
FROM users u
JOIN assignments a ON a.assigned_to=u.id AND a.is_completed=1
JOIN executions x ON x.assignment_id=a.id
GROUP BY u.id, u.nickname
ORDER BY avg_days ASC, u.id ASC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RankingEntry
	for rows.Next() {
		var e domain.RankingEntry
		var avg float64
		if err := rows.Scan(&e.UserID, &e.Nickname, &e.TotalCompleted, &avg); err != nil {
			return nil, err
		}
		e.AvgCompletionDays = &avg
		res = append(res, e)
	}
	return res, rows.Err()
}
