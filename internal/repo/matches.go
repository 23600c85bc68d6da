package repo

import (
	"context"
	"database/sql"
	"strings"

	"wishline/internal/domain"
)

const matchCols = `id,user1_id,user2_id,mode,status,private_period_days,created_at,updated_at`

func scanMatch(scan func(...any) error) (domain.Match, error) {
	var m domain.Match
	var days sql.NullInt64
	err := scan(&m.ID, &m.User1ID, &m.User2ID, &m.Mode, &m.Status, &days, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return m, err
	}
	if days.Valid {
		d := int(days.Int64)
		m.PrivatePeriodDays = &d
	}
	return m, nil
}

func (r Repo) InsertMatch(ctx context.Context, tx *sql.Tx, m domain.Match) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO matches(id,user1_id,user2_id,mode,status,private_period_days,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		m.ID, m.User1ID, m.User2ID, m.Mode, m.Status, nullableIntPtr(m.PrivatePeriodDays), m.CreatedAt, m.UpdatedAt)
	return err
}

func (r Repo) GetMatch(ctx context.Context, id string) (domain.Match, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+matchCols+` FROM matches WHERE id=?`, id)
	m, err := scanMatch(row.Scan)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.PrivateCategoryIDs, err = r.ListMatchCategories(ctx, m.ID)
	return m, err
}

type MatchFilters struct {
	Mode        string
	Status      string
	Participant string
}

func (r Repo) ListMatches(ctx context.Context, f MatchFilters) ([]domain.Match, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Mode != "" {
		clauses = append(clauses, "mode=?")
		args = append(args, f.Mode)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Participant != "" {
		clauses = append(clauses, "(user1_id=? OR user2_id=?)")
		args = append(args, f.Participant, f.Participant)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	rows, err := r.DB.QueryContext(ctx, `SELECT `+matchCols+` FROM matches `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		res[i].PrivateCategoryIDs, err = r.ListMatchCategories(ctx, res[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r Repo) UpdateMatchStatus(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE matches SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateMatchPeriodDays(ctx context.Context, tx *sql.Tx, id string, days *int, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE matches SET private_period_days=?, updated_at=? WHERE id=?`, nullableIntPtr(days), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListMatchCategories(ctx context.Context, matchID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT category_id FROM match_categories WHERE match_id=? ORDER BY category_id ASC`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReplaceMatchCategories swaps the agreed private category set.
func (r Repo) ReplaceMatchCategories(ctx context.Context, tx *sql.Tx, matchID string, categoryIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM match_categories WHERE match_id=?`, matchID); err != nil {
		return err
	}
	for _, cid := range categoryIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO match_categories(match_id, category_id) VALUES (?,?)`, matchID, cid); err != nil {
			return err
		}
	}
	return nil
}
