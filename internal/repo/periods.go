package repo

import (
	"context"
	"database/sql"
	"strings"

	"wishline/internal/domain"
)

const periodCols = `id,match_id,start_date,end_date,is_active,created_at`

func scanPeriod(scan func(...any) error) (domain.Period, error) {
	var p domain.Period
	var matchID sql.NullString
	err := scan(&p.ID, &matchID, &p.StartDate, &p.EndDate, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return p, err
	}
	if matchID.Valid {
		p.MatchID = &matchID.String
	}
	return p, nil
}

func (r Repo) InsertPeriod(ctx context.Context, tx *sql.Tx, p domain.Period) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO periods(id,match_id,start_date,end_date,is_active,created_at) VALUES (?,?,?,?,?,?)`,
		p.ID, nullableStringPtr(p.MatchID), p.StartDate, p.EndDate, p.IsActive, p.CreatedAt)
	return err
}

func (r Repo) GetPeriod(ctx context.Context, id string) (domain.Period, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+periodCols+` FROM periods WHERE id=?`, id)
	p, err := scanPeriod(row.Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

type PeriodFilters struct {
	MatchID    string
	GlobalOnly bool
	ActiveOnly bool
	Limit      int
}

func (r Repo) ListPeriods(ctx context.Context, f PeriodFilters) ([]domain.Period, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.MatchID != "" {
		clauses = append(clauses, "match_id=?")
		args = append(args, f.MatchID)
	}
	if f.GlobalOnly {
		clauses = append(clauses, "match_id IS NULL")
	}
	if f.ActiveOnly {
		clauses = append(clauses, "is_active=1")
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT ` + periodCols + ` FROM periods ` + where + ` ORDER BY start_date DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Period
	for rows.Next() {
		p, err := scanPeriod(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
