package repo

import (
	"context"
	"database/sql"
	"strings"

	"wishline/internal/domain"
)

const wishCols = `id,user_id,category_id,title,description,is_active,created_at,updated_at`

func scanWish(scan func(...any) error) (domain.Wish, error) {
	var w domain.Wish
	var desc sql.NullString
	err := scan(&w.ID, &w.UserID, &w.CategoryID, &w.Title, &desc, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return w, err
	}
	if desc.Valid {
		w.Description = desc.String
	}
	return w, nil
}

func (r Repo) InsertWish(ctx context.Context, tx *sql.Tx, w domain.Wish) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO wishes(id,user_id,category_id,title,description,is_active,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		w.ID, w.UserID, w.CategoryID, w.Title, nullable(w.Description), w.IsActive, w.CreatedAt, w.UpdatedAt)
	return err
}

func (r Repo) GetWish(ctx context.Context, id string) (domain.Wish, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+wishCols+` FROM wishes WHERE id=?`, id)
	w, err := scanWish(row.Scan)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	return w, err
}

type WishFilters struct {
	UserID     string
	CategoryID string
	ActiveOnly bool
}

func (r Repo) ListWishes(ctx context.Context, f WishFilters) ([]domain.Wish, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.UserID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, f.UserID)
	}
	if f.CategoryID != "" {
		clauses = append(clauses, "category_id=?")
		args = append(args, f.CategoryID)
	}
	if f.ActiveOnly {
		clauses = append(clauses, "is_active=1")
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	rows, err := r.DB.QueryContext(ctx, `SELECT `+wishCols+` FROM wishes `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Wish
	for rows.Next() {
		w, err := scanWish(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

// ActiveWishesByCategory returns one owner's active wishes grouped by
// category ID. Only wishes in active categories are included.
func (r Repo) ActiveWishesByCategory(ctx context.Context, userID string) (map[string][]domain.Wish, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT w.id,w.user_id,w.category_id,w.title,w.description,w.is_active,w.created_at,w.updated_at
FROM wishes w JOIN categories c ON c.id=w.category_id
WHERE w.user_id=? AND w.is_active=1 AND c.is_active=1
ORDER BY w.created_at ASC, w.id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string][]domain.Wish{}
	for rows.Next() {
		w, err := scanWish(rows.Scan)
		if err != nil {
			return nil, err
		}
		res[w.CategoryID] = append(res[w.CategoryID], w)
	}
	return res, rows.Err()
}

func (r Repo) UpdateWish(ctx context.Context, tx *sql.Tx, w domain.Wish) error {
	res, err := tx.ExecContext(ctx, `UPDATE wishes SET category_id=?, title=?, description=?, is_active=?, updated_at=? WHERE id=?`,
		w.CategoryID, w.Title, nullable(w.Description), w.IsActive, w.UpdatedAt, w.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) WishHasAssignments(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM assignments WHERE wish_id=?)`, id).Scan(&exists)
	return exists, err
}

func (r Repo) DeleteWish(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM wishes WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
