package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"wishline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users(id,nickname,birth_date,is_active,is_public_mode_active,created_at) VALUES (?,?,?,?,?,?)`,
		u.ID, u.Nickname, u.BirthDate, u.IsActive, u.IsPublicModeActive, u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := r.DB.QueryRowContext(ctx, `SELECT id,nickname,birth_date,is_active,is_public_mode_active,created_at FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Nickname, &u.BirthDate, &u.IsActive, &u.IsPublicModeActive, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) GetUserByNickname(ctx context.Context, nickname string) (domain.User, error) {
	var u domain.User
	err := r.DB.QueryRowContext(ctx, `SELECT id,nickname,birth_date,is_active,is_public_mode_active,created_at FROM users WHERE nickname=?`, nickname).
		Scan(&u.ID, &u.Nickname, &u.BirthDate, &u.IsActive, &u.IsPublicModeActive, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

type UserFilters struct {
	ActiveOnly bool
	PublicMode bool
}

func (r Repo) ListUsers(ctx context.Context, f UserFilters) ([]domain.User, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.ActiveOnly {
		clauses = append(clauses, "is_active=1")
	}
	if f.PublicMode {
		clauses = append(clauses, "is_public_mode_active=1")
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	rows, err := r.DB.QueryContext(ctx, `SELECT id,nickname,birth_date,is_active,is_public_mode_active,created_at FROM users `+where+` ORDER BY nickname ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Nickname, &u.BirthDate, &u.IsActive, &u.IsPublicModeActive, &u.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) UpdateUserFlags(ctx context.Context, tx *sql.Tx, id string, isActive, isPublicModeActive *bool) error {
	var fields []string
	var args []any
	if isActive != nil {
		fields = append(fields, "is_active=?")
		args = append(args, *isActive)
	}
	if isPublicModeActive != nil {
		fields = append(fields, "is_public_mode_active=?")
		args = append(args, *isPublicModeActive)
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, `UPDATE users SET `+strings.Join(fields, ",")+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertCategory(ctx context.Context, tx *sql.Tx, c domain.Category) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO categories(id,name,description,is_adult,max_wishes_per_period,min_days_to_complete,max_days_to_complete,is_active,created_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Name, nullable(c.Description), c.IsAdult, c.MaxWishesPerPeriod, c.MinDaysToComplete, c.MaxDaysToComplete, c.IsActive, c.CreatedAt)
	return err
}

func scanCategory(scan func(...any) error) (domain.Category, error) {
	var c domain.Category
	var desc sql.NullString
	err := scan(&c.ID, &c.Name, &desc, &c.IsAdult, &c.MaxWishesPerPeriod, &c.MinDaysToComplete, &c.MaxDaysToComplete, &c.IsActive, &c.CreatedAt)
	if err != nil {
		return c, err
	}
	if desc.Valid {
		c.Description = desc.String
	}
	return c, nil
}

const categoryCols = `id,name,description,is_adult,max_wishes_per_period,min_days_to_complete,max_days_to_complete,is_active,created_at`

func (r Repo) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+categoryCols+` FROM categories WHERE id=?`, id)
	c, err := scanCategory(row.Scan)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) GetCategoryByName(ctx context.Context, name string) (domain.Category, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+categoryCols+` FROM categories WHERE name=?`, name)
	c, err := scanCategory(row.Scan)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

type CategoryFilters struct {
	ActiveOnly   bool
	ExcludeAdult bool
}

func (r Repo) ListCategories(ctx context.Context, f CategoryFilters) ([]domain.Category, error) {
	clauses := []string{"1=1"}
	if f.ActiveOnly {
		clauses = append(clauses, "is_active=1")
	}
	if f.ExcludeAdult {
		clauses = append(clauses, "is_adult=0")
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	rows, err := r.DB.QueryContext(ctx, `SELECT `+categoryCols+` FROM categories `+where+` ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Category
	for rows.Next() {
		c, err := scanCategory(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) SetCategoryActive(ctx context.Context, tx *sql.Tx, id string, active bool) error {
	res, err := tx.ExecContext(ctx, `UPDATE categories SET is_active=? WHERE id=?`, active, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
