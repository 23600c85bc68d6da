package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"wishline/internal/config"
	"wishline/internal/domain"
	"wishline/internal/events"
	"wishline/internal/repo"
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	Now     func() time.Time
	Sampler Sampler
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		Events:  events.Writer{DB: db},
		Config:  cfg,
		Now:     time.Now,
		Sampler: NewSampler(time.Now().UnixNano()),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) sampler() Sampler {
	if e.Sampler != nil {
		return e.Sampler
	}
	return NewSampler(time.Now().UnixNano())
}

// UserCreateOptions are parameters for registering a user.
type UserCreateOptions struct {
	Nickname           string
	BirthDate          string
	IsPublicModeActive bool
	ActorID            string
}

func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	if opts.Nickname == "" {
		return domain.User{}, validationf("nickname is required")
	}
	if _, err := time.Parse(domain.DateLayout, opts.BirthDate); err != nil {
		return domain.User{}, validationf("birth_date must be a %s date", domain.DateLayout)
	}
	u := domain.User{
		ID:                 uuid.New().String(),
		Nickname:           opts.Nickname,
		BirthDate:          opts.BirthDate,
		IsActive:           true,
		IsPublicModeActive: opts.IsPublicModeActive,
		CreatedAt:          e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, err
	}
	if err := e.Events.Append(ctx, tx, "user.created", "user", u.ID, opts.ActorID, events.EventPayload{"nickname": u.Nickname}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (e Engine) SetUserFlags(ctx context.Context, userID string, isActive, isPublicModeActive *bool, actorID string) (domain.User, error) {
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		return domain.User{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateUserFlags(ctx, tx, userID, isActive, isPublicModeActive); err != nil {
		return domain.User{}, err
	}
	if err := e.Events.Append(ctx, tx, "user.updated", "user", userID, actorID, events.EventPayload{}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return e.Repo.GetUser(ctx, userID)
}

// CategoryCreateOptions are parameters for creating a category.
type CategoryCreateOptions struct {
	Name               string
	Description        string
	IsAdult            bool
	MaxWishesPerPeriod int
	MinDaysToComplete  int
	MaxDaysToComplete  int
	ActorID            string
}

func (e Engine) CreateCategory(ctx context.Context, opts CategoryCreateOptions) (domain.Category, error) {
	if opts.Name == "" {
		return domain.Category{}, validationf("name is required")
	}
	if opts.MaxWishesPerPeriod < 1 {
		return domain.Category{}, validationf("max_wishes_per_period must be >= 1")
	}
	if opts.MinDaysToComplete < 1 || opts.MaxDaysToComplete < 1 {
		return domain.Category{}, validationf("completion day bounds must be >= 1")
	}
	if opts.MinDaysToComplete > opts.MaxDaysToComplete {
		return domain.Category{}, validationf("min_days_to_complete exceeds max_days_to_complete")
	}
	c := domain.Category{
		ID:                 uuid.New().String(),
		Name:               opts.Name,
		Description:        opts.Description,
		IsAdult:            opts.IsAdult,
		MaxWishesPerPeriod: opts.MaxWishesPerPeriod,
		MinDaysToComplete:  opts.MinDaysToComplete,
		MaxDaysToComplete:  opts.MaxDaysToComplete,
		IsActive:           true,
		CreatedAt:          e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Category{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertCategory(ctx, tx, c); err != nil {
		return domain.Category{}, err
	}
	if err := e.Events.Append(ctx, tx, "category.created", "category", c.ID, opts.ActorID, events.EventPayload{"name": c.Name, "adult": c.IsAdult}); err != nil {
		return domain.Category{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

// SeedCategories loads the config catalog, skipping names that already
// exist. Returns the number of categories created.
func (e Engine) SeedCategories(ctx context.Context, actorID string) (int, error) {
	if e.Config == nil {
		return 0, validationf("config not loaded")
	}
	created := 0
	for _, sc := range e.Config.Categories {
		_, err := e.Repo.GetCategoryByName(ctx, sc.Name)
		if err == nil {
			continue
		}
		if err != repo.ErrNotFound {
			return created, err
		}
		if _, err := e.CreateCategory(ctx, CategoryCreateOptions{
			Name:               sc.Name,
			Description:        sc.Description,
			IsAdult:            sc.IsAdult,
			MaxWishesPerPeriod: sc.MaxWishesPerPeriod,
			MinDaysToComplete:  sc.MinDaysToComplete,
			MaxDaysToComplete:  sc.MaxDaysToComplete,
			ActorID:            actorID,
		}); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// WishCreateOptions are parameters for creating a wish.
type WishCreateOptions struct {
	OwnerID     string
	CategoryID  string
	Title       string
	Description string
	ActorID     string
}

func (e Engine) CreateWish(ctx context.Context, opts WishCreateOptions) (domain.Wish, error) {
	if opts.Title == "" {
		return domain.Wish{}, validationf("title is required")
	}
	owner, err := e.Repo.GetUser(ctx, opts.OwnerID)
	if err != nil {
		return domain.Wish{}, err
	}
	cat, err := e.Repo.GetCategory(ctx, opts.CategoryID)
	if err != nil {
		return domain.Wish{}, err
	}
	if cat.IsAdult && !owner.IsAdult(e.now()) {
		return domain.Wish{}, forbiddenf("must be 18+ to create wishes in adult categories")
	}
	now := e.now().UTC().Format(time.RFC3339)
	w := domain.Wish{
		ID:          uuid.New().String(),
		UserID:      owner.ID,
		CategoryID:  cat.ID,
		Title:       opts.Title,
		Description: opts.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Wish{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertWish(ctx, tx, w); err != nil {
		return domain.Wish{}, err
	}
	if err := e.Events.Append(ctx, tx, "wish.created", "wish", w.ID, opts.ActorID, events.EventPayload{"title": w.Title, "category": cat.Name}); err != nil {
		return domain.Wish{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Wish{}, err
	}
	return w, nil
}

// DeleteWish removes a wish that never entered a draw. Once assignments
// exist the wish can only be deactivated, so completion history survives.
func (e Engine) DeleteWish(ctx context.Context, wishID, actorID string) error {
	w, err := e.Repo.GetWish(ctx, wishID)
	if err != nil {
		return err
	}
	if w.UserID != actorID {
		return forbiddenf("only the owner may delete a wish")
	}
	has, err := e.Repo.WishHasAssignments(ctx, wishID)
	if err != nil {
		return err
	}
	if has {
		return conflictf("wish has assignments; deactivate it instead")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteWish(ctx, tx, wishID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "wish.deleted", "wish", wishID, actorID, events.EventPayload{"title": w.Title}); err != nil {
		return err
	}
	return tx.Commit()
}

// SetWishActive toggles a wish. Deactivation never retracts assignments
// already created from it.
func (e Engine) SetWishActive(ctx context.Context, wishID string, active bool, actorID string) (domain.Wish, error) {
	w, err := e.Repo.GetWish(ctx, wishID)
	if err != nil {
		return domain.Wish{}, err
	}
	if w.UserID != actorID {
		return domain.Wish{}, forbiddenf("only the owner may update a wish")
	}
	w.IsActive = active
	w.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Wish{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateWish(ctx, tx, w); err != nil {
		return domain.Wish{}, err
	}
	if err := e.Events.Append(ctx, tx, "wish.updated", "wish", w.ID, actorID, events.EventPayload{"active": active}); err != nil {
		return domain.Wish{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Wish{}, err
	}
	return w, nil
}
