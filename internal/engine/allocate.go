package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wishline/internal/domain"
	"wishline/internal/events"
	"wishline/internal/repo"
)

// CategoryWishes is one eligible category with the owner's candidate pool.
type CategoryWishes struct {
	Category domain.Category
	Wishes   []domain.Wish
}

// FilterEligible returns the categories an executor may receive wishes
// from, each paired with the owner's active wishes in it. Inactive
// categories are dropped, and a minor executor never sees adult content —
// not even when the category is part of a private agreement.
func FilterEligible(categories []domain.Category, wishesByCategory map[string][]domain.Wish, executorIsAdult bool) []CategoryWishes {
	var out []CategoryWishes
	for _, c := range categories {
		if !c.IsActive {
			continue
		}
		if c.IsAdult && !executorIsAdult {
			continue
		}
		pool := wishesByCategory[c.ID]
		if len(pool) == 0 {
			continue
		}
		out = append(out, CategoryWishes{Category: c, Wishes: pool})
	}
	return out
}

// RunOptions configure one allocation cycle.
type RunOptions struct {
	// Days is the default period length; falls back to the configured
	// cycle length when zero.
	Days int
	// StartDate overrides the cycle start (defaults to today).
	StartDate string
	// DryRun selects wishes without persisting periods or assignments.
	DryRun  bool
	ActorID string
}

type UnitResult struct {
	Unit        string `json:"unit"`
	Assignments int    `json:"assignments"`
}

type UnitFailure struct {
	Unit  string `json:"unit"`
	Error string `json:"error"`
}

// RunSummary reports one cycle run. A failed match or user shows up in
// Failures and never aborts the rest of the cycle.
type RunSummary struct {
	StartDate               string        `json:"start_date"`
	DryRun                  bool          `json:"dry_run"`
	GlobalPeriodCreated     bool          `json:"global_period_created"`
	PrivateMatchesProcessed int           `json:"private_matches_processed"`
	PublicUsersProcessed    int           `json:"public_users_processed"`
	TotalAssignments        int           `json:"total_assignments"`
	Units                   []UnitResult  `json:"units,omitempty"`
	Failures                []UnitFailure `json:"failures,omitempty"`
}

// RunCycle opens the periods for one allocation cycle and materializes the
// random assignments. Each invocation creates fresh periods: running once
// per cycle boundary is the caller's responsibility.
func (e Engine) RunCycle(ctx context.Context, opts RunOptions) (RunSummary, error) {
	days := opts.Days
	if days <= 0 {
		days = 30
		if e.Config != nil {
			days = e.Config.Allocation.CycleDays
		}
	}
	startStr := opts.StartDate
	if startStr == "" {
		startStr = e.now().UTC().Format(domain.DateLayout)
	}
	start, err := time.Parse(domain.DateLayout, startStr)
	if err != nil {
		return RunSummary{}, validationf("start date must be a %s date", domain.DateLayout)
	}
	summary := RunSummary{StartDate: startStr, DryRun: opts.DryRun}
	globalEnd := start.AddDate(0, 0, days).Format(domain.DateLayout)

	var globalPeriod domain.Period
	if !opts.DryRun {
		globalPeriod, err = e.createPeriod(ctx, nil, startStr, globalEnd, opts.ActorID)
		if err != nil {
			return summary, fmt.Errorf("create global period: %w", err)
		}
		summary.GlobalPeriodCreated = true
	}

	privateMatches, err := e.Repo.ListMatches(ctx, repo.MatchFilters{Mode: domain.MatchModePrivate, Status: domain.MatchStatusAccepted})
	if err != nil {
		return summary, err
	}
	for _, m := range privateMatches {
		unit := "match:" + m.ID
		n, err := e.allocatePrivateMatch(ctx, m, start, days, opts)
		if err != nil {
			summary.Failures = append(summary.Failures, UnitFailure{Unit: unit, Error: err.Error()})
			continue
		}
		summary.PrivateMatchesProcessed++
		summary.TotalAssignments += n
		summary.Units = append(summary.Units, UnitResult{Unit: unit, Assignments: n})
	}

	publicUsers, err := e.Repo.ListUsers(ctx, repo.UserFilters{ActiveOnly: true, PublicMode: true})
	if err != nil {
		return summary, err
	}
	for _, u := range publicUsers {
		unit := "user:" + u.Nickname
		n, err := e.allocatePublicUser(ctx, u, globalPeriod, globalEnd, opts)
		if err != nil {
			summary.Failures = append(summary.Failures, UnitFailure{Unit: unit, Error: err.Error()})
			continue
		}
		summary.PublicUsersProcessed++
		summary.TotalAssignments += n
		if n > 0 {
			summary.Units = append(summary.Units, UnitResult{Unit: unit, Assignments: n})
		}
	}
	return summary, nil
}

func (e Engine) createPeriod(ctx context.Context, matchID *string, startDate, endDate, actorID string) (domain.Period, error) {
	p := domain.Period{
		ID:        uuid.New().String(),
		MatchID:   matchID,
		StartDate: startDate,
		EndDate:   endDate,
		IsActive:  true,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Period{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertPeriod(ctx, tx, p); err != nil {
		return domain.Period{}, err
	}
	scope := "global"
	if matchID != nil {
		scope = "match"
	}
	if err := e.Events.Append(ctx, tx, "period.created", "period", p.ID, actorID, events.EventPayload{"scope": scope, "start": startDate, "end": endDate}); err != nil {
		return domain.Period{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Period{}, err
	}
	return p, nil
}

// allocatePrivateMatch opens the match-scoped period and allocates both
// directions in one transaction. The period is created even when the
// agreement yields no assignments: periods track time, not content.
func (e Engine) allocatePrivateMatch(ctx context.Context, m domain.Match, start time.Time, defaultDays int, opts RunOptions) (int, error) {
	days := defaultDays
	if m.PrivatePeriodDays != nil {
		days = *m.PrivatePeriodDays
	}
	endDate := start.AddDate(0, 0, days).Format(domain.DateLayout)

	user1, err := e.Repo.GetUser(ctx, m.User1ID)
	if err != nil {
		return 0, err
	}
	user2, err := e.Repo.GetUser(ctx, m.User2ID)
	if err != nil {
		return 0, err
	}
	var cats []domain.Category
	for _, cid := range m.PrivateCategoryIDs {
		c, err := e.Repo.GetCategory(ctx, cid)
		if err != nil {
			return 0, err
		}
		cats = append(cats, c)
	}

	var tx *sql.Tx
	var period domain.Period
	if !opts.DryRun {
		tx, err = e.DB.BeginTx(ctx, nil)
		if err != nil {
			return 0, err
		}
		defer tx.Rollback()
		period = domain.Period{
			ID:        uuid.New().String(),
			MatchID:   &m.ID,
			StartDate: start.Format(domain.DateLayout),
			EndDate:   endDate,
			IsActive:  true,
			CreatedAt: e.now().UTC().Format(time.RFC3339),
		}
		if err := e.Repo.InsertPeriod(ctx, tx, period); err != nil {
			return 0, err
		}
		if err := e.Events.Append(ctx, tx, "period.created", "period", period.ID, opts.ActorID, events.EventPayload{"scope": "match", "match_id": m.ID}); err != nil {
			return 0, err
		}
	}
	n1, err := e.allocateDirection(ctx, tx, user1, user2, cats, period.ID, endDate, opts)
	if err != nil {
		return 0, err
	}
	n2, err := e.allocateDirection(ctx, tx, user2, user1, cats, period.ID, endDate, opts)
	if err != nil {
		return 0, err
	}
	if tx != nil {
		if err := tx.Commit(); err != nil {
			return 0, err
		}
	}
	return n1 + n2, nil
}

// allocatePublicUser processes every accepted public match the user sits
// in, with the counterpart as wish owner and the user as executor. The
// opposite direction happens when the counterpart's own turn comes, so
// each match yields exactly one direction per user.
func (e Engine) allocatePublicUser(ctx context.Context, u domain.User, globalPeriod domain.Period, dueDate string, opts RunOptions) (int, error) {
	matches, err := e.Repo.ListMatches(ctx, repo.MatchFilters{Mode: domain.MatchModePublic, Status: domain.MatchStatusAccepted, Participant: u.ID})
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}
	cats, err := e.Repo.ListCategories(ctx, repo.CategoryFilters{ActiveOnly: true})
	if err != nil {
		return 0, err
	}
	var tx *sql.Tx
	if !opts.DryRun {
		tx, err = e.DB.BeginTx(ctx, nil)
		if err != nil {
			return 0, err
		}
		defer tx.Rollback()
	}
	total := 0
	for _, m := range matches {
		owner, err := e.Repo.GetUser(ctx, m.Other(u.ID))
		if err != nil {
			return 0, err
		}
		n, err := e.allocateDirection(ctx, tx, owner, u, cats, globalPeriod.ID, dueDate, opts)
		if err != nil {
			return 0, err
		}
		total += n
	}
	if tx != nil {
		if err := tx.Commit(); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// allocateDirection materializes assignments flowing from one owner to one
// executor. With DryRun set it performs the same selection but writes
// nothing.
func (e Engine) allocateDirection(ctx context.Context, tx *sql.Tx, owner, executor domain.User, categories []domain.Category, periodID, dueDate string, opts RunOptions) (int, error) {
	byCategory, err := e.Repo.ActiveWishesByCategory(ctx, owner.ID)
	if err != nil {
		return 0, err
	}
	pools := FilterEligible(categories, byCategory, executor.IsAdult(e.now()))
	assignedAt := e.now().UTC().Format(time.RFC3339)
	count := 0
	for _, pool := range pools {
		selected := SampleQuota(e.sampler(), pool.Wishes, pool.Category.MaxWishesPerPeriod)
		for _, w := range selected {
			count++
			if opts.DryRun {
				continue
			}
			a := domain.Assignment{
				ID:         uuid.New().String(),
				PeriodID:   periodID,
				WishID:     w.ID,
				AssignedTo: executor.ID,
				AssignedAt: assignedAt,
				DueDate:    dueDate,
			}
			if err := e.Repo.InsertAssignment(ctx, tx, a); err != nil {
				return count, err
			}
			if err := e.Events.Append(ctx, tx, "assignment.created", "assignment", a.ID, opts.ActorID, events.EventPayload{
				"wish_id":     w.ID,
				"assigned_to": executor.ID,
				"due_date":    dueDate,
			}); err != nil {
				return count, err
			}
		}
	}
	return count, nil
}
