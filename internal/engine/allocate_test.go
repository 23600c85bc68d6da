package engine_test

import (
	"fmt"
	"testing"

	"wishline/internal/domain"
	"wishline/internal/engine"
	"wishline/internal/repo"
)

func wishTitles(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("wish-%d", i)
	}
	return out
}

func TestRunCyclePrivateMatch(t *testing.T) {
	env := newTestEnv(t)
	a := mustUser(t, env, "a", "1990-01-01", false)
	b := mustUser(t, env, "b", "1991-01-01", false)
	cat := mustCategory(t, env, "household", false, 2)
	for _, title := range wishTitles(5) {
		mustWish(t, env, a.ID, cat.ID, "a-"+title)
	}
	mustWish(t, env, b.ID, cat.ID, "b-wish")
	days := 14
	m := mustAcceptedMatch(t, env, a, b, domain.MatchModePrivate, []string{cat.ID}, &days)

	summary, err := env.Engine.RunCycle(env.Ctx, engine.RunOptions{})
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if !summary.GlobalPeriodCreated {
		t.Fatal("expected global period")
	}
	if summary.PrivateMatchesProcessed != 1 {
		t.Fatalf("private matches = %d", summary.PrivateMatchesProcessed)
	}
	if len(summary.Failures) != 0 {
		t.Fatalf("failures: %+v", summary.Failures)
	}
	// a owns 5 wishes capped at quota 2 toward b; b owns 1 toward a
	if summary.TotalAssignments != 3 {
		t.Fatalf("total assignments = %d, want 3", summary.TotalAssignments)
	}

	periods, err := env.Engine.Repo.ListPeriods(env.Ctx, repo.PeriodFilters{MatchID: m.ID})
	if err != nil || len(periods) != 1 {
		t.Fatalf("match periods: %d err=%v", len(periods), err)
	}
	p := periods[0]
	if p.StartDate != "2025-01-01" || p.EndDate != "2025-01-15" {
		t.Fatalf("period honors private days: %s .. %s", p.StartDate, p.EndDate)
	}
	assignments, err := env.Engine.Repo.ListAssignments(env.Ctx, repo.AssignmentFilters{PeriodID: p.ID})
	if err != nil {
		t.Fatal(err)
	}
	for _, a2 := range assignments {
		if a2.DueDate != p.EndDate {
			t.Fatalf("due date %s != period end %s", a2.DueDate, p.EndDate)
		}
		if a2.IsCompleted || a2.IsRejected {
			t.Fatalf("fresh assignment not open: %+v", a2)
		}
	}
	toB, err := env.Engine.Repo.ListAssignments(env.Ctx, repo.AssignmentFilters{AssignedTo: b.ID, PeriodID: p.ID})
	if err != nil || len(toB) != 2 {
		t.Fatalf("assignments toward b = %d, want 2 (err=%v)", len(toB), err)
	}
}

func TestRunCyclePublicUsers(t *testing.T) {
	env := newTestEnv(t)
	a := mustUser(t, env, "a", "1990-01-01", true)
	b := mustUser(t, env, "b", "1991-01-01", true)
	cat := mustCategory(t, env, "wellness", false, 3)
	mustWish(t, env, a.ID, cat.ID, "from-a-1")
	mustWish(t, env, a.ID, cat.ID, "from-a-2")
	mustWish(t, env, b.ID, cat.ID, "from-b-1")
	mustAcceptedMatch(t, env, a, b, domain.MatchModePublic, nil, nil)

	summary, err := env.Engine.RunCycle(env.Ctx, engine.RunOptions{Days: 30})
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if summary.PublicUsersProcessed != 2 {
		t.Fatalf("public users = %d", summary.PublicUsersProcessed)
	}
	if summary.TotalAssignments != 3 {
		t.Fatalf("total assignments = %d, want 3", summary.TotalAssignments)
	}
	// everything lands in the single global period
	periods, err := env.Engine.Repo.ListPeriods(env.Ctx, repo.PeriodFilters{GlobalOnly: true})
	if err != nil || len(periods) != 1 {
		t.Fatalf("global periods: %d err=%v", len(periods), err)
	}
	all, err := env.Engine.Repo.ListAssignments(env.Ctx, repo.AssignmentFilters{PeriodID: periods[0].ID})
	if err != nil || len(all) != 3 {
		t.Fatalf("global assignments = %d err=%v", len(all), err)
	}
}

func TestRunCycleSkipsAdultCategoriesForMinors(t *testing.T) {
	env := newTestEnv(t)
	adult := mustUser(t, env, "adult", "1990-01-01", false)
	minor := mustUser(t, env, "minor", "2010-06-01", false)
	safe := mustCategory(t, env, "safe", false, 3)
	spicy := mustCategory(t, env, "spicy", true, 3)
	mustWish(t, env, adult.ID, safe.ID, "safe-wish")
	mustWish(t, env, adult.ID, spicy.ID, "adult-wish")
	// a private agreement naming the adult category does not override the age rule
	mustAcceptedMatch(t, env, adult, minor, domain.MatchModePrivate, []string{safe.ID, spicy.ID}, nil)

	summary, err := env.Engine.RunCycle(env.Ctx, engine.RunOptions{})
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if summary.TotalAssignments != 1 {
		t.Fatalf("total assignments = %d, want 1", summary.TotalAssignments)
	}
	got, err := env.Engine.Repo.ListAssignments(env.Ctx, repo.AssignmentFilters{AssignedTo: minor.ID})
	if err != nil || len(got) != 1 {
		t.Fatalf("minor assignments = %d err=%v", len(got), err)
	}
	w, err := env.Engine.Repo.GetWish(env.Ctx, got[0].WishID)
	if err != nil || w.CategoryID != safe.ID {
		t.Fatalf("minor received wish from category %s", w.CategoryID)
	}
}

func TestRunCycleIgnoresInactiveWishes(t *testing.T) {
	env := newTestEnv(t)
	a := mustUser(t, env, "a", "1990-01-01", false)
	b := mustUser(t, env, "b", "1991-01-01", false)
	cat := mustCategory(t, env, "household", false, 5)
	keep := mustWish(t, env, a.ID, cat.ID, "keep")
	drop := mustWish(t, env, a.ID, cat.ID, "drop")
	if _, err := env.Engine.SetWishActive(env.Ctx, drop.ID, false, a.ID); err != nil {
		t.Fatal(err)
	}
	mustAcceptedMatch(t, env, a, b, domain.MatchModePrivate, []string{cat.ID}, nil)

	summary, err := env.Engine.RunCycle(env.Ctx, engine.RunOptions{})
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if summary.TotalAssignments != 1 {
		t.Fatalf("total assignments = %d, want 1", summary.TotalAssignments)
	}
	got, err := env.Engine.Repo.ListAssignments(env.Ctx, repo.AssignmentFilters{AssignedTo: b.ID})
	if err != nil || len(got) != 1 || got[0].WishID != keep.ID {
		t.Fatalf("expected only the active wish, got %+v (err=%v)", got, err)
	}
}

func TestRunCycleDryRun(t *testing.T) {
	env := newTestEnv(t)
	a := mustUser(t, env, "a", "1990-01-01", false)
	b := mustUser(t, env, "b", "1991-01-01", false)
	cat := mustCategory(t, env, "household", false, 2)
	for _, title := range wishTitles(4) {
		mustWish(t, env, a.ID, cat.ID, title)
	}
	mustAcceptedMatch(t, env, a, b, domain.MatchModePrivate, []string{cat.ID}, nil)

	dry, err := env.Engine.RunCycle(env.Ctx, engine.RunOptions{DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if dry.GlobalPeriodCreated {
		t.Fatal("dry run must not create periods")
	}
	if dry.TotalAssignments != 2 {
		t.Fatalf("dry run count = %d, want 2", dry.TotalAssignments)
	}
	periods, err := env.Engine.Repo.ListPeriods(env.Ctx, repo.PeriodFilters{})
	if err != nil || len(periods) != 0 {
		t.Fatalf("dry run persisted %d periods", len(periods))
	}
	assignments, err := env.Engine.Repo.ListAssignments(env.Ctx, repo.AssignmentFilters{})
	if err != nil || len(assignments) != 0 {
		t.Fatalf("dry run persisted %d assignments", len(assignments))
	}

	// a real run reports the same count
	real, err := env.Engine.RunCycle(env.Ctx, engine.RunOptions{})
	if err != nil {
		t.Fatalf("real run: %v", err)
	}
	if real.TotalAssignments != dry.TotalAssignments {
		t.Fatalf("real=%d dry=%d", real.TotalAssignments, dry.TotalAssignments)
	}
}

func TestRunCycleNotIdempotent(t *testing.T) {
	env := newTestEnv(t)
	a := mustUser(t, env, "a", "1990-01-01", false)
	b := mustUser(t, env, "b", "1991-01-01", false)
	cat := mustCategory(t, env, "household", false, 1)
	mustWish(t, env, a.ID, cat.ID, "w")
	m := mustAcceptedMatch(t, env, a, b, domain.MatchModePrivate, []string{cat.ID}, nil)

	for i := 0; i < 2; i++ {
		if _, err := env.Engine.RunCycle(env.Ctx, engine.RunOptions{}); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	periods, err := env.Engine.Repo.ListPeriods(env.Ctx, repo.PeriodFilters{MatchID: m.ID})
	if err != nil || len(periods) != 2 {
		t.Fatalf("re-run should open a second period, got %d", len(periods))
	}
	assignments, err := env.Engine.Repo.ListAssignments(env.Ctx, repo.AssignmentFilters{AssignedTo: b.ID})
	if err != nil || len(assignments) != 2 {
		t.Fatalf("re-run should create a second batch, got %d", len(assignments))
	}
}

func TestFilterEligible(t *testing.T) {
	active := domain.Category{ID: "c1", IsActive: true}
	inactive := domain.Category{ID: "c2"}
	adult := domain.Category{ID: "c3", IsAdult: true, IsActive: true}
	wishes := map[string][]domain.Wish{
		"c1": {{ID: "w1"}},
		"c2": {{ID: "w2"}},
		"c3": {{ID: "w3"}},
	}
	cats := []domain.Category{active, inactive, adult}

	got := engine.FilterEligible(cats, wishes, true)
	if len(got) != 2 || got[0].Category.ID != "c1" || got[1].Category.ID != "c3" {
		t.Fatalf("adult executor: %+v", got)
	}
	got = engine.FilterEligible(cats, wishes, false)
	if len(got) != 1 || got[0].Category.ID != "c1" {
		t.Fatalf("minor executor: %+v", got)
	}
	got = engine.FilterEligible(cats, map[string][]domain.Wish{}, true)
	if len(got) != 0 {
		t.Fatalf("empty pools: %+v", got)
	}
}
