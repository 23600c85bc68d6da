package engine_test

import (
	"testing"

	"wishline/internal/domain"
	"wishline/internal/engine"
	"wishline/internal/repo"
)

// rankedEnv: one wish owner, two executors. fast completes two assignments
// quickly with top ratings, slow completes one late with a middling rating.
func rankedEnv(t *testing.T) (testEnv, domain.User, domain.User) {
	t.Helper()
	env := newTestEnv(t)
	owner := mustUser(t, env, "owner", "1985-01-01", true)
	fast := mustUser(t, env, "fast", "1990-01-01", true)
	slow := mustUser(t, env, "slow", "1991-01-01", true)
	cat := mustCategory(t, env, "household", false, 5)
	for _, title := range []string{"w1", "w2", "w3"} {
		mustWish(t, env, owner.ID, cat.ID, title)
	}
	mustAcceptedMatch(t, env, owner, fast, domain.MatchModePublic, nil, nil)
	mustAcceptedMatch(t, env, owner, slow, domain.MatchModePublic, nil, nil)
	if _, err := env.Engine.RunCycle(env.Ctx, engine.RunOptions{}); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	complete := func(executor domain.User, count int, rating int, date string) {
		t.Helper()
		got, err := env.Engine.Repo.ListAssignments(env.Ctx, repo.AssignmentFilters{AssignedTo: executor.ID})
		if err != nil || len(got) < count {
			t.Fatalf("assignments for %s: %d err=%v", executor.Nickname, len(got), err)
		}
		for i := 0; i < count; i++ {
			if _, err := env.Engine.RecordExecution(env.Ctx, engine.ExecutionRecordOptions{
				AssignmentID:  got[i].ID,
				ActorID:       executor.ID,
				CompletedDate: date,
				Rating:        rating,
			}); err != nil {
				t.Fatalf("record execution: %v", err)
			}
		}
	}
	complete(fast, 2, 5, "2025-01-03")
	complete(slow, 1, 3, "2025-01-10")
	return env, fast, slow
}

func TestRankMostCompleted(t *testing.T) {
	env, fast, slow := rankedEnv(t)
	got, err := env.Engine.RankMostCompleted(env.Ctx)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	// the wish owner completed nothing and must not appear
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	if got[0].UserID != fast.ID || got[0].TotalCompleted != 2 {
		t.Fatalf("first: %+v", got[0])
	}
	if got[1].UserID != slow.ID || got[1].TotalCompleted != 1 {
		t.Fatalf("second: %+v", got[1])
	}
}

func TestRankBestRated(t *testing.T) {
	env, fast, slow := rankedEnv(t)
	got, err := env.Engine.RankBestRated(env.Ctx)
	if err != nil || len(got) != 2 {
		t.Fatalf("rank: %d err=%v", len(got), err)
	}
	if got[0].UserID != fast.ID || got[0].AverageRating == nil || *got[0].AverageRating != 5 {
		t.Fatalf("first: %+v", got[0])
	}
	if got[1].UserID != slow.ID || *got[1].AverageRating != 3 {
		t.Fatalf("second: %+v", got[1])
	}
}

func TestRankFastestCompletion(t *testing.T) {
	env, fast, slow := rankedEnv(t)
	got, err := env.Engine.RankFastestCompletion(env.Ctx)
	if err != nil || len(got) != 2 {
		t.Fatalf("rank: %d err=%v", len(got), err)
	}
	if got[0].UserID != fast.ID || got[1].UserID != slow.ID {
		t.Fatalf("order: %s then %s", got[0].UserID, got[1].UserID)
	}
	if got[0].AvgCompletionDays == nil || got[1].AvgCompletionDays == nil {
		t.Fatal("missing latency")
	}
	if *got[0].AvgCompletionDays >= *got[1].AvgCompletionDays {
		t.Fatalf("fast %.1f should beat slow %.1f", *got[0].AvgCompletionDays, *got[1].AvgCompletionDays)
	}
}

func TestRankingTieBreak(t *testing.T) {
	env := newTestEnv(t)
	owner := mustUser(t, env, "owner", "1985-01-01", true)
	x := mustUser(t, env, "x", "1990-01-01", true)
	y := mustUser(t, env, "y", "1991-01-01", true)
	cat := mustCategory(t, env, "household", false, 5)
	mustWish(t, env, owner.ID, cat.ID, "w1")
	mustWish(t, env, owner.ID, cat.ID, "w2")
	mustAcceptedMatch(t, env, owner, x, domain.MatchModePublic, nil, nil)
	mustAcceptedMatch(t, env, owner, y, domain.MatchModePublic, nil, nil)
	if _, err := env.Engine.RunCycle(env.Ctx, engine.RunOptions{}); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	// one completion each, same rating, same date: every metric ties
	for _, executor := range []domain.User{x, y} {
		got, err := env.Engine.Repo.ListAssignments(env.Ctx, repo.AssignmentFilters{AssignedTo: executor.ID})
		if err != nil || len(got) == 0 {
			t.Fatalf("assignments for %s: %d err=%v", executor.Nickname, len(got), err)
		}
		if _, err := env.Engine.RecordExecution(env.Ctx, engine.ExecutionRecordOptions{
			AssignmentID:  got[0].ID,
			ActorID:       executor.ID,
			CompletedDate: "2025-01-04",
			Rating:        4,
		}); err != nil {
			t.Fatalf("record execution: %v", err)
		}
	}
	first, second := x.ID, y.ID
	if first > second {
		first, second = second, first
	}
	checks := []struct {
		name string
		rank func() ([]domain.RankingEntry, error)
	}{
		{"most-completed", func() ([]domain.RankingEntry, error) { return env.Engine.RankMostCompleted(env.Ctx) }},
		{"best-rated", func() ([]domain.RankingEntry, error) { return env.Engine.RankBestRated(env.Ctx) }},
		{"fastest-completion", func() ([]domain.RankingEntry, error) { return env.Engine.RankFastestCompletion(env.Ctx) }},
	}
	for _, c := range checks {
		got, err := c.rank()
		if err != nil || len(got) != 2 {
			t.Fatalf("%s: %d entries err=%v", c.name, len(got), err)
		}
		// tied entries fall back to user ID ascending
		if got[0].UserID != first || got[1].UserID != second {
			t.Fatalf("%s tie order: %s then %s", c.name, got[0].UserID, got[1].UserID)
		}
	}
}

func TestRankingLimit(t *testing.T) {
	env, _, _ := rankedEnv(t)
	env.Engine.Config.Rankings.Limit = 1
	got, err := env.Engine.RankMostCompleted(env.Ctx)
	if err != nil || len(got) != 1 {
		t.Fatalf("limit 1: %d err=%v", len(got), err)
	}
}
