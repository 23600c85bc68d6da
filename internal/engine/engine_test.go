package engine_test

import (
	"context"
	"testing"
	"time"

	"wishline/internal/config"
	"wishline/internal/db"
	"wishline/internal/domain"
	"wishline/internal/engine"
	"wishline/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }
	eng.Sampler = engine.NewSampler(1)
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func mustUser(t *testing.T, env testEnv, nickname, birthDate string, publicMode bool) domain.User {
	t.Helper()
	u, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		Nickname:           nickname,
		BirthDate:          birthDate,
		IsPublicModeActive: publicMode,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", nickname, err)
	}
	return u
}

func mustCategory(t *testing.T, env testEnv, name string, adult bool, quota int) domain.Category {
	t.Helper()
	c, err := env.Engine.CreateCategory(env.Ctx, engine.CategoryCreateOptions{
		Name:               name,
		IsAdult:            adult,
		MaxWishesPerPeriod: quota,
		MinDaysToComplete:  1,
		MaxDaysToComplete:  30,
	})
	if err != nil {
		t.Fatalf("create category %s: %v", name, err)
	}
	return c
}

func mustWish(t *testing.T, env testEnv, ownerID, categoryID, title string) domain.Wish {
	t.Helper()
	w, err := env.Engine.CreateWish(env.Ctx, engine.WishCreateOptions{
		OwnerID:    ownerID,
		CategoryID: categoryID,
		Title:      title,
		ActorID:    ownerID,
	})
	if err != nil {
		t.Fatalf("create wish %s: %v", title, err)
	}
	return w
}

func mustAcceptedMatch(t *testing.T, env testEnv, a, b domain.User, mode string, categoryIDs []string, periodDays *int) domain.Match {
	t.Helper()
	m, err := env.Engine.CreateMatch(env.Ctx, engine.MatchCreateOptions{
		UserAID:            a.ID,
		UserBID:            b.ID,
		Mode:               mode,
		PrivateCategoryIDs: categoryIDs,
		PrivatePeriodDays:  periodDays,
		ActorID:            a.ID,
	})
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	m, err = env.Engine.AcceptMatch(env.Ctx, m.ID, b.ID)
	if err != nil {
		t.Fatalf("accept match: %v", err)
	}
	return m
}

func TestCreateUserValidation(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{BirthDate: "1990-01-01"}); engine.KindOf(err) != engine.KindValidation {
		t.Fatalf("empty nickname: got %v", err)
	}
	if _, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{Nickname: "ana", BirthDate: "not-a-date"}); engine.KindOf(err) != engine.KindValidation {
		t.Fatalf("bad birth date: got %v", err)
	}
	u := mustUser(t, env, "ana", "1990-05-10", true)
	if !u.IsActive || !u.IsPublicModeActive {
		t.Fatalf("unexpected flags: %+v", u)
	}
}

func TestAdultDerivation(t *testing.T) {
	env := newTestEnv(t)
	now := env.Engine.Now()
	adult := mustUser(t, env, "adult", "1990-05-10", false)
	minor := mustUser(t, env, "minor", "2015-03-01", false)
	boundary := mustUser(t, env, "boundary", "2007-01-01", false)
	if !adult.IsAdult(now) {
		t.Fatal("expected adult")
	}
	if minor.IsAdult(now) {
		t.Fatal("expected minor")
	}
	// turns 18 exactly on the reference day
	if !boundary.IsAdult(now) {
		t.Fatal("expected 18th birthday to count as adult")
	}
}

func TestMinorCannotCreateAdultWish(t *testing.T) {
	env := newTestEnv(t)
	minor := mustUser(t, env, "minor", "2015-03-01", false)
	cat := mustCategory(t, env, "adults-only", true, 3)
	_, err := env.Engine.CreateWish(env.Ctx, engine.WishCreateOptions{
		OwnerID:    minor.ID,
		CategoryID: cat.ID,
		Title:      "nope",
		ActorID:    minor.ID,
	})
	if engine.KindOf(err) != engine.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCategoryValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := []engine.CategoryCreateOptions{
		{Name: "", MaxWishesPerPeriod: 1, MinDaysToComplete: 1, MaxDaysToComplete: 5},
		{Name: "x", MaxWishesPerPeriod: 0, MinDaysToComplete: 1, MaxDaysToComplete: 5},
		{Name: "x", MaxWishesPerPeriod: 1, MinDaysToComplete: 0, MaxDaysToComplete: 5},
		{Name: "x", MaxWishesPerPeriod: 1, MinDaysToComplete: 9, MaxDaysToComplete: 5},
	}
	for i, opts := range cases {
		if _, err := env.Engine.CreateCategory(env.Ctx, opts); engine.KindOf(err) != engine.KindValidation {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestSeedCategories(t *testing.T) {
	env := newTestEnv(t)
	n, err := env.Engine.SeedCategories(env.Ctx, "")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != len(env.Engine.Config.Categories) {
		t.Fatalf("seeded %d, want %d", n, len(env.Engine.Config.Categories))
	}
	// second run is a no-op
	n, err = env.Engine.SeedCategories(env.Ctx, "")
	if err != nil || n != 0 {
		t.Fatalf("re-seed: n=%d err=%v", n, err)
	}
}

func TestMatchCanonicalization(t *testing.T) {
	env := newTestEnv(t)
	a := mustUser(t, env, "a", "1990-01-01", false)
	b := mustUser(t, env, "b", "1991-01-01", false)
	lo, hi := a.ID, b.ID
	if lo > hi {
		lo, hi = hi, lo
	}
	// propose in the non-canonical order
	m, err := env.Engine.CreateMatch(env.Ctx, engine.MatchCreateOptions{
		UserAID: hi, UserBID: lo, Mode: domain.MatchModePrivate, ActorID: hi,
	})
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	if m.User1ID != lo || m.User2ID != hi {
		t.Fatalf("pair not canonicalized: %s / %s", m.User1ID, m.User2ID)
	}
	if _, err := env.Engine.CreateMatch(env.Ctx, engine.MatchCreateOptions{
		UserAID: lo, UserBID: hi, Mode: domain.MatchModePrivate, ActorID: lo,
	}); err == nil {
		t.Fatal("reciprocal duplicate should be rejected")
	}
}

func TestMatchResponses(t *testing.T) {
	env := newTestEnv(t)
	a := mustUser(t, env, "a", "1990-01-01", false)
	b := mustUser(t, env, "b", "1991-01-01", false)
	c := mustUser(t, env, "c", "1992-01-01", false)
	m, err := env.Engine.CreateMatch(env.Ctx, engine.MatchCreateOptions{
		UserAID: a.ID, UserBID: b.ID, Mode: domain.MatchModePublic, ActorID: a.ID,
	})
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	if _, err := env.Engine.AcceptMatch(env.Ctx, m.ID, c.ID); engine.KindOf(err) != engine.KindForbidden {
		t.Fatalf("outsider accept: got %v", err)
	}
	m, err = env.Engine.AcceptMatch(env.Ctx, m.ID, b.ID)
	if err != nil || m.Status != domain.MatchStatusAccepted {
		t.Fatalf("accept: %v", err)
	}
	if _, err := env.Engine.RejectMatch(env.Ctx, m.ID, b.ID); engine.KindOf(err) != engine.KindConflict {
		t.Fatalf("reject after accept: got %v", err)
	}
	// blocking works from any status
	m, err = env.Engine.BlockMatch(env.Ctx, m.ID, a.ID)
	if err != nil || m.Status != domain.MatchStatusBlocked {
		t.Fatalf("block: %v", err)
	}
}

func TestPublicMatchRejectsPrivateSettings(t *testing.T) {
	env := newTestEnv(t)
	a := mustUser(t, env, "a", "1990-01-01", true)
	b := mustUser(t, env, "b", "1991-01-01", true)
	days := 14
	_, err := env.Engine.CreateMatch(env.Ctx, engine.MatchCreateOptions{
		UserAID: a.ID, UserBID: b.ID, Mode: domain.MatchModePublic, PrivatePeriodDays: &days, ActorID: a.ID,
	})
	if engine.KindOf(err) != engine.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteWish(t *testing.T) {
	env := newTestEnv(t)
	a := mustUser(t, env, "a", "1990-01-01", true)
	b := mustUser(t, env, "b", "1991-01-01", true)
	cat := mustCategory(t, env, "chores", false, 2)
	w := mustWish(t, env, a.ID, cat.ID, "stale wish")

	if err := env.Engine.DeleteWish(env.Ctx, w.ID, b.ID); engine.KindOf(err) != engine.KindForbidden {
		t.Fatalf("outsider delete: got %v", err)
	}
	if err := env.Engine.DeleteWish(env.Ctx, w.ID, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.Repo.GetWish(env.Ctx, w.ID); engine.KindOf(err) != engine.KindNotFound {
		t.Fatalf("wish should be gone, got %v", err)
	}

	// once a draw picked the wish it can only be deactivated
	w2 := mustWish(t, env, a.ID, cat.ID, "drawn wish")
	mustAcceptedMatch(t, env, a, b, domain.MatchModePrivate, []string{cat.ID}, nil)
	if _, err := env.Engine.RunCycle(env.Ctx, engine.RunOptions{ActorID: "admin"}); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if err := env.Engine.DeleteWish(env.Ctx, w2.ID, a.ID); engine.KindOf(err) != engine.KindConflict {
		t.Fatalf("delete after draw: got %v", err)
	}
}
