package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"wishline/internal/domain"
	"wishline/internal/events"
)

// MatchCreateOptions are parameters for proposing a match. The user pair is
// canonicalized on insert so the lower ID is always user1.
type MatchCreateOptions struct {
	UserAID            string
	UserBID            string
	Mode               string
	PrivateCategoryIDs []string
	PrivatePeriodDays  *int
	ActorID            string
}

func (e Engine) CreateMatch(ctx context.Context, opts MatchCreateOptions) (domain.Match, error) {
	if opts.UserAID == opts.UserBID {
		return domain.Match{}, validationf("a match needs two distinct users")
	}
	if opts.Mode != domain.MatchModePrivate && opts.Mode != domain.MatchModePublic {
		return domain.Match{}, validationf("mode must be private or public")
	}
	if opts.PrivatePeriodDays != nil && *opts.PrivatePeriodDays < 1 {
		return domain.Match{}, validationf("private_period_days must be >= 1")
	}
	if opts.Mode == domain.MatchModePublic && (len(opts.PrivateCategoryIDs) > 0 || opts.PrivatePeriodDays != nil) {
		return domain.Match{}, validationf("private settings only apply to private matches")
	}
	if _, err := e.Repo.GetUser(ctx, opts.UserAID); err != nil {
		return domain.Match{}, err
	}
	if _, err := e.Repo.GetUser(ctx, opts.UserBID); err != nil {
		return domain.Match{}, err
	}
	for _, cid := range opts.PrivateCategoryIDs {
		if _, err := e.Repo.GetCategory(ctx, cid); err != nil {
			return domain.Match{}, err
		}
	}
	user1, user2 := opts.UserAID, opts.UserBID
	if user1 > user2 {
		user1, user2 = user2, user1
	}
	now := e.now().UTC().Format(time.RFC3339)
	m := domain.Match{
		ID:                 uuid.New().String(),
		User1ID:            user1,
		User2ID:            user2,
		Mode:               opts.Mode,
		Status:             domain.MatchStatusPending,
		PrivateCategoryIDs: opts.PrivateCategoryIDs,
		PrivatePeriodDays:  opts.PrivatePeriodDays,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Match{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertMatch(ctx, tx, m); err != nil {
		return domain.Match{}, err
	}
	if len(m.PrivateCategoryIDs) > 0 {
		if err := e.Repo.ReplaceMatchCategories(ctx, tx, m.ID, m.PrivateCategoryIDs); err != nil {
			return domain.Match{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "match.created", "match", m.ID, opts.ActorID, events.EventPayload{"mode": m.Mode}); err != nil {
		return domain.Match{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Match{}, err
	}
	return m, nil
}

// AcceptMatch moves a pending match to accepted. Only a participant who is
// not out of the pair may respond.
func (e Engine) AcceptMatch(ctx context.Context, matchID, actorID string) (domain.Match, error) {
	return e.respondMatch(ctx, matchID, domain.MatchStatusAccepted, actorID)
}

// RejectMatch moves a pending match to rejected.
func (e Engine) RejectMatch(ctx context.Context, matchID, actorID string) (domain.Match, error) {
	return e.respondMatch(ctx, matchID, domain.MatchStatusRejected, actorID)
}

func (e Engine) respondMatch(ctx context.Context, matchID, status, actorID string) (domain.Match, error) {
	m, err := e.Repo.GetMatch(ctx, matchID)
	if err != nil {
		return domain.Match{}, err
	}
	if m.Other(actorID) == "" {
		return domain.Match{}, forbiddenf("only match participants may respond")
	}
	if m.Status != domain.MatchStatusPending {
		return domain.Match{}, conflictf("match is not pending")
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Match{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateMatchStatus(ctx, tx, matchID, status, now); err != nil {
		return domain.Match{}, err
	}
	if err := e.Events.Append(ctx, tx, "match."+status, "match", matchID, actorID, events.EventPayload{"from": m.Status}); err != nil {
		return domain.Match{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Match{}, err
	}
	m.Status = status
	m.UpdatedAt = now
	return m, nil
}

// BlockMatch blocks a counterpart regardless of the current status.
func (e Engine) BlockMatch(ctx context.Context, matchID, actorID string) (domain.Match, error) {
	m, err := e.Repo.GetMatch(ctx, matchID)
	if err != nil {
		return domain.Match{}, err
	}
	if m.Other(actorID) == "" {
		return domain.Match{}, forbiddenf("only match participants may block")
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Match{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateMatchStatus(ctx, tx, matchID, domain.MatchStatusBlocked, now); err != nil {
		return domain.Match{}, err
	}
	if err := e.Events.Append(ctx, tx, "match.blocked", "match", matchID, actorID, events.EventPayload{"from": m.Status}); err != nil {
		return domain.Match{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Match{}, err
	}
	m.Status = domain.MatchStatusBlocked
	m.UpdatedAt = now
	return m, nil
}

// SetMatchAgreement replaces the agreed private category set and period
// override of a private match.
func (e Engine) SetMatchAgreement(ctx context.Context, matchID string, categoryIDs []string, periodDays *int, actorID string) (domain.Match, error) {
	m, err := e.Repo.GetMatch(ctx, matchID)
	if err != nil {
		return domain.Match{}, err
	}
	if m.Other(actorID) == "" {
		return domain.Match{}, forbiddenf("only match participants may change the agreement")
	}
	if m.Mode != domain.MatchModePrivate {
		return domain.Match{}, validationf("agreement settings only apply to private matches")
	}
	if periodDays != nil && *periodDays < 1 {
		return domain.Match{}, validationf("private_period_days must be >= 1")
	}
	for _, cid := range categoryIDs {
		if _, err := e.Repo.GetCategory(ctx, cid); err != nil {
			return domain.Match{}, err
		}
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Match{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.ReplaceMatchCategories(ctx, tx, matchID, categoryIDs); err != nil {
		return domain.Match{}, err
	}
	if err := e.Repo.UpdateMatchPeriodDays(ctx, tx, matchID, periodDays, now); err != nil {
		return domain.Match{}, err
	}
	if err := e.Events.Append(ctx, tx, "match.agreement.updated", "match", matchID, actorID, events.EventPayload{"categories": len(categoryIDs)}); err != nil {
		return domain.Match{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Match{}, err
	}
	return e.Repo.GetMatch(ctx, matchID)
}
