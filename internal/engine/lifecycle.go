package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"wishline/internal/domain"
	"wishline/internal/events"
	"wishline/internal/repo"
)

// RejectAssignment marks a public-mode assignment rejected. Private
// commitments cannot be unilaterally walked away from, and only the
// assigned executor may reject.
func (e Engine) RejectAssignment(ctx context.Context, assignmentID, actorID string) (domain.Assignment, error) {
	a, err := e.Repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if a.AssignedTo != actorID {
		return domain.Assignment{}, forbiddenf("only the assigned executor may reject")
	}
	period, err := e.Repo.GetPeriod(ctx, a.PeriodID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if period.MatchID != nil {
		m, err := e.Repo.GetMatch(ctx, *period.MatchID)
		if err != nil {
			return domain.Assignment{}, err
		}
		if m.Mode == domain.MatchModePrivate {
			return domain.Assignment{}, forbiddenf("private assignments cannot be rejected")
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Assignment{}, err
	}
	defer tx.Rollback()
	ok, err := e.Repo.MarkAssignmentRejected(ctx, tx, a.ID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if !ok {
		return domain.Assignment{}, conflictf("assignment is already completed or rejected")
	}
	if err := e.Events.Append(ctx, tx, "assignment.rejected", "assignment", a.ID, actorID, nil); err != nil {
		return domain.Assignment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Assignment{}, err
	}
	a.IsRejected = true
	return a, nil
}

type NegotiationProposeOptions struct {
	AssignmentID string
	ActorID      string
	ProposedDate string
	ProposedTime *string
	Message      string
}

// ProposeNegotiation opens a pending date/time proposal on an open
// assignment. Either side may propose, and proposals accumulate as a
// counter-offer history.
func (e Engine) ProposeNegotiation(ctx context.Context, opts NegotiationProposeOptions) (domain.Negotiation, error) {
	if _, err := time.Parse(domain.DateLayout, opts.ProposedDate); err != nil {
		return domain.Negotiation{}, validationf("proposed date must be a %s date", domain.DateLayout)
	}
	if opts.ProposedTime != nil {
		if _, err := time.Parse("15:04", *opts.ProposedTime); err != nil {
			return domain.Negotiation{}, validationf("proposed time must be HH:MM")
		}
	}
	a, err := e.Repo.GetAssignment(ctx, opts.AssignmentID)
	if err != nil {
		return domain.Negotiation{}, err
	}
	if a.IsCompleted || a.IsRejected {
		return domain.Negotiation{}, conflictf("assignment is closed")
	}
	w, err := e.Repo.GetWish(ctx, a.WishID)
	if err != nil {
		return domain.Negotiation{}, err
	}
	if opts.ActorID != a.AssignedTo && opts.ActorID != w.UserID {
		return domain.Negotiation{}, forbiddenf("only the executor or the wish owner may negotiate")
	}
	now := e.now().UTC().Format(time.RFC3339)
	n := domain.Negotiation{
		ID:           uuid.New().String(),
		AssignmentID: a.ID,
		ProposedBy:   opts.ActorID,
		ProposedDate: opts.ProposedDate,
		ProposedTime: opts.ProposedTime,
		Message:      opts.Message,
		Status:       domain.NegotiationStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Negotiation{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertNegotiation(ctx, tx, n); err != nil {
		return domain.Negotiation{}, err
	}
	if err := e.Events.Append(ctx, tx, "negotiation.proposed", "negotiation", n.ID, opts.ActorID, events.EventPayload{
		"assignment_id": a.ID,
		"proposed_date": opts.ProposedDate,
	}); err != nil {
		return domain.Negotiation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Negotiation{}, err
	}
	return n, nil
}

type NegotiationRespondOptions struct {
	NegotiationID   string
	ActorID         string
	Accept          bool
	ResponseMessage string
}

// RespondNegotiation accepts or rejects a pending proposal. Only the
// counterpart of the proposer may answer, and at most one accepted
// negotiation governs an assignment's schedule.
func (e Engine) RespondNegotiation(ctx context.Context, opts NegotiationRespondOptions) (domain.Negotiation, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Negotiation{}, err
	}
	defer tx.Rollback()
	n, err := e.Repo.GetNegotiationTx(ctx, tx, opts.NegotiationID)
	if err != nil {
		return domain.Negotiation{}, err
	}
	a, err := e.Repo.GetAssignmentTx(ctx, tx, n.AssignmentID)
	if err != nil {
		return domain.Negotiation{}, err
	}
	w, err := e.Repo.GetWish(ctx, a.WishID)
	if err != nil {
		return domain.Negotiation{}, err
	}
	if opts.ActorID != a.AssignedTo && opts.ActorID != w.UserID {
		return domain.Negotiation{}, forbiddenf("only the executor or the wish owner may respond")
	}
	if opts.ActorID == n.ProposedBy {
		return domain.Negotiation{}, forbiddenf("proposer cannot respond to their own negotiation")
	}
	status := domain.NegotiationStatusRejected
	if opts.Accept {
		accepted, err := e.Repo.HasAcceptedNegotiation(ctx, tx, a.ID)
		if err != nil {
			return domain.Negotiation{}, err
		}
		if accepted {
			return domain.Negotiation{}, conflictf("an accepted negotiation already exists for this assignment")
		}
		status = domain.NegotiationStatusAccepted
	}
	updatedAt := e.now().UTC().Format(time.RFC3339)
	ok, err := e.Repo.ResolveNegotiation(ctx, tx, n.ID, status, opts.ResponseMessage, updatedAt)
	if err != nil {
		return domain.Negotiation{}, err
	}
	if !ok {
		return domain.Negotiation{}, conflictf("negotiation is not pending")
	}
	if err := e.Events.Append(ctx, tx, "negotiation."+status, "negotiation", n.ID, opts.ActorID, events.EventPayload{
		"assignment_id": a.ID,
	}); err != nil {
		return domain.Negotiation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Negotiation{}, err
	}
	n.Status = status
	n.ResponseMessage = opts.ResponseMessage
	n.UpdatedAt = updatedAt
	return n, nil
}

type ExecutionRecordOptions struct {
	AssignmentID      string
	ActorID           string
	CompletedDate     string
	CompletedTime     *string
	Rating            int
	CommentByCreator  string
	CommentByExecutor string
}

// RecordExecution closes an assignment: it inserts the unique execution
// row and flips the assignment to completed in the same transaction, so a
// rating can never exist without its completion and vice versa.
func (e Engine) RecordExecution(ctx context.Context, opts ExecutionRecordOptions) (domain.Execution, error) {
	if opts.Rating < 1 || opts.Rating > 5 {
		return domain.Execution{}, validationf("rating must be between 1 and 5")
	}
	if _, err := time.Parse(domain.DateLayout, opts.CompletedDate); err != nil {
		return domain.Execution{}, validationf("completed date must be a %s date", domain.DateLayout)
	}
	if opts.CompletedTime != nil {
		if _, err := time.Parse("15:04", *opts.CompletedTime); err != nil {
			return domain.Execution{}, validationf("completed time must be HH:MM")
		}
	}
	a, err := e.Repo.GetAssignment(ctx, opts.AssignmentID)
	if err != nil {
		return domain.Execution{}, err
	}
	w, err := e.Repo.GetWish(ctx, a.WishID)
	if err != nil {
		return domain.Execution{}, err
	}
	if opts.ActorID != a.AssignedTo && opts.ActorID != w.UserID {
		return domain.Execution{}, forbiddenf("only the executor or the wish owner may record execution")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Execution{}, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetExecutionByAssignmentTx(ctx, tx, a.ID); err == nil {
		return domain.Execution{}, conflictf("execution already recorded for this assignment")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Execution{}, err
	}
	exec := domain.Execution{
		ID:                uuid.New().String(),
		AssignmentID:      a.ID,
		CompletedDate:     opts.CompletedDate,
		CompletedTime:     opts.CompletedTime,
		Rating:            opts.Rating,
		CommentByCreator:  opts.CommentByCreator,
		CommentByExecutor: opts.CommentByExecutor,
		CreatedAt:         e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertExecution(ctx, tx, exec); err != nil {
		return domain.Execution{}, err
	}
	ok, err := e.Repo.MarkAssignmentCompleted(ctx, tx, a.ID)
	if err != nil {
		return domain.Execution{}, err
	}
	if !ok {
		return domain.Execution{}, conflictf("assignment is already completed or rejected")
	}
	if err := e.Events.Append(ctx, tx, "execution.recorded", "execution", exec.ID, opts.ActorID, events.EventPayload{
		"assignment_id": a.ID,
		"rating":        opts.Rating,
	}); err != nil {
		return domain.Execution{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Execution{}, err
	}
	return exec, nil
}
