package engine_test

import (
	"testing"

	"wishline/internal/domain"
	"wishline/internal/engine"
	"wishline/internal/repo"
)

// cycleAssignment runs one allocation cycle and returns the assignment
// flowing from owner to executor.
func cycleAssignment(t *testing.T, env testEnv, owner, executor domain.User) domain.Assignment {
	t.Helper()
	if _, err := env.Engine.RunCycle(env.Ctx, engine.RunOptions{}); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	got, err := env.Engine.Repo.ListAssignments(env.Ctx, repo.AssignmentFilters{AssignedTo: executor.ID, OwnerID: owner.ID})
	if err != nil || len(got) == 0 {
		t.Fatalf("no assignment toward %s (err=%v)", executor.Nickname, err)
	}
	return got[0]
}

func publicPairEnv(t *testing.T) (testEnv, domain.User, domain.User, domain.Assignment) {
	t.Helper()
	env := newTestEnv(t)
	owner := mustUser(t, env, "owner", "1990-01-01", true)
	executor := mustUser(t, env, "executor", "1991-01-01", true)
	cat := mustCategory(t, env, "household", false, 1)
	mustWish(t, env, owner.ID, cat.ID, "the-wish")
	mustAcceptedMatch(t, env, owner, executor, domain.MatchModePublic, nil, nil)
	a := cycleAssignment(t, env, owner, executor)
	return env, owner, executor, a
}

func TestRejectAssignment(t *testing.T) {
	env, owner, executor, a := publicPairEnv(t)

	if _, err := env.Engine.RejectAssignment(env.Ctx, a.ID, owner.ID); engine.KindOf(err) != engine.KindForbidden {
		t.Fatalf("owner reject: got %v", err)
	}
	rejected, err := env.Engine.RejectAssignment(env.Ctx, a.ID, executor.ID)
	if err != nil || !rejected.IsRejected {
		t.Fatalf("executor reject: %v", err)
	}
	if _, err := env.Engine.RejectAssignment(env.Ctx, a.ID, executor.ID); engine.KindOf(err) != engine.KindConflict {
		t.Fatalf("double reject: got %v", err)
	}
}

func TestRejectAssignmentPrivateForbidden(t *testing.T) {
	env := newTestEnv(t)
	owner := mustUser(t, env, "owner", "1990-01-01", false)
	executor := mustUser(t, env, "executor", "1991-01-01", false)
	cat := mustCategory(t, env, "household", false, 1)
	mustWish(t, env, owner.ID, cat.ID, "the-wish")
	mustAcceptedMatch(t, env, owner, executor, domain.MatchModePrivate, []string{cat.ID}, nil)
	a := cycleAssignment(t, env, owner, executor)

	if _, err := env.Engine.RejectAssignment(env.Ctx, a.ID, executor.ID); engine.KindOf(err) != engine.KindForbidden {
		t.Fatalf("private reject: got %v", err)
	}
}

func TestNegotiationFlow(t *testing.T) {
	env, owner, executor, a := publicPairEnv(t)

	n, err := env.Engine.ProposeNegotiation(env.Ctx, engine.NegotiationProposeOptions{
		AssignmentID: a.ID,
		ActorID:      executor.ID,
		ProposedDate: "2025-01-10",
		Message:      "evening works best",
	})
	if err != nil || n.Status != domain.NegotiationStatusPending {
		t.Fatalf("propose: %v", err)
	}
	// proposer cannot answer their own proposal
	if _, err := env.Engine.RespondNegotiation(env.Ctx, engine.NegotiationRespondOptions{
		NegotiationID: n.ID, ActorID: executor.ID, Accept: true,
	}); engine.KindOf(err) != engine.KindForbidden {
		t.Fatalf("self-respond: got %v", err)
	}
	n, err = env.Engine.RespondNegotiation(env.Ctx, engine.NegotiationRespondOptions{
		NegotiationID: n.ID, ActorID: owner.ID, Accept: true, ResponseMessage: "deal",
	})
	if err != nil || n.Status != domain.NegotiationStatusAccepted || n.ResponseMessage != "deal" {
		t.Fatalf("accept: %+v err=%v", n, err)
	}
	// non-pending negotiations are frozen
	if _, err := env.Engine.RespondNegotiation(env.Ctx, engine.NegotiationRespondOptions{
		NegotiationID: n.ID, ActorID: owner.ID, Accept: false,
	}); engine.KindOf(err) != engine.KindConflict {
		t.Fatalf("re-respond: got %v", err)
	}
	// a second accepted negotiation per assignment is refused
	n2, err := env.Engine.ProposeNegotiation(env.Ctx, engine.NegotiationProposeOptions{
		AssignmentID: a.ID, ActorID: owner.ID, ProposedDate: "2025-01-12",
	})
	if err != nil {
		t.Fatalf("second proposal: %v", err)
	}
	if _, err := env.Engine.RespondNegotiation(env.Ctx, engine.NegotiationRespondOptions{
		NegotiationID: n2.ID, ActorID: executor.ID, Accept: true,
	}); engine.KindOf(err) != engine.KindConflict {
		t.Fatalf("second accept: got %v", err)
	}
	history, err := env.Engine.Repo.ListNegotiations(env.Ctx, a.ID)
	if err != nil || len(history) != 2 {
		t.Fatalf("history = %d err=%v", len(history), err)
	}
}

func TestNegotiationValidation(t *testing.T) {
	env, _, executor, a := publicPairEnv(t)
	if _, err := env.Engine.ProposeNegotiation(env.Ctx, engine.NegotiationProposeOptions{
		AssignmentID: a.ID, ActorID: executor.ID, ProposedDate: "10/01/2025",
	}); engine.KindOf(err) != engine.KindValidation {
		t.Fatalf("bad date: got %v", err)
	}
	badTime := "25:99"
	if _, err := env.Engine.ProposeNegotiation(env.Ctx, engine.NegotiationProposeOptions{
		AssignmentID: a.ID, ActorID: executor.ID, ProposedDate: "2025-01-10", ProposedTime: &badTime,
	}); engine.KindOf(err) != engine.KindValidation {
		t.Fatalf("bad time: got %v", err)
	}
	stranger := mustUser(t, env, "stranger", "1990-01-01", false)
	if _, err := env.Engine.ProposeNegotiation(env.Ctx, engine.NegotiationProposeOptions{
		AssignmentID: a.ID, ActorID: stranger.ID, ProposedDate: "2025-01-10",
	}); engine.KindOf(err) != engine.KindForbidden {
		t.Fatalf("stranger propose: got %v", err)
	}
}

func TestRecordExecution(t *testing.T) {
	env, _, executor, a := publicPairEnv(t)

	if _, err := env.Engine.RecordExecution(env.Ctx, engine.ExecutionRecordOptions{
		AssignmentID: a.ID, ActorID: executor.ID, CompletedDate: "2025-01-05", Rating: 6,
	}); engine.KindOf(err) != engine.KindValidation {
		t.Fatalf("rating 6: got %v", err)
	}
	if _, err := env.Engine.RecordExecution(env.Ctx, engine.ExecutionRecordOptions{
		AssignmentID: a.ID, ActorID: executor.ID, CompletedDate: "2025-01-05", Rating: 0,
	}); engine.KindOf(err) != engine.KindValidation {
		t.Fatalf("rating 0: got %v", err)
	}
	if _, err := env.Engine.RecordExecution(env.Ctx, engine.ExecutionRecordOptions{
		AssignmentID: a.ID, ActorID: executor.ID, CompletedDate: "2025-01-05", Rating: -1,
	}); engine.KindOf(err) != engine.KindValidation {
		t.Fatalf("rating -1: got %v", err)
	}

	exec, err := env.Engine.RecordExecution(env.Ctx, engine.ExecutionRecordOptions{
		AssignmentID:      a.ID,
		ActorID:           executor.ID,
		CompletedDate:     "2025-01-05",
		Rating:            4,
		CommentByExecutor: "done early",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := env.Engine.Repo.GetAssignment(env.Ctx, a.ID)
	if err != nil || !got.IsCompleted {
		t.Fatalf("assignment not completed: %+v err=%v", got, err)
	}
	// execution is 1:1 per assignment
	if _, err := env.Engine.RecordExecution(env.Ctx, engine.ExecutionRecordOptions{
		AssignmentID: a.ID, ActorID: executor.ID, CompletedDate: "2025-01-06", Rating: 5,
	}); engine.KindOf(err) != engine.KindConflict {
		t.Fatalf("duplicate execution: got %v", err)
	}
	// rejecting a completed assignment is a conflict
	if _, err := env.Engine.RejectAssignment(env.Ctx, a.ID, executor.ID); engine.KindOf(err) != engine.KindConflict {
		t.Fatalf("reject completed: got %v", err)
	}
	stored, err := env.Engine.Repo.GetExecutionByAssignment(env.Ctx, a.ID)
	if err != nil || stored.ID != exec.ID || stored.Rating != 4 {
		t.Fatalf("stored execution: %+v err=%v", stored, err)
	}
}

func TestRejectAfterRejectionIsTerminal(t *testing.T) {
	env, _, executor, a := publicPairEnv(t)
	if _, err := env.Engine.RejectAssignment(env.Ctx, a.ID, executor.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	// a rejected assignment can no longer be completed
	if _, err := env.Engine.RecordExecution(env.Ctx, engine.ExecutionRecordOptions{
		AssignmentID: a.ID, ActorID: executor.ID, CompletedDate: "2025-01-05", Rating: 3,
	}); engine.KindOf(err) != engine.KindConflict {
		t.Fatalf("execute rejected: got %v", err)
	}
}
