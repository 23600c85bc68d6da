package repo

import (
	"context"
	"database/sql"
	"strings"

	"wishline/internal/domain"
)

const assignmentCols = `id,period_id,wish_id,assigned_to,assigned_at,due_date,is_completed,is_rejected`

func scanAssignment(scan func(...any) error) (domain.Assignment, error) {
	var a domain.Assignment
	err := scan(&a.ID, &a.PeriodID, &a.WishID, &a.AssignedTo, &a.AssignedAt, &a.DueDate, &a.IsCompleted, &a.IsRejected)
	return a, err
}

func (r Repo) InsertAssignment(ctx context.Context, tx *sql.Tx, a domain.Assignment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO assignments(id,period_id,wish_id,assigned_to,assigned_at,due_date,is_completed,is_rejected) VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.PeriodID, a.WishID, a.AssignedTo, a.AssignedAt, a.DueDate, a.IsCompleted, a.IsRejected)
	return err
}

func (r Repo) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+assignmentCols+` FROM assignments WHERE id=?`, id)
	a, err := scanAssignment(row.Scan)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) GetAssignmentTx(ctx context.Context, tx *sql.Tx, id string) (domain.Assignment, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+assignmentCols+` FROM assignments WHERE id=?`, id)
	a, err := scanAssignment(row.Scan)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

type AssignmentFilters struct {
	AssignedTo string
	OwnerID    string
	PeriodID   string
	Completed  *bool
	Rejected   *bool
	Limit      int
}

func (r Repo) ListAssignments(ctx context.Context, f AssignmentFilters) ([]domain.Assignment, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.AssignedTo != "" {
		clauses = append(clauses, "a.assigned_to=?")
		args = append(args, f.AssignedTo)
	}
	if f.OwnerID != "" {
		clauses = append(clauses, "w.user_id=?")
		args = append(args, f.OwnerID)
	}
	if f.PeriodID != "" {
		clauses = append(clauses, "a.period_id=?")
		args = append(args, f.PeriodID)
	}
	if f.Completed != nil {
		clauses = append(clauses, "a.is_completed=?")
		args = append(args, *f.Completed)
	}
	if f.Rejected != nil {
		clauses = append(clauses, "a.is_rejected=?")
		args = append(args, *f.Rejected)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT a.id,a.period_id,a.wish_id,a.assigned_to,a.assigned_at,a.due_date,a.is_completed,a.is_rejected
FROM assignments a JOIN wishes w ON w.id=a.wish_id ` + where + ` ORDER BY a.assigned_at DESC, a.id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// MarkAssignmentRejected flips is_rejected on an open assignment. Returns
// false when the assignment was already completed or rejected.
func (r Repo) MarkAssignmentRejected(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE assignments SET is_rejected=1 WHERE id=? AND is_rejected=0 AND is_completed=0`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkAssignmentCompleted flips is_completed on an open assignment. Returns
// false when the assignment was already completed or rejected.
func (r Repo) MarkAssignmentCompleted(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE assignments SET is_completed=1 WHERE id=? AND is_completed=0 AND is_rejected=0`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const negotiationCols = `id,assignment_id,proposed_by,proposed_date,proposed_time,message,status,response_message,created_at,updated_at`

func scanNegotiation(scan func(...any) error) (domain.Negotiation, error) {
	var n domain.Negotiation
	var pt, msg, resp sql.NullString
	err := scan(&n.ID, &n.AssignmentID, &n.ProposedBy, &n.ProposedDate, &pt, &msg, &n.Status, &resp, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return n, err
	}
	if pt.Valid {
		n.ProposedTime = &pt.String
	}
	if msg.Valid {
		n.Message = msg.String
	}
	if resp.Valid {
		n.ResponseMessage = resp.String
	}
	return n, nil
}

func (r Repo) InsertNegotiation(ctx context.Context, tx *sql.Tx, n domain.Negotiation) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO negotiations(id,assignment_id,proposed_by,proposed_date,proposed_time,message,status,response_message,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		n.ID, n.AssignmentID, n.ProposedBy, n.ProposedDate, nullableStringPtr(n.ProposedTime), nullable(n.Message), n.Status, nullable(n.ResponseMessage), n.CreatedAt, n.UpdatedAt)
	return err
}

func (r Repo) GetNegotiationTx(ctx context.Context, tx *sql.Tx, id string) (domain.Negotiation, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+negotiationCols+` FROM negotiations WHERE id=?`, id)
	n, err := scanNegotiation(row.Scan)
	if err == sql.ErrNoRows {
		return n, ErrNotFound
	}
	return n, err
}

func (r Repo) ListNegotiations(ctx context.Context, assignmentID string) ([]domain.Negotiation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+negotiationCols+` FROM negotiations WHERE assignment_id=? ORDER BY created_at DESC, id DESC`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Negotiation
	for rows.Next() {
		n, err := scanNegotiation(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// ResolveNegotiation transitions a pending negotiation to its terminal
// status. Returns false when the negotiation was no longer pending.
func (r Repo) ResolveNegotiation(ctx context.Context, tx *sql.Tx, id, status, responseMessage, updatedAt string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE negotiations SET status=?, response_message=?, updated_at=? WHERE id=? AND status='pending'`,
		status, nullable(responseMessage), updatedAt, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// HasAcceptedNegotiation reports whether the assignment already has an
// accepted negotiation governing its schedule.
func (r Repo) HasAcceptedNegotiation(ctx context.Context, tx *sql.Tx, assignmentID string) (bool, error) {
	row := tx.QueryRowContext(ctx, `SELECT 1 FROM negotiations WHERE assignment_id=? AND status='accepted' LIMIT 1`, assignmentID)
	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

const executionCols = `id,assignment_id,completed_date,completed_time,rating,comment_by_creator,comment_by_executor,created_at`

func scanExecution(scan func(...any) error) (domain.Execution, error) {
	var e domain.Execution
	var ct, cc, ce sql.NullString
	err := scan(&e.ID, &e.AssignmentID, &e.CompletedDate, &ct, &e.Rating, &cc, &ce, &e.CreatedAt)
	if err != nil {
		return e, err
	}
	if ct.Valid {
		e.CompletedTime = &ct.String
	}
	if cc.Valid {
		e.CommentByCreator = cc.String
	}
	if ce.Valid {
		e.CommentByExecutor = ce.String
	}
	return e, nil
}

func (r Repo) InsertExecution(ctx context.Context, tx *sql.Tx, e domain.Execution) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO executions(id,assignment_id,completed_date,completed_time,rating,comment_by_creator,comment_by_executor,created_at)
VALUES (?,?,?,?,?,?,?,?)`,
		e.ID, e.AssignmentID, e.CompletedDate, nullableStringPtr(e.CompletedTime), e.Rating, nullable(e.CommentByCreator), nullable(e.CommentByExecutor), e.CreatedAt)
	return err
}

func (r Repo) GetExecutionByAssignmentTx(ctx context.Context, tx *sql.Tx, assignmentID string) (domain.Execution, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+executionCols+` FROM executions WHERE assignment_id=?`, assignmentID)
	e, err := scanExecution(row.Scan)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	return e, err
}

func (r Repo) GetExecutionByAssignment(ctx context.Context, assignmentID string) (domain.Execution, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+executionCols+` FROM executions WHERE assignment_id=?`, assignmentID)
	e, err := scanExecution(row.Scan)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	return e, err
}
