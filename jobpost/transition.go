package jobpost

import (
	"context"
	"database/sql"

	"github.com/teranos/hireflow/db"
	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/logger"
	"github.com/teranos/hireflow/workflow"
)

const commitUpdate = `
	UPDATE job_posts SET
		status = ?, priority = ?,
		is_featured = ?, is_urgent = ?, is_flagged = ?,
		submitted_for_approval_at = ?, submitted_for_approval_by = ?,
		approved_at = ?, approved_by = ?,
		rejected_at = ?, rejected_by = ?,
		published_at = ?, published_by = ?,
		unpublished_at = ?, unpublished_by = ?,
		flagged_at = ?, flagged_by = ?,
		rejection_reason = ?, rejection_notes = ?,
		flagged_reason = ?, pre_flag_status = ?,
		updated_at = ?
	WHERE id = ? AND status = ?`

const commitInsertLog = `
	INSERT INTO workflow_log (
		id, job_post_id, action, from_status, to_status,
		performed_by, actor_role, reason, notes, automated, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CommitTransition writes the workflow-owned columns of next only if the stored
// status still equals expected, and appends entry in the same transaction.
func (s *Store) CommitTransition(ctx context.Context, expected workflow.Status, next *workflow.JobPost, entry *workflow.LogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(db.Transient(err), "begin transition tx")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, commitUpdate,
		string(next.Status), string(next.Priority),
		next.IsFeatured, next.IsUrgent, next.IsFlagged,
		nullTime(next.SubmittedForApprovalAt), nullString(next.SubmittedForApprovalBy),
		nullTime(next.ApprovedAt), nullString(next.ApprovedBy),
		nullTime(next.RejectedAt), nullString(next.RejectedBy),
		nullTime(next.PublishedAt), nullString(next.PublishedBy),
		nullTime(next.UnpublishedAt), nullString(next.UnpublishedBy),
		nullTime(next.FlaggedAt), nullString(next.FlaggedBy),
		nullString(string(next.RejectionReason)), nullString(next.RejectionNotes),
		nullString(next.FlaggedReason), nullString(string(next.PreFlagStatus)),
		formatTime(next.UpdatedAt),
		next.ID, string(expected),
	)
	if err != nil {
		return errors.Wrapf(db.Transient(err), "update job post %s", next.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return s.missedPrecondition(ctx, tx, next.ID, expected)
	}

	res, err = tx.ExecContext(ctx, commitInsertLog,
		entry.ID, entry.JobPostID, string(entry.Action),
		string(entry.FromStatus), string(entry.ToStatus),
		entry.PerformedBy, string(entry.ActorRole),
		entry.Reason, entry.Notes, entry.Automated,
		formatTime(entry.CreatedAt),
	)
	if err != nil {
		return errors.Wrapf(err, "append workflow log for job post %s", next.ID)
	}
	if seq, err := res.LastInsertId(); err == nil {
		entry.Seq = seq
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(db.Transient(err), "commit transition of job post %s", next.ID)
	}

	s.logger.Debugw("Transition committed",
		logger.FieldJobPostID, next.ID,
		logger.FieldFromStatus, expected,
		logger.FieldToStatus, next.Status,
	)
	return nil
}

// missedPrecondition tells a vanished post apart from a lost race
func (s *Store) missedPrecondition(ctx context.Context, tx *sql.Tx, id string, expected workflow.Status) error {
	var current string
	err := tx.QueryRowContext(ctx, `SELECT status FROM job_posts WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.NewNotFoundError("job post %s", id)
	}
	if err != nil {
		return errors.Wrapf(err, "re-read job post %s", id)
	}
	return errors.NewConflictError("job post %s is %s, expected %s", id, current, expected)
}

// ListEligible returns job posts due for the queried automated transition,
// earliest due date first.
func (s *Store) ListEligible(ctx context.Context, q workflow.EligibilityQuery) ([]*workflow.JobPost, error) {
	status, column, extra := workflow.StatusApproved, "scheduled_publish_date", ` AND published_at IS NULL`
	if q.Kind == workflow.EligibleForExpiry {
		status, column, extra = workflow.StatusActive, "expiry_date", ""
	}
	query := `SELECT ` + postColumns + ` FROM job_posts
		WHERE status = ? AND ` + column + ` IS NOT NULL AND ` + column + ` <= ?` + extra + `
		ORDER BY ` + column + `, id
		LIMIT ?`
	return s.queryPosts(ctx, query, string(status), formatTime(q.Now), limitArg(q.Limit))
}

// CountByStatus counts job posts per status
func (s *Store) CountByStatus(ctx context.Context) (map[workflow.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM job_posts GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count job posts")
	}
	defer rows.Close()

	counts := make(map[workflow.Status]int)
	for rows.Next() {
		var raw string
		var n int
		if err := rows.Scan(&raw, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan status count")
		}
		st, err := workflow.ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, errors.Wrap(rows.Err(), "failed to iterate status counts")
}
