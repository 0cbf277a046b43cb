package jobpost

import (
	"context"

	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/workflow"
)

// ListByJobPost returns the full history of one job post in append order
func (s *Store) ListByJobPost(ctx context.Context, jobPostID string) ([]workflow.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+logColumns+` FROM workflow_log WHERE job_post_id = ? ORDER BY seq ASC`, jobPostID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query history of job post %s", jobPostID)
	}
	defer rows.Close()

	var entries []workflow.LogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan log entry")
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "failed to iterate log entries")
}

// ListByEmployer returns one page of history across an employer's job posts, newest first
func (s *Store) ListByEmployer(ctx context.Context, employerID string, page workflow.Page) (*workflow.LogPage, error) {
	lp := &workflow.LogPage{Limit: page.Limit, Offset: page.Offset}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM workflow_log l
		JOIN job_posts p ON p.id = l.job_post_id
		WHERE p.employer_id = ?`, employerID).Scan(&lp.Total)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to count history of employer %s", employerID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.seq, l.id, l.job_post_id, l.action, l.from_status, l.to_status,
		       l.performed_by, l.actor_role, l.reason, l.notes, l.automated, l.created_at
		FROM workflow_log l
		JOIN job_posts p ON p.id = l.job_post_id
		WHERE p.employer_id = ?
		ORDER BY l.seq DESC
		LIMIT ? OFFSET ?`, employerID, limitArg(page.Limit), page.Offset)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query history of employer %s", employerID)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan log entry")
		}
		lp.Entries = append(lp.Entries, e)
	}
	return lp, errors.Wrap(rows.Err(), "failed to iterate log entries")
}
