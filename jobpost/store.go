// Package jobpost persists job posts and the workflow audit log in SQLite.
package jobpost

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/hireflow/db"
	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/logger"
	"github.com/teranos/hireflow/workflow"
)

var (
	_ workflow.Store    = (*Store)(nil)
	_ workflow.AuditLog = (*Store)(nil)
)

// TimeLayout is fixed-width so stored timestamps compare correctly as strings.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store handles persistence of job posts and workflow log entries
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewStore creates a job post store over an open, migrated database
func NewStore(db *sql.DB, l *zap.SugaredLogger) *Store {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	return &Store{db: db, logger: logger.AddDBSymbol(l.Named("jobpost"))}
}

const postColumns = `
	id, employer_id, title, status, priority,
	is_featured, is_urgent, is_flagged,
	submitted_for_approval_at, submitted_for_approval_by,
	approved_at, approved_by, rejected_at, rejected_by,
	published_at, published_by, unpublished_at, unpublished_by,
	flagged_at, flagged_by,
	rejection_reason, rejection_notes, flagged_reason, pre_flag_status,
	scheduled_publish_date, expiry_date,
	views_count, applications_count,
	created_at, updated_at`

const logColumns = `
	seq, id, job_post_id, action, from_status, to_status,
	performed_by, actor_role, reason, notes, automated, created_at`

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func parseTime(field, v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "failed to parse %s", field)
	}
	return t.UTC(), nil
}

func parseNullTime(field string, v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := parseTime(field, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*workflow.JobPost, error) {
	var p workflow.JobPost
	var status, priority, createdAt, updatedAt string
	var submittedAt, approvedAt, rejectedAt, publishedAt, unpublishedAt, flaggedAt sql.NullString
	var submittedBy, approvedBy, rejectedBy, publishedBy, unpublishedBy, flaggedBy sql.NullString
	var rejectionReason, rejectionNotes, flaggedReason, preFlag sql.NullString
	var scheduled, expiry sql.NullString

	err := row.Scan(
		&p.ID, &p.EmployerID, &p.Title, &status, &priority,
		&p.IsFeatured, &p.IsUrgent, &p.IsFlagged,
		&submittedAt, &submittedBy,
		&approvedAt, &approvedBy, &rejectedAt, &rejectedBy,
		&publishedAt, &publishedBy, &unpublishedAt, &unpublishedBy,
		&flaggedAt, &flaggedBy,
		&rejectionReason, &rejectionNotes, &flaggedReason, &preFlag,
		&scheduled, &expiry,
		&p.ViewsCount, &p.ApplicationsCount,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Status values outside the enumeration are rejected at this boundary
	if p.Status, err = workflow.ParseStatus(status); err != nil {
		return nil, errors.Wrapf(err, "job post %s", p.ID)
	}
	if p.Priority, err = workflow.ParsePriority(priority); err != nil {
		return nil, errors.Wrapf(err, "job post %s", p.ID)
	}
	if preFlag.Valid && preFlag.String != "" {
		if p.PreFlagStatus, err = workflow.ParseStatus(preFlag.String); err != nil {
			return nil, errors.Wrapf(err, "job post %s pre_flag_status", p.ID)
		}
	}

	p.SubmittedForApprovalBy = submittedBy.String
	p.ApprovedBy = approvedBy.String
	p.RejectedBy = rejectedBy.String
	p.PublishedBy = publishedBy.String
	p.UnpublishedBy = unpublishedBy.String
	p.FlaggedBy = flaggedBy.String
	p.RejectionReason = workflow.RejectionReason(rejectionReason.String)
	p.RejectionNotes = rejectionNotes.String
	p.FlaggedReason = flaggedReason.String

	stamps := []struct {
		field string
		src   sql.NullString
		dst   **time.Time
	}{
		{"submitted_for_approval_at", submittedAt, &p.SubmittedForApprovalAt},
		{"approved_at", approvedAt, &p.ApprovedAt},
		{"rejected_at", rejectedAt, &p.RejectedAt},
		{"published_at", publishedAt, &p.PublishedAt},
		{"unpublished_at", unpublishedAt, &p.UnpublishedAt},
		{"flagged_at", flaggedAt, &p.FlaggedAt},
		{"scheduled_publish_date", scheduled, &p.ScheduledPublishDate},
		{"expiry_date", expiry, &p.ExpiryDate},
	}
	for _, s := range stamps {
		if *s.dst, err = parseNullTime(s.field, s.src); err != nil {
			return nil, errors.Wrapf(err, "job post %s", p.ID)
		}
	}

	if p.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, errors.Wrapf(err, "job post %s", p.ID)
	}
	if p.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, errors.Wrapf(err, "job post %s", p.ID)
	}
	return &p, nil
}

func scanEntry(row rowScanner) (workflow.LogEntry, error) {
	var e workflow.LogEntry
	var action, from, to, role, createdAt string
	err := row.Scan(
		&e.Seq, &e.ID, &e.JobPostID, &action, &from, &to,
		&e.PerformedBy, &role, &e.Reason, &e.Notes, &e.Automated, &createdAt,
	)
	if err != nil {
		return e, err
	}
	e.Action = workflow.Action(action)
	e.ActorRole = workflow.Role(role)
	if e.FromStatus, err = workflow.ParseStatus(from); err != nil {
		return e, errors.Wrapf(err, "log entry %s", e.ID)
	}
	if e.ToStatus, err = workflow.ParseStatus(to); err != nil {
		return e, errors.Wrapf(err, "log entry %s", e.ID)
	}
	if e.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return e, errors.Wrapf(err, "log entry %s", e.ID)
	}
	return e, nil
}

// Create inserts a new job post in Draft. Posts are created by employers
// outside the workflow engine; no audit entry is written.
func (s *Store) Create(ctx context.Context, post *workflow.JobPost) error {
	if err := post.PrepareDraft(time.Now()); err != nil {
		return err
	}

	query := `INSERT INTO job_posts (` + postColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		post.ID, post.EmployerID, post.Title, string(post.Status), string(post.Priority),
		post.IsFeatured, post.IsUrgent, post.IsFlagged,
		nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil,
		nil, nil, nil, nil,
		nullTime(post.ScheduledPublishDate), nullTime(post.ExpiryDate),
		post.ViewsCount, post.ApplicationsCount,
		formatTime(post.CreatedAt), formatTime(post.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errors.NewConflictError("job post %s already exists", post.ID)
		}
		return errors.Wrapf(err, "failed to create job post %s", post.ID)
	}

	s.logger.Debugw("Job post created",
		logger.FieldJobPostID, post.ID,
		logger.FieldEmployerID, post.EmployerID,
	)
	return nil
}

// GetJobPost retrieves a job post by ID
func (s *Store) GetJobPost(ctx context.Context, id string) (*workflow.JobPost, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM job_posts WHERE id = ?`, id)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("job post %s", id)
		}
		return nil, errors.Wrapf(db.Transient(err), "failed to get job post %s", id)
	}
	return post, nil
}

// List returns job posts, most recently updated first
func (s *Store) List(ctx context.Context, f workflow.ListFilter) ([]*workflow.JobPost, error) {
	var where []string
	var args []interface{}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.EmployerID != "" {
		where = append(where, "employer_id = ?")
		args = append(args, f.EmployerID)
	}
	query := `SELECT ` + postColumns + ` FROM job_posts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY updated_at DESC, id LIMIT ?`
	args = append(args, limitArg(f.Limit))

	return s.queryPosts(ctx, query, args...)
}

func (s *Store) queryPosts(ctx context.Context, query string, args ...interface{}) ([]*workflow.JobPost, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query job posts")
	}
	defer rows.Close()

	var posts []*workflow.JobPost
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job post")
		}
		posts = append(posts, p)
	}
	return posts, errors.Wrap(rows.Err(), "failed to iterate job posts")
}

// limitArg maps "no limit" to SQLite's -1
func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
