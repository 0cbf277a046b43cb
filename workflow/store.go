package workflow

import (
	"context"
	"time"
)

// LogEntry is one immutable row of the workflow audit log
type LogEntry struct {
	ID          string    `json:"id"`
	Seq         int64     `json:"seq"`
	JobPostID   string    `json:"job_post_id"`
	Action      Action    `json:"action"`
	FromStatus  Status    `json:"from_status"`
	ToStatus    Status    `json:"to_status"`
	PerformedBy string    `json:"performed_by"`
	ActorRole   Role      `json:"actor_role"`
	Reason      string    `json:"reason,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Automated   bool      `json:"automated"`
	CreatedAt   time.Time `json:"created_at"`
}

// Eligibility selects which automation scan a query serves
type Eligibility int

const (
	// EligibleForAutoPublish is status=approved with scheduled_publish_date <= now,
	// never published before
	EligibleForAutoPublish Eligibility = iota
	// EligibleForExpiry is status=active with expiry_date <= now
	EligibleForExpiry
)

// Action returns the workflow action the automation scheduler applies to matches
func (e Eligibility) Action() Action {
	if e == EligibleForExpiry {
		return ActionExpire
	}
	return ActionAutoPublish
}

// EligibilityQuery asks for job posts due for an automated transition at Now.
type EligibilityQuery struct {
	Kind  Eligibility
	Now   time.Time
	Limit int // 0 means no limit
}

// Page selects a window of a descending history listing
type Page struct {
	Limit  int
	Offset int
}

// LogPage is one page of employer-facing history
type LogPage struct {
	Entries []LogEntry `json:"entries"`
	Total   int        `json:"total"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
}

// ListFilter narrows job post listings. Zero fields match everything.
type ListFilter struct {
	Status     Status
	EmployerID string
	Limit      int
}

// Store persists job posts. CommitTransition is the only write the engine issues.
type Store interface {
	GetJobPost(ctx context.Context, id string) (*JobPost, error)

	// CommitTransition writes next's workflow-owned fields only if the stored status
	// still equals expected, and appends entry in the same unit of work.
	// Returns an error wrapping errors.ErrConflict when the precondition fails and
	// errors.ErrNotFound when the post no longer exists.
	CommitTransition(ctx context.Context, expected Status, next *JobPost, entry *LogEntry) error

	ListEligible(ctx context.Context, q EligibilityQuery) ([]*JobPost, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

// AuditLog reads the append-only workflow log. There is no update or delete.
type AuditLog interface {
	// ListByJobPost returns the full history of one post, oldest first.
	ListByJobPost(ctx context.Context, jobPostID string) ([]LogEntry, error)
	// ListByEmployer returns history across an employer's posts, newest first.
	ListByEmployer(ctx context.Context, employerID string, page Page) (*LogPage, error)
}
