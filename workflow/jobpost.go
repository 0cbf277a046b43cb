package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/teranos/hireflow/errors"
)

// JobPost is a job posting as seen by the workflow engine.
// Status-related fields are written only through Engine.Apply; title, dates and
// counters belong to other collaborators.
type JobPost struct {
	ID         string   `json:"id"`
	EmployerID string   `json:"employer_id"`
	Title      string   `json:"title"`
	Status     Status   `json:"status"`
	Priority   Priority `json:"priority"`

	IsFeatured bool `json:"is_featured"`
	IsUrgent   bool `json:"is_urgent"`
	IsFlagged  bool `json:"is_flagged"`

	SubmittedForApprovalAt *time.Time `json:"submitted_for_approval_at,omitempty"`
	SubmittedForApprovalBy string     `json:"submitted_for_approval_by,omitempty"`
	ApprovedAt             *time.Time `json:"approved_at,omitempty"`
	ApprovedBy             string     `json:"approved_by,omitempty"`
	RejectedAt             *time.Time `json:"rejected_at,omitempty"`
	RejectedBy             string     `json:"rejected_by,omitempty"`
	PublishedAt            *time.Time `json:"published_at,omitempty"`
	PublishedBy            string     `json:"published_by,omitempty"`
	UnpublishedAt          *time.Time `json:"unpublished_at,omitempty"`
	UnpublishedBy          string     `json:"unpublished_by,omitempty"`
	FlaggedAt              *time.Time `json:"flagged_at,omitempty"`
	FlaggedBy              string     `json:"flagged_by,omitempty"`

	RejectionReason RejectionReason `json:"rejection_reason,omitempty"`
	RejectionNotes  string          `json:"rejection_notes,omitempty"`
	FlaggedReason   string          `json:"flagged_reason,omitempty"`
	// PreFlagStatus is the status unflag restores
	PreFlagStatus Status `json:"pre_flag_status,omitempty"`

	ScheduledPublishDate *time.Time `json:"scheduled_publish_date,omitempty"`
	ExpiryDate           *time.Time `json:"expiry_date,omitempty"`

	ViewsCount        int64 `json:"views_count"`
	ApplicationsCount int64 `json:"applications_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy whose time pointers do not alias the original
func (p *JobPost) Clone() *JobPost {
	c := *p
	for _, ts := range []**time.Time{
		&c.SubmittedForApprovalAt, &c.ApprovedAt, &c.RejectedAt, &c.PublishedAt,
		&c.UnpublishedAt, &c.FlaggedAt, &c.ScheduledPublishDate, &c.ExpiryDate,
	} {
		if *ts != nil {
			t := **ts
			*ts = &t
		}
	}
	return &c
}

// PrepareDraft fills defaults for a post about to be created and rejects posts
// that do not start in Draft, the only status creatable outside the engine.
func (p *JobPost) PrepareDraft(now time.Time) error {
	if p.EmployerID == "" {
		return errors.NewInvalidRequestError("job post requires an employer_id")
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
	if p.Status != StatusDraft {
		return errors.NewInvalidRequestError("job posts are created in %s, not %s", StatusDraft, p.Status)
	}
	if p.Priority == "" {
		p.Priority = PriorityNormal
	}
	if _, err := ParsePriority(string(p.Priority)); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now.UTC()
	}
	p.UpdatedAt = p.CreatedAt
	return nil
}

// OwnedBy reports whether the employer with the given id owns the post
func (p *JobPost) OwnedBy(actorID string) bool {
	return actorID != "" && p.EmployerID == actorID
}

// applyEffects stamps the fields an action sets besides status.
func applyEffects(p *JobPost, action Action, from, to Status, actor Actor, payload Payload, now time.Time) {
	stamp := func(at **time.Time, by *string) {
		t := now
		*at = &t
		*by = actor.ID
	}

	switch action {
	case ActionSubmitForApproval:
		stamp(&p.SubmittedForApprovalAt, &p.SubmittedForApprovalBy)
	case ActionApprove:
		stamp(&p.ApprovedAt, &p.ApprovedBy)
		p.RejectionReason = ""
		p.RejectionNotes = ""
		if to == StatusActive {
			stamp(&p.PublishedAt, &p.PublishedBy)
		}
	case ActionReject:
		stamp(&p.RejectedAt, &p.RejectedBy)
		p.RejectionReason = payload.RejectionReason
		p.RejectionNotes = payload.Notes
	case ActionPublish, ActionAutoPublish:
		stamp(&p.PublishedAt, &p.PublishedBy)
		if payload.Priority != "" {
			p.Priority = payload.Priority
		}
		if payload.IsFeatured != nil {
			p.IsFeatured = *payload.IsFeatured
		}
		if payload.IsUrgent != nil {
			p.IsUrgent = *payload.IsUrgent
		}
	case ActionUnpublish:
		stamp(&p.UnpublishedAt, &p.UnpublishedBy)
	case ActionFlag:
		stamp(&p.FlaggedAt, &p.FlaggedBy)
		p.IsFlagged = true
		p.FlaggedReason = payload.Reason
		p.PreFlagStatus = from
	case ActionUnflag:
		p.IsFlagged = false
		p.PreFlagStatus = ""
	case ActionCancel:
		p.IsFlagged = false
		p.PreFlagStatus = ""
	}

	p.Status = to
	p.UpdatedAt = now
}
