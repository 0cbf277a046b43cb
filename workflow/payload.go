package workflow

import (
	"strings"
	"time"
)

// Payload carries the action-specific inputs of a workflow request.
// Fields an action does not use are ignored.
type Payload struct {
	Notes string `json:"notes,omitempty"`
	// Reason is the free-text reason for flag, and an optional reason for other actions
	Reason             string          `json:"reason,omitempty"`
	RejectionReason    RejectionReason `json:"rejection_reason,omitempty"`
	PublishImmediately bool            `json:"publish_immediately,omitempty"`
	Priority           Priority        `json:"priority,omitempty"`
	IsFeatured         *bool           `json:"is_featured,omitempty"`
	IsUrgent           *bool           `json:"is_urgent,omitempty"`
	// At is the instant the automation scheduler scanned at. Only honoured for
	// the system actor; eligibility dates are checked against it instead of the clock.
	At time.Time `json:"-"`
}

// Validate checks the action-specific requirements of p against post at time now.
// It normalizes enumerated fields in place.
func (p *Payload) Validate(action Action, post *JobPost, now time.Time) error {
	switch action {
	case ActionReject:
		if strings.TrimSpace(string(p.RejectionReason)) == "" {
			return validationError(action, post, "rejection_reason is required")
		}
		reason, err := ParseRejectionReason(string(p.RejectionReason))
		if err != nil {
			return validationError(action, post, err.Error())
		}
		p.RejectionReason = reason
		if reason == RejectionOther && strings.TrimSpace(p.Notes) == "" {
			return validationError(action, post, "notes are required when rejection_reason is other")
		}

	case ActionFlag:
		p.Reason = strings.TrimSpace(p.Reason)
		if p.Reason == "" {
			return validationError(action, post, "flag reason is required")
		}

	case ActionPublish:
		if p.Priority != "" {
			priority, err := ParsePriority(string(p.Priority))
			if err != nil {
				return validationError(action, post, err.Error())
			}
			p.Priority = priority
		}

	case ActionAutoPublish:
		if post.ScheduledPublishDate == nil {
			return validationError(action, post, "job post has no scheduled publish date")
		}
		if post.ScheduledPublishDate.After(now) {
			return validationError(action, post, "scheduled publish date "+post.ScheduledPublishDate.UTC().Format(time.RFC3339)+" has not been reached")
		}
		if post.PublishedAt != nil {
			return validationError(action, post, "job post was published before; only an admin may publish it again")
		}
	}
	return nil
}

// asOf is the instant date-based eligibility is judged at
func (p *Payload) asOf(actor Actor, now time.Time) time.Time {
	if actor.IsSystem() && !p.At.IsZero() {
		return p.At.UTC()
	}
	return now
}

// reason is the value recorded in the audit entry's reason column
func (p *Payload) reason(action Action) string {
	if action == ActionReject {
		return string(p.RejectionReason)
	}
	return p.Reason
}
