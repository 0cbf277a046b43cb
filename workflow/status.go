// Package workflow governs how a job post moves from creation through approval,
// publication and closure.
//
// Every status change goes through Engine.Apply: the permission gate is consulted,
// the transition table decides the target status, and the store commits the new
// status together with its audit entry under a compare-and-swap on the old status.
package workflow

import (
	"strings"

	"github.com/teranos/hireflow/errors"
)

// Status is the workflow state of a job post
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusUnderReview     Status = "under_review"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusActive          Status = "active"
	StatusPaused          Status = "paused"
	StatusClosed          Status = "closed"
	StatusExpired         Status = "expired"
	StatusFlagged         Status = "flagged"
	StatusCancelled       Status = "cancelled"
)

var allStatuses = []Status{
	StatusDraft,
	StatusPendingApproval,
	StatusUnderReview,
	StatusApproved,
	StatusRejected,
	StatusActive,
	StatusPaused,
	StatusClosed,
	StatusExpired,
	StatusFlagged,
	StatusCancelled,
}

// AllStatuses returns every status in lifecycle order
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Valid reports whether s is one of the enumerated statuses
func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no action may leave s
func (s Status) IsTerminal() bool {
	return s == StatusCancelled
}

// ParseStatus converts a stored or user-supplied value into a Status.
// Unknown values are rejected so a corrupt row never enters the engine.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", errors.Wrapf(errors.ErrInvalidRequest, "unknown job post status %q", s)
	}
	return st, nil
}
