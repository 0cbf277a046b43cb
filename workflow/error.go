package workflow

import (
	"fmt"

	"github.com/teranos/hireflow/errors"
)

// Kind classifies workflow failures. Every kind is recoverable by the caller.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindPermissionDenied  Kind = "permission_denied"
	KindInvalidTransition Kind = "invalid_transition"
	KindValidation        Kind = "validation_error"
	KindConflict          Kind = "conflict"
)

var kindSentinels = map[Kind]error{
	KindNotFound:          errors.ErrNotFound,
	KindPermissionDenied:  errors.ErrForbidden,
	KindInvalidTransition: errors.ErrInvalidTransition,
	KindValidation:        errors.ErrInvalidRequest,
	KindConflict:          errors.ErrConflict,
}

// Error is returned by every engine operation that fails for a caller-visible reason.
// It carries enough context to retry or correct the request.
type Error struct {
	Kind           Kind
	JobPostID      string
	Action         Action
	CurrentStatus  Status
	AllowedActions []Action
	Message        string

	cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.JobPostID != "" {
		msg += fmt.Sprintf(" (job_post=%s", e.JobPostID)
		if e.Action != "" {
			msg += fmt.Sprintf(" action=%s", e.Action)
		}
		if e.CurrentStatus != "" {
			msg += fmt.Sprintf(" status=%s", e.CurrentStatus)
		}
		msg += ")"
	}
	return msg
}

// Unwrap exposes the underlying cause, which always wraps the kind's sentinel.
func (e *Error) Unwrap() error {
	return e.cause
}

// UserMessage is the text human-facing surfaces show for this error.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindInvalidTransition:
		return "This action is not available in the job's current state."
	case KindPermissionDenied:
		return "You are not authorized to perform this action on this job."
	case KindConflict:
		return "This job was just updated by someone else, please refresh."
	case KindNotFound:
		return "Job post not found."
	default:
		return e.Message
	}
}

func newError(kind Kind, cause error, action Action, post *JobPost, message string) *Error {
	sentinel := kindSentinels[kind]
	if cause == nil {
		cause = errors.Wrap(sentinel, message)
	} else if !errors.Is(cause, sentinel) {
		cause = errors.Mark(cause, sentinel)
	}
	e := &Error{
		Kind:    kind,
		Action:  action,
		Message: message,
		cause:   cause,
	}
	if post != nil {
		e.JobPostID = post.ID
		e.CurrentStatus = post.Status
	}
	return e
}

func validationError(action Action, post *JobPost, message string) *Error {
	return newError(KindValidation, nil, action, post, message)
}

// KindOf classifies err. It returns "" for infrastructure failures
// (database down, context cancelled) that are not workflow outcomes.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	for _, kind := range []Kind{KindNotFound, KindPermissionDenied, KindInvalidTransition, KindConflict, KindValidation} {
		if errors.Is(err, kindSentinels[kind]) {
			return kind
		}
	}
	return ""
}
