// Package errors is hireflow's error vocabulary: github.com/cockroachdb/errors
// for wrapping, stacks and hints, plus the sentinels the workflow engine and
// both stores classify failures with.
//
//	post, err := store.GetJobPost(ctx, id)
//	if errors.IsNotFoundError(err) {
//	    return workflow.NotFound(id)
//	}
//	return errors.Wrapf(err, "load job post %s", id)
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	New     = crdb.New
	Newf    = crdb.Newf
	Wrap    = crdb.Wrap
	Wrapf   = crdb.Wrapf
	Mark    = crdb.Mark
	Is      = crdb.Is
	As      = crdb.As
	Unwrap  = crdb.Unwrap
	Combine = crdb.CombineErrors
)

// Hints are shown to CLI users under the error; details stay in logs.
var (
	WithHint         = crdb.WithHint
	WithHintf        = crdb.WithHintf
	WithDetail       = crdb.WithDetail
	GetAllHints      = crdb.GetAllHints
	GetAllDetails    = crdb.GetAllDetails
	FlattenHints     = crdb.FlattenHints
	GetStack         = crdb.GetReportableStackTrace
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinels. Stores and the engine wrap these, so callers test with Is.
var (
	ErrNotFound           = New("not found")
	ErrInvalidRequest     = New("invalid request")
	ErrUnauthorized       = New("unauthorized")
	ErrForbidden          = New("forbidden")
	ErrConflict           = New("job post changed concurrently")
	ErrInvalidTransition  = New("invalid transition")
	ErrServiceUnavailable = New("service unavailable")
)

func IsNotFoundError(err error) bool       { return err != nil && Is(err, ErrNotFound) }
func IsInvalidRequestError(err error) bool { return err != nil && Is(err, ErrInvalidRequest) }
func IsConflictError(err error) bool       { return err != nil && Is(err, ErrConflict) }
func IsForbiddenError(err error) bool      { return err != nil && Is(err, ErrForbidden) }
func IsServiceUnavailableError(err error) bool {
	return err != nil && Is(err, ErrServiceUnavailable)
}

// NewNotFoundError marks a formatted message as ErrNotFound
func NewNotFoundError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrNotFound)
}

// NewInvalidRequestError marks a formatted message as ErrInvalidRequest
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidRequest)
}

// NewConflictError marks a formatted message as ErrConflict
func NewConflictError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrConflict)
}
