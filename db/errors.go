package db

import (
	"strings"

	"github.com/teranos/hireflow/errors"
)

// ErrDatabaseClosed is returned when a query runs after Close, typically while
// the scheduler is still draining during shutdown.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed matches ErrDatabaseClosed and the driver's own message.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrDatabaseClosed) || strings.Contains(err.Error(), "database is closed")
}

// IsBusy reports lock contention that outlasted SQLiteBusyTimeoutMS.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// Transient marks busy and closed-database failures as ErrServiceUnavailable
// so callers answer "try again" instead of reporting an internal error.
// Other errors, and nil, pass through unchanged.
func Transient(err error) error {
	if IsBusy(err) || IsDatabaseClosed(err) {
		return errors.Mark(err, errors.ErrServiceUnavailable)
	}
	return err
}
