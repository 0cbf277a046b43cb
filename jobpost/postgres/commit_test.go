package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/workflow"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewFromPool(mock, zaptest.NewLogger(t).Sugar()), mock
}

func pausedPost() (*workflow.JobPost, *workflow.LogEntry) {
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	next := &workflow.JobPost{
		ID: "jp-1", EmployerID: "emp-1", Status: workflow.StatusPaused,
		Priority: workflow.PriorityNormal, UpdatedAt: now,
	}
	entry := &workflow.LogEntry{
		ID: "log-1", JobPostID: "jp-1", Action: workflow.ActionPause,
		FromStatus: workflow.StatusActive, ToStatus: workflow.StatusPaused,
		PerformedBy: "emp-1", ActorRole: workflow.RoleEmployer, CreatedAt: now,
	}
	return next, entry
}

var (
	updatePost   = regexp.QuoteMeta(`UPDATE job_posts SET`)
	rereadStatus = regexp.QuoteMeta(`SELECT status FROM job_posts WHERE id = $1`)
	appendLog    = regexp.QuoteMeta(`INSERT INTO workflow_log`)
)

func TestCommitTransitionAppendsLogInSameTx(t *testing.T) {
	s, mock := newMockStore(t)
	next, entry := pausedPost()

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec(updatePost).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(appendLog).
		WithArgs("log-1", "jp-1", "pause", "active", "paused", "emp-1", "employer", "", "", false, entry.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"seq"}).AddRow(int64(42)))
	mock.ExpectCommit()

	require.NoError(t, s.CommitTransition(context.Background(), workflow.StatusActive, next, entry))
	assert.Equal(t, int64(42), entry.Seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitTransitionZeroRowsIsConflict(t *testing.T) {
	s, mock := newMockStore(t)
	next, entry := pausedPost()

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec(updatePost).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(rereadStatus).WithArgs("jp-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("closed"))
	mock.ExpectRollback()

	err := s.CommitTransition(context.Background(), workflow.StatusActive, next, entry)
	require.Error(t, err)
	assert.True(t, errors.IsConflictError(err), "%v", err)
	assert.Contains(t, err.Error(), "is closed, expected active")
	assert.Zero(t, entry.Seq, "no audit entry is written")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitTransitionZeroRowsOnMissingPostIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	next, entry := pausedPost()

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec(updatePost).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(rereadStatus).WithArgs("jp-1").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := s.CommitTransition(context.Background(), workflow.StatusActive, next, entry)
	assert.True(t, errors.IsNotFoundError(err), "%v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitTransitionLogFailureRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	next, entry := pausedPost()

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec(updatePost).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(appendLog).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.CommitTransition(context.Background(), workflow.StatusActive, next, entry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append workflow log")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEligibleQueries(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`scheduled_publish_date <= \$2 AND published_at IS NULL\s+ORDER BY scheduled_publish_date, id LIMIT \$3`).
		WithArgs("approved", now, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`expiry_date <= \$2\s+ORDER BY expiry_date, id$`).
		WithArgs("active", now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	ctx := context.Background()
	due, err := s.ListEligible(ctx, workflow.EligibilityQuery{Kind: workflow.EligibleForAutoPublish, Now: now, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, due)

	expiring, err := s.ListEligible(ctx, workflow.EligibilityQuery{Kind: workflow.EligibleForExpiry, Now: now})
	require.NoError(t, err)
	assert.Empty(t, expiring)
	require.NoError(t, mock.ExpectationsWereMet())
}
