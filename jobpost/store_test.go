package jobpost

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/hireflow/errors"
	hftest "github.com/teranos/hireflow/internal/testing"
	"github.com/teranos/hireflow/internal/util"
	"github.com/teranos/hireflow/workflow"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(hftest.CreateTestDB(t), zaptest.NewLogger(t).Sugar())
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	publishAt := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	post := &workflow.JobPost{
		EmployerID:           "emp-1",
		Title:                "Site Reliability Engineer",
		ScheduledPublishDate: &publishAt,
	}
	require.NoError(t, store.Create(ctx, post))
	require.NotEmpty(t, post.ID)

	got, err := store.GetJobPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusDraft, got.Status)
	assert.Equal(t, workflow.PriorityNormal, got.Priority)
	assert.Equal(t, "Site Reliability Engineer", got.Title)
	require.NotNil(t, got.ScheduledPublishDate)
	assert.True(t, publishAt.Equal(*got.ScheduledPublishDate))
	assert.Nil(t, got.ExpiryDate)
	assert.Nil(t, got.PublishedAt)

	t.Run("duplicate id conflicts", func(t *testing.T) {
		dup := &workflow.JobPost{ID: post.ID, EmployerID: "emp-1"}
		err := store.Create(ctx, dup)
		assert.True(t, errors.IsConflictError(err))
	})

	t.Run("only draft posts can be created", func(t *testing.T) {
		err := store.Create(ctx, &workflow.JobPost{EmployerID: "emp-1", Status: workflow.StatusActive})
		assert.True(t, errors.IsInvalidRequestError(err))
	})

	t.Run("missing post", func(t *testing.T) {
		_, err := store.GetJobPost(ctx, "nope")
		assert.True(t, errors.IsNotFoundError(err))
	})
}

func TestGetRejectsUnknownStatus(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	post := &workflow.JobPost{EmployerID: "emp-1"}
	require.NoError(t, store.Create(ctx, post))

	_, err := store.db.Exec(`UPDATE job_posts SET status = 'archived' WHERE id = ?`, post.ID)
	require.NoError(t, err)

	_, err = store.GetJobPost(ctx, post.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job post status")
}

func transitionOf(t *testing.T, store *Store, id string, to workflow.Status, action workflow.Action) (*workflow.JobPost, *workflow.LogEntry) {
	t.Helper()
	cur, err := store.GetJobPost(context.Background(), id)
	require.NoError(t, err)
	next := cur.Clone()
	next.Status = to
	next.UpdatedAt = time.Now()
	entry := &workflow.LogEntry{
		ID:          id + "-" + string(action),
		JobPostID:   id,
		Action:      action,
		FromStatus:  cur.Status,
		ToStatus:    to,
		PerformedBy: "admin-1",
		ActorRole:   workflow.RoleAdmin,
		CreatedAt:   time.Now(),
	}
	return next, entry
}

func TestCommitTransition(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	post := &workflow.JobPost{EmployerID: "emp-1"}
	require.NoError(t, store.Create(ctx, post))

	next, entry := transitionOf(t, store, post.ID, workflow.StatusPendingApproval, workflow.ActionSubmitForApproval)
	next.SubmittedForApprovalAt = util.Ptr(time.Now())
	next.SubmittedForApprovalBy = "emp-1"
	require.NoError(t, store.CommitTransition(ctx, workflow.StatusDraft, next, entry))
	assert.Positive(t, entry.Seq)

	got, err := store.GetJobPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPendingApproval, got.Status)
	assert.Equal(t, "emp-1", got.SubmittedForApprovalBy)
	require.NotNil(t, got.SubmittedForApprovalAt)

	t.Run("stale expected status conflicts and writes nothing", func(t *testing.T) {
		stale, staleEntry := transitionOf(t, store, post.ID, workflow.StatusCancelled, workflow.ActionCancel)
		err := store.CommitTransition(ctx, workflow.StatusDraft, stale, staleEntry)
		require.Error(t, err)
		assert.True(t, errors.IsConflictError(err))

		got, err := store.GetJobPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, workflow.StatusPendingApproval, got.Status)

		history, err := store.ListByJobPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("vanished post is not found", func(t *testing.T) {
		ghost := &workflow.JobPost{ID: "ghost", Status: workflow.StatusActive, Priority: workflow.PriorityNormal}
		err := store.CommitTransition(ctx, workflow.StatusApproved, ghost, &workflow.LogEntry{ID: "g"})
		assert.True(t, errors.IsNotFoundError(err))
	})
}

func TestListEligible(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	mk := func(id string, status workflow.Status, publishAt, expiresAt *time.Time) {
		require.NoError(t, store.Create(ctx, &workflow.JobPost{
			ID: id, EmployerID: "emp-1",
			ScheduledPublishDate: publishAt, ExpiryDate: expiresAt,
		}))
		if status != workflow.StatusDraft {
			_, err := store.db.Exec(`UPDATE job_posts SET status = ? WHERE id = ?`, string(status), id)
			require.NoError(t, err)
		}
	}
	mk("due-later", workflow.StatusApproved, util.Ptr(now.Add(-time.Minute)), nil)
	mk("due-first", workflow.StatusApproved, util.Ptr(now.Add(-time.Hour)), nil)
	mk("due-now", workflow.StatusApproved, util.Ptr(now), nil)
	mk("future", workflow.StatusApproved, util.Ptr(now.Add(time.Nanosecond)), nil)
	mk("unscheduled", workflow.StatusApproved, nil, nil)
	mk("unpublished", workflow.StatusApproved, util.Ptr(now.Add(-2*time.Hour)), nil)
	_, err := store.db.Exec(`UPDATE job_posts SET published_at = ? WHERE id = ?`, formatTime(now.Add(-time.Hour)), "unpublished")
	require.NoError(t, err)
	mk("wrong-status", workflow.StatusDraft, util.Ptr(now.Add(-time.Hour)), nil)
	mk("expired", workflow.StatusActive, nil, util.Ptr(now.Add(-24*time.Hour)))
	mk("running", workflow.StatusActive, nil, util.Ptr(now.Add(24*time.Hour)))

	ids := func(posts []*workflow.JobPost) []string {
		var out []string
		for _, p := range posts {
			out = append(out, p.ID)
		}
		return out
	}

	due, err := store.ListEligible(ctx, workflow.EligibilityQuery{Kind: workflow.EligibleForAutoPublish, Now: now})
	require.NoError(t, err)
	assert.Equal(t, []string{"due-first", "due-later", "due-now"}, ids(due))

	limited, err := store.ListEligible(ctx, workflow.EligibilityQuery{Kind: workflow.EligibleForAutoPublish, Now: now, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"due-first"}, ids(limited))

	expiring, err := store.ListEligible(ctx, workflow.EligibilityQuery{Kind: workflow.EligibleForExpiry, Now: now})
	require.NoError(t, err)
	assert.Equal(t, []string{"expired"}, ids(expiring))

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, counts[workflow.StatusApproved])
	assert.Equal(t, 2, counts[workflow.StatusActive])
	assert.Equal(t, 1, counts[workflow.StatusDraft])

	all, err := store.List(ctx, workflow.ListFilter{Status: workflow.StatusActive})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCommitTransitionSQLMock(t *testing.T) {
	next := &workflow.JobPost{ID: "j1", Status: workflow.StatusActive, Priority: workflow.PriorityNormal, UpdatedAt: time.Now()}
	entry := &workflow.LogEntry{ID: "l1", JobPostID: "j1", Action: workflow.ActionPublish,
		FromStatus: workflow.StatusApproved, ToStatus: workflow.StatusActive, CreatedAt: time.Now()}

	t.Run("lost race maps to conflict", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE job_posts SET`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT status FROM job_posts WHERE id = \?`).
			WithArgs("j1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("rejected"))
		mock.ExpectRollback()

		err = NewStore(db, nil).CommitTransition(context.Background(), workflow.StatusApproved, next, entry)
		require.Error(t, err)
		assert.True(t, errors.IsConflictError(err))
		assert.Contains(t, err.Error(), "is rejected, expected approved")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("log append failure rolls back the status write", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE job_posts SET`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO workflow_log`).WillReturnError(errors.New("disk I/O error"))
		mock.ExpectRollback()

		err = NewStore(db, nil).CommitTransition(context.Background(), workflow.StatusApproved, next, entry)
		require.Error(t, err)
		assert.False(t, errors.IsConflictError(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success records sequence", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE job_posts SET`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO workflow_log`).WillReturnResult(sqlmock.NewResult(42, 1))
		mock.ExpectCommit()

		e := *entry
		require.NoError(t, NewStore(db, nil).CommitTransition(context.Background(), workflow.StatusApproved, next, &e))
		assert.Equal(t, int64(42), e.Seq)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
