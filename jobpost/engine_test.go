package jobpost

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	hftest "github.com/teranos/hireflow/internal/testing"
	"github.com/teranos/hireflow/workflow"
)

// barrierStore makes n concurrent readers observe the same row before any commits
type barrierStore struct {
	*Store
	wg sync.WaitGroup
}

func (b *barrierStore) GetJobPost(ctx context.Context, id string) (*workflow.JobPost, error) {
	p, err := b.Store.GetJobPost(ctx, id)
	b.wg.Done()
	b.wg.Wait()
	return p, err
}

func TestEngineOnSQLiteConcurrentCAS(t *testing.T) {
	ctx := context.Background()
	store := NewStore(hftest.CreateTestFileDB(t), zaptest.NewLogger(t).Sugar())

	post := &workflow.JobPost{EmployerID: "emp-1", Title: "Platform Engineer"}
	require.NoError(t, store.Create(ctx, post))
	_, err := store.db.Exec(`UPDATE job_posts SET status = 'approved' WHERE id = ?`, post.ID)
	require.NoError(t, err)

	racing := &barrierStore{Store: store}
	racing.wg.Add(2)
	engine := workflow.NewEngine(racing, store, workflow.WithLogger(zaptest.NewLogger(t).Sugar()))
	admin := workflow.Actor{ID: "admin-1", Role: workflow.RoleAdmin}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = engine.Apply(ctx, post.ID, workflow.ActionPublish, admin, workflow.Payload{})
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = engine.Apply(ctx, post.ID, workflow.ActionReject, admin,
			workflow.Payload{RejectionReason: workflow.RejectionDuplicatePosting})
	}()
	wg.Wait()

	var winner workflow.Status
	switch {
	case errs[0] == nil && workflow.KindOf(errs[1]) == workflow.KindConflict:
		winner = workflow.StatusActive
	case errs[1] == nil && workflow.KindOf(errs[0]) == workflow.KindConflict:
		winner = workflow.StatusRejected
	default:
		t.Fatalf("want exactly one success and one conflict, got %v / %v", errs[0], errs[1])
	}

	got, err := store.GetJobPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, winner, got.Status)

	history, err := store.ListByJobPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, winner, history[0].ToStatus)
}

func TestEngineOnSQLiteAuditReplay(t *testing.T) {
	ctx := context.Background()
	store := NewStore(hftest.CreateTestDB(t), zaptest.NewLogger(t).Sugar())
	engine := workflow.NewEngine(store, store, workflow.WithLogger(zaptest.NewLogger(t).Sugar()))

	employer := workflow.Actor{ID: "emp-1", Role: workflow.RoleEmployer}
	admin := workflow.Actor{ID: "admin-1", Role: workflow.RoleSuperAdmin}

	post := &workflow.JobPost{EmployerID: employer.ID, Title: "Data Analyst"}
	require.NoError(t, store.Create(ctx, post))

	steps := []struct {
		action  workflow.Action
		actor   workflow.Actor
		payload workflow.Payload
	}{
		{workflow.ActionSubmitForApproval, employer, workflow.Payload{}},
		{workflow.ActionBeginReview, admin, workflow.Payload{}},
		{workflow.ActionApprove, admin, workflow.Payload{Notes: "looks good"}},
		{workflow.ActionPublish, admin, workflow.Payload{Priority: workflow.PriorityHigh}},
		{workflow.ActionPause, employer, workflow.Payload{}},
		{workflow.ActionResume, employer, workflow.Payload{}},
		{workflow.ActionFlag, admin, workflow.Payload{Reason: "reported by seekers"}},
		{workflow.ActionUnflag, admin, workflow.Payload{}},
		{workflow.ActionClose, employer, workflow.Payload{}},
		{workflow.ActionReopen, employer, workflow.Payload{}},
	}
	for _, s := range steps {
		_, err := engine.Apply(ctx, post.ID, s.action, s.actor, s.payload)
		require.NoError(t, err, string(s.action))
		// a rejected request in between must not disturb the log
		_, err = engine.Apply(ctx, post.ID, workflow.ActionSubmitForApproval, employer, workflow.Payload{})
		require.Error(t, err)
	}

	replayed, err := engine.VerifyHistory(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusActive, replayed)

	got, err := store.GetJobPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.PriorityHigh, got.Priority)
	assert.False(t, got.IsFlagged)
	assert.Equal(t, "reported by seekers", got.FlaggedReason)

	page, err := engine.EmployerHistory(ctx, employer.ID, employer, workflow.Page{Limit: 3, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, len(steps), page.Total)
	require.Len(t, page.Entries, 3)
	assert.Equal(t, workflow.ActionClose, page.Entries[0].Action)

	history, err := engine.History(ctx, post.ID, admin)
	require.NoError(t, err)
	for i := 1; i < len(history); i++ {
		assert.Greater(t, history[i].Seq, history[i-1].Seq)
		assert.False(t, history[i].CreatedAt.Before(history[i-1].CreatedAt))
	}
}
