// Package memory is an in-memory job post store and audit log.
// Safe for concurrent access. Intended for unit tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/workflow"
)

var (
	_ workflow.Store    = (*Store)(nil)
	_ workflow.AuditLog = (*Store)(nil)
)

// Store keeps job posts and workflow log entries in maps guarded by one mutex.
type Store struct {
	mu      sync.RWMutex
	posts   map[string]*workflow.JobPost
	log     []workflow.LogEntry
	nextSeq int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{posts: make(map[string]*workflow.JobPost)}
}

// Create inserts a new Draft job post.
func (m *Store) Create(_ context.Context, post *workflow.JobPost) error {
	if err := post.PrepareDraft(time.Now()); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[post.ID]; ok {
		return errors.NewConflictError("job post %s already exists", post.ID)
	}
	m.posts[post.ID] = post.Clone()
	return nil
}

// Put stores post as-is, bypassing the Draft rule. Tests use it to seed
// posts in arbitrary states.
func (m *Store) Put(post *workflow.JobPost) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[post.ID] = post.Clone()
}

// GetJobPost returns a copy of the stored post.
func (m *Store) GetJobPost(_ context.Context, id string) (*workflow.JobPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, errors.NewNotFoundError("job post %s", id)
	}
	return p.Clone(), nil
}

// CommitTransition replaces the post and appends entry if the stored status equals expected.
func (m *Store) CommitTransition(_ context.Context, expected workflow.Status, next *workflow.JobPost, entry *workflow.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.posts[next.ID]
	if !ok {
		return errors.NewNotFoundError("job post %s", next.ID)
	}
	if cur.Status != expected {
		return errors.NewConflictError("job post %s is %s, expected %s", next.ID, cur.Status, expected)
	}
	updated := next.Clone()
	// Collaborator-owned fields keep their stored values
	updated.Title = cur.Title
	updated.ScheduledPublishDate = cur.ScheduledPublishDate
	updated.ExpiryDate = cur.ExpiryDate
	updated.ViewsCount = cur.ViewsCount
	updated.ApplicationsCount = cur.ApplicationsCount
	m.posts[next.ID] = updated

	m.nextSeq++
	entry.Seq = m.nextSeq
	m.log = append(m.log, *entry)
	return nil
}

// ListEligible returns posts due for the queried automated transition, oldest due first.
func (m *Store) ListEligible(_ context.Context, q workflow.EligibilityQuery) ([]*workflow.JobPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, due := eligibility(q.Kind)
	var out []*workflow.JobPost
	for _, p := range m.posts {
		at := due(p)
		if p.Status == status && at != nil && !at.After(q.Now) {
			if q.Kind == workflow.EligibleForAutoPublish && p.PublishedAt != nil {
				continue
			}
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := due(out[i]), due(out[j])
		if !ai.Equal(*aj) {
			return ai.Before(*aj)
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func eligibility(kind workflow.Eligibility) (workflow.Status, func(*workflow.JobPost) *time.Time) {
	if kind == workflow.EligibleForExpiry {
		return workflow.StatusActive, func(p *workflow.JobPost) *time.Time { return p.ExpiryDate }
	}
	return workflow.StatusApproved, func(p *workflow.JobPost) *time.Time { return p.ScheduledPublishDate }
}

// CountByStatus counts posts per status.
func (m *Store) CountByStatus(_ context.Context) (map[workflow.Status]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[workflow.Status]int)
	for _, p := range m.posts {
		counts[p.Status]++
	}
	return counts, nil
}

// ListByJobPost returns the post's entries in append order.
func (m *Store) ListByJobPost(_ context.Context, jobPostID string) ([]workflow.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []workflow.LogEntry
	for _, e := range m.log {
		if e.JobPostID == jobPostID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListByEmployer returns entries across the employer's posts, newest first.
func (m *Store) ListByEmployer(_ context.Context, employerID string, page workflow.Page) (*workflow.LogPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []workflow.LogEntry
	for i := len(m.log) - 1; i >= 0; i-- {
		e := m.log[i]
		if p, ok := m.posts[e.JobPostID]; ok && p.EmployerID == employerID {
			all = append(all, e)
		}
	}
	lp := &workflow.LogPage{Total: len(all), Limit: page.Limit, Offset: page.Offset}
	if page.Offset < len(all) {
		end := len(all)
		if page.Limit > 0 && page.Offset+page.Limit < end {
			end = page.Offset + page.Limit
		}
		lp.Entries = all[page.Offset:end]
	}
	return lp, nil
}
