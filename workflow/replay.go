package workflow

import (
	"context"

	"github.com/teranos/hireflow/errors"
)

// Replay reconstructs a job post's status from its audit entries, oldest first,
// starting at Draft. Every entry must continue from the previous one's target
// and be a legal move in t.
func (t *TransitionTable) Replay(entries []LogEntry) (Status, error) {
	status := StatusDraft
	for i, entry := range entries {
		if entry.FromStatus != status {
			return "", errors.Newf("entry %d (%s): from_status %s does not follow %s",
				i, entry.ID, entry.FromStatus, status)
		}
		if !t.Permits(entry.Action, entry.FromStatus, entry.ToStatus) {
			return "", errors.Newf("entry %d (%s): %s from %s to %s is not a legal transition",
				i, entry.ID, entry.Action, entry.FromStatus, entry.ToStatus)
		}
		status = entry.ToStatus
	}
	return status, nil
}

// Replay reconstructs status using the default table
func Replay(entries []LogEntry) (Status, error) {
	return DefaultTable.Replay(entries)
}

// VerifyHistory replays the audit log of a job post and checks it reproduces the
// stored status. It returns the replayed status.
func (e *Engine) VerifyHistory(ctx context.Context, id string) (Status, error) {
	post, err := e.load(ctx, id, "")
	if err != nil {
		return "", err
	}
	entries, err := e.audit.ListByJobPost(ctx, id)
	if err != nil {
		return "", errors.Wrapf(err, "list history of job post %s", id)
	}
	replayed, err := e.table.Replay(entries)
	if err != nil {
		return "", errors.Wrapf(err, "replay job post %s", id)
	}
	if replayed != post.Status {
		return replayed, errors.AssertionFailedf("job post %s: replayed status %s, stored status %s",
			id, replayed, post.Status)
	}
	return replayed, nil
}
