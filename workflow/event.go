package workflow

import (
	"context"
	"time"
)

// Event is produced for every applied transition
type Event struct {
	ID         string    `json:"id"`
	Action     Action    `json:"action"`
	JobPostID  string    `json:"job_post_id"`
	EmployerID string    `json:"employer_id"`
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	Actor      Actor     `json:"actor"`
	Automated  bool      `json:"automated"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Emitter hands events to downstream delivery. The engine logs emission
// failures and never rolls a transition back because of them.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// EmitterFunc adapts a function to Emitter
type EmitterFunc func(ctx context.Context, event Event) error

// Emit calls f(ctx, event)
func (f EmitterFunc) Emit(ctx context.Context, event Event) error {
	return f(ctx, event)
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, Event) error { return nil }

func eventFor(entry *LogEntry, post *JobPost, actor Actor) Event {
	return Event{
		ID:         entry.ID,
		Action:     entry.Action,
		JobPostID:  entry.JobPostID,
		EmployerID: post.EmployerID,
		FromStatus: entry.FromStatus,
		ToStatus:   entry.ToStatus,
		Actor:      actor,
		Automated:  entry.Automated,
		OccurredAt: entry.CreatedAt,
	}
}
