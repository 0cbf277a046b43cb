package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/logger"
)

// Default bulk limits
const (
	DefaultBulkMaxItems    = 500
	DefaultBulkConcurrency = 8
)

// Result describes an applied transition
type Result struct {
	JobPostID string    `json:"job_post_id"`
	Action    Action    `json:"action"`
	From      Status    `json:"from_status"`
	To        Status    `json:"to_status"`
	Post      *JobPost  `json:"job_post"`
	Entry     *LogEntry `json:"log_entry"`
}

// Engine orchestrates workflow actions: permission, transition, payload
// validation, conditional commit with audit entry, then event emission.
// It holds no per-post state; concurrent calls are safe.
type Engine struct {
	store   Store
	audit   AuditLog
	table   *TransitionTable
	gate    *Gate
	emitter Emitter
	now     func() time.Time

	logger   *zap.SugaredLogger
	soLog    *zap.SugaredLogger // applied transitions
	actorLog *zap.SugaredLogger // access-denial telemetry

	bulkMaxItems    int
	bulkConcurrency int

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	in             instruments
}

// Option configures an Engine
type Option func(*Engine)

// WithEmitter sets the event emitter
func WithEmitter(em Emitter) Option { return func(e *Engine) { e.emitter = em } }

// WithClock overrides time.Now, for tests and replays
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithLogger sets the engine's logger
func WithLogger(l *zap.SugaredLogger) Option { return func(e *Engine) { e.logger = l } }

// WithBulkLimits bounds bulk requests. Non-positive values keep the defaults.
func WithBulkLimits(maxItems, concurrency int) Option {
	return func(e *Engine) {
		if maxItems > 0 {
			e.bulkMaxItems = maxItems
		}
		if concurrency > 0 {
			e.bulkConcurrency = concurrency
		}
	}
}

// WithTelemetry sets the otel providers; nil keeps the globals
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(e *Engine) {
		e.tracerProvider = tp
		e.meterProvider = mp
	}
}

// NewEngine creates an engine over the given store and audit log.
func NewEngine(store Store, audit AuditLog, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		audit:           audit,
		table:           DefaultTable,
		gate:            NewGate(),
		emitter:         nopEmitter{},
		now:             time.Now,
		logger:          logger.Logger,
		bulkMaxItems:    DefaultBulkMaxItems,
		bulkConcurrency: DefaultBulkConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop().Sugar()
	}
	e.logger = e.logger.Named("workflow")
	e.soLog = logger.AddTransitionSymbol(e.logger)
	e.actorLog = logger.AddActorSymbol(e.logger)
	e.in = newInstruments(e.tracerProvider, e.meterProvider)
	return e
}

// Table returns the engine's transition table
func (e *Engine) Table() *TransitionTable { return e.table }

// Apply performs action on the job post with the given id on behalf of actor.
//
// Checks run in order: existence, permission, transition, payload. A denied or
// invalid request changes nothing and writes no audit entry. The status write and
// the audit append commit together only if the status is unchanged since it was
// read; otherwise the caller gets a Conflict and should re-read before retrying.
func (e *Engine) Apply(ctx context.Context, id string, action Action, actor Actor, payload Payload) (*Result, error) {
	ctx, span := e.in.tracer.Start(ctx, "workflow.Apply", trace.WithAttributes(
		attribute.String("job_post.id", id),
		attribute.String("workflow.action", string(action)),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer span.End()

	res, err := e.apply(ctx, id, action, actor, payload)
	if err != nil {
		span.SetStatus(codes.Error, string(KindOf(err)))
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("workflow.from", string(res.From)),
		attribute.String("workflow.to", string(res.To)),
	)
	return res, nil
}

func (e *Engine) apply(ctx context.Context, id string, action Action, actor Actor, payload Payload) (*Result, error) {
	if !action.Valid() {
		return nil, newError(KindValidation, nil, action, nil, "unknown action "+string(action))
	}

	post, err := e.load(ctx, id, action)
	if err != nil {
		return nil, err
	}

	if d := e.gate.Authorize(actor, post, action); !d.Allowed {
		e.denied(ctx, post, action, actor, d)
		return nil, newError(KindPermissionDenied, nil, action, post, d.Reason)
	}

	from := post.Status
	to, ok := e.table.Next(action, post, payload)
	if !ok {
		werr := newError(KindInvalidTransition, nil, action, post,
			string(action)+" is not available from "+string(from)+describeSources(e.table.sources(action)))
		werr.AllowedActions = e.allowedFor(actor, post)
		return nil, werr
	}

	now := e.now().UTC()
	if err := payload.Validate(action, post, payload.asOf(actor, now)); err != nil {
		return nil, err
	}

	next := post.Clone()
	applyEffects(next, action, from, to, actor, payload, now)

	entry := &LogEntry{
		ID:          uuid.NewString(),
		JobPostID:   post.ID,
		Action:      action,
		FromStatus:  from,
		ToStatus:    to,
		PerformedBy: actor.ID,
		ActorRole:   actor.Role,
		Reason:      payload.reason(action),
		Notes:       payload.Notes,
		Automated:   actor.IsSystem(),
		CreatedAt:   now,
	}

	if err := e.store.CommitTransition(ctx, from, next, entry); err != nil {
		switch {
		case errors.IsConflictError(err):
			e.in.count(ctx, e.in.conflicts, action, actor.Role)
			e.logger.Debugw("Transition lost compare-and-swap race",
				logger.FieldJobPostID, post.ID,
				logger.FieldAction, action,
				logger.FieldFromStatus, from,
			)
			return nil, newError(KindConflict, err, action, post, "job post was modified concurrently")
		case errors.IsNotFoundError(err):
			return nil, newError(KindNotFound, err, action, post, "job post no longer exists")
		}
		return nil, errors.Wrapf(err, "commit %s on job post %s", action, post.ID)
	}

	e.in.count(ctx, e.in.transitions, action, actor.Role)
	e.soLog.Infow("Transition applied",
		logger.FieldJobPostID, post.ID,
		logger.FieldAction, action,
		logger.FieldFromStatus, from,
		logger.FieldToStatus, to,
		logger.FieldActorID, actor.ID,
		"automated", entry.Automated,
	)

	if err := e.emitter.Emit(ctx, eventFor(entry, next, actor)); err != nil {
		// The transition has committed; delivery is the emitter's concern
		e.logger.Warnw("Failed to emit workflow event",
			logger.FieldJobPostID, post.ID,
			logger.FieldAction, action,
			logger.FieldError, err,
		)
	}

	return &Result{
		JobPostID: post.ID,
		Action:    action,
		From:      from,
		To:        to,
		Post:      next,
		Entry:     entry,
	}, nil
}

func describeSources(from []Status) string {
	if len(from) == 0 {
		return ""
	}
	names := make([]string, len(from))
	for i, s := range from {
		names[i] = string(s)
	}
	return "; it applies from " + strings.Join(names, ", ")
}

func (e *Engine) load(ctx context.Context, id string, action Action) (*JobPost, error) {
	post, err := e.store.GetJobPost(ctx, id)
	if err != nil {
		if errors.IsNotFoundError(err) {
			werr := newError(KindNotFound, err, action, nil, "job post not found")
			werr.JobPostID = id
			return nil, werr
		}
		return nil, errors.Wrapf(err, "load job post %s", id)
	}
	return post, nil
}

func (e *Engine) denied(ctx context.Context, post *JobPost, action Action, actor Actor, d Decision) {
	e.in.count(ctx, e.in.denials, action, actor.Role)
	e.actorLog.Warnw("Workflow action denied",
		logger.FieldJobPostID, post.ID,
		logger.FieldAction, action,
		logger.FieldActorID, actor.ID,
		logger.FieldRole, actor.Role,
		logger.FieldReason, d.Reason,
	)
}

// allowedFor lists actions that are both legal from post's status and permitted for actor
func (e *Engine) allowedFor(actor Actor, post *JobPost) []Action {
	var out []Action
	for _, a := range e.table.AvailableActions(post.Status) {
		if e.gate.Authorize(actor, post, a).Allowed {
			out = append(out, a)
		}
	}
	return out
}

// AvailableActions lists what actor may do to the post right now.
func (e *Engine) AvailableActions(ctx context.Context, id string, actor Actor) ([]Action, error) {
	post, err := e.load(ctx, id, "")
	if err != nil {
		return nil, err
	}
	if d := e.gate.AuthorizeView(actor, post); !d.Allowed {
		return nil, newError(KindPermissionDenied, nil, "", post, d.Reason)
	}
	return e.allowedFor(actor, post), nil
}

// GetJobPost returns the post if actor may view it.
func (e *Engine) GetJobPost(ctx context.Context, id string, actor Actor) (*JobPost, error) {
	post, err := e.load(ctx, id, "")
	if err != nil {
		return nil, err
	}
	if d := e.gate.AuthorizeView(actor, post); !d.Allowed {
		return nil, newError(KindPermissionDenied, nil, "", post, d.Reason)
	}
	return post, nil
}

// History returns the ordered audit log of one job post.
func (e *Engine) History(ctx context.Context, id string, actor Actor) ([]LogEntry, error) {
	post, err := e.GetJobPost(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	entries, err := e.audit.ListByJobPost(ctx, post.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "list history of job post %s", post.ID)
	}
	return entries, nil
}

// EmployerHistory returns a page of history across an employer's posts, newest first.
func (e *Engine) EmployerHistory(ctx context.Context, employerID string, actor Actor, page Page) (*LogPage, error) {
	if d := e.gate.AuthorizeEmployerHistory(actor, employerID); !d.Allowed {
		return nil, newError(KindPermissionDenied, nil, "", nil, d.Reason)
	}
	if page.Limit <= 0 || page.Limit > 200 {
		page.Limit = 50
	}
	if page.Offset < 0 {
		page.Offset = 0
	}
	lp, err := e.audit.ListByEmployer(ctx, employerID, page)
	if err != nil {
		return nil, errors.Wrapf(err, "list history of employer %s", employerID)
	}
	return lp, nil
}

// Stats returns the number of job posts per status, zero-filled.
func (e *Engine) Stats(ctx context.Context, actor Actor) (map[Status]int, error) {
	if d := e.gate.AuthorizeStats(actor); !d.Allowed {
		return nil, newError(KindPermissionDenied, nil, "", nil, d.Reason)
	}
	counts, err := e.store.CountByStatus(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "count job posts by status")
	}
	out := make(map[Status]int, len(allStatuses))
	for _, s := range allStatuses {
		out[s] = counts[s]
	}
	return out, nil
}
