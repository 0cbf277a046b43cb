// Package schedule runs the automation scheduler: a periodic scan that
// auto-publishes approved job posts whose scheduled date has arrived and
// expires active posts past their expiry date.
package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/logger"
	"github.com/teranos/hireflow/workflow"
)

// Applier performs workflow actions; *workflow.Engine satisfies it
type Applier interface {
	Apply(ctx context.Context, id string, action workflow.Action, actor workflow.Actor, payload workflow.Payload) (*workflow.Result, error)
}

// Finder lists job posts due for an automated transition
type Finder interface {
	ListEligible(ctx context.Context, q workflow.EligibilityQuery) ([]*workflow.JobPost, error)
}

// TickerConfig contains configuration for the pulse ticker
type TickerConfig struct {
	Interval    time.Duration // how often to scan (default: 1 minute)
	ItemTimeout time.Duration // per-post bound on one transition (default: 10 seconds)
	BatchSize   int           // posts per eligibility kind per scan, 0 = unlimited
	// MaxTransitionsPerSecond throttles automated transitions, 0 = unlimited
	MaxTransitionsPerSecond float64
	// LeaseTTL is how long a scan holds the replica lease (default: half the interval)
	LeaseTTL time.Duration
}

// DefaultTickerConfig returns sensible defaults
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{
		Interval:                time.Minute,
		ItemTimeout:             10 * time.Second,
		BatchSize:               200,
		MaxTransitionsPerSecond: 50,
		LeaseTTL:                30 * time.Second,
	}
}

func (c TickerConfig) normalized() TickerConfig {
	d := DefaultTickerConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.ItemTimeout <= 0 {
		c.ItemTimeout = d.ItemTimeout
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = c.Interval / 2
	}
	return c
}

func (c TickerConfig) limiter() *rate.Limiter {
	if c.MaxTransitionsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(c.MaxTransitionsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.MaxTransitionsPerSecond), burst)
}

// ScanResult summarizes one scan
type ScanResult struct {
	At        time.Time `json:"at"`
	Published int       `json:"published"`
	Expired   int       `json:"expired"`
	// Skipped counts posts another actor moved between listing and applying
	Skipped   int  `json:"skipped"`
	Failed    int  `json:"failed"`
	LeaseMiss bool `json:"lease_miss,omitempty"`
}

// Stats is a snapshot of ticker activity
type Stats struct {
	Running         bool          `json:"running"`
	Interval        time.Duration `json:"interval"`
	LastTickAt      time.Time     `json:"last_tick_at"`
	TicksSinceStart int64         `json:"ticks_since_start"`
	LastScan        ScanResult    `json:"last_scan"`
	TotalPublished  int64         `json:"total_published"`
	TotalExpired    int64         `json:"total_expired"`
	TotalFailed     int64         `json:"total_failed"`
}

// Ticker periodically applies auto_publish and expire as the system actor.
// Failed items are logged and picked up again by the next scan.
type Ticker struct {
	engine Applier
	finder Finder
	lease  Lease
	now    func() time.Time

	logger   *zap.SugaredLogger
	pulseLog *zap.SugaredLogger

	mu      sync.Mutex
	cfg     TickerConfig
	limiter *rate.Limiter
	reload  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stats   Stats
}

// NewTicker creates a ticker. A nil lease means a process-local lease.
func NewTicker(engine Applier, finder Finder, lease Lease, cfg TickerConfig, log *zap.SugaredLogger) *Ticker {
	if lease == nil {
		lease = NewLocalLease()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	cfg = cfg.normalized()
	return &Ticker{
		engine:   engine,
		finder:   finder,
		lease:    lease,
		now:      time.Now,
		logger:   log,
		pulseLog: logger.AddPulseSymbol(log.Named("pulse")),
		cfg:      cfg,
		limiter:  cfg.limiter(),
		reload:   make(chan struct{}, 1),
	}
}

// Start begins the ticker loop; calling Start on a running ticker does nothing
func (t *Ticker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.stats.Running = true
	interval := t.cfg.Interval
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run(ctx)
	logger.AddPulseOpenSymbol(t.logger).Infow("Pulse ticker started", "interval", interval)
}

// Stop cancels the loop and waits for an in-flight scan to finish
func (t *Ticker) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.stats.Running = false
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	t.wg.Wait()

	releaseCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := t.lease.Release(releaseCtx); err != nil {
		t.pulseLog.Warnw("Failed to release pulse lease", logger.FieldError, err)
	}
	logger.AddPulseCloseSymbol(t.logger).Infow("Pulse ticker stopped")
}

func (t *Ticker) run(ctx context.Context) {
	defer t.wg.Done()

	timer := time.NewTimer(t.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.reload:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(t.interval())
		case tickTime := <-timer.C:
			t.mu.Lock()
			t.stats.LastTickAt = tickTime
			t.stats.TicksSinceStart++
			tick := t.stats.TicksSinceStart
			t.mu.Unlock()

			if _, err := t.Scan(ctx, t.now()); err != nil && ctx.Err() == nil {
				t.pulseLog.Warnw("Pulse tick error", logger.FieldError, err, "tick", tick)
			}
			timer.Reset(t.interval())
		}
	}
}

func (t *Ticker) interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg.Interval
}

// Scan applies every automated transition due at now. It is safe to run
// concurrently with itself and with human actions: each post is committed
// through the engine's compare-and-swap, so a post is transitioned at most once.
func (t *Ticker) Scan(ctx context.Context, now time.Time) (ScanResult, error) {
	t.mu.Lock()
	cfg, limiter := t.cfg, t.limiter
	t.mu.Unlock()

	result := ScanResult{At: now}
	held, err := t.lease.Acquire(ctx, cfg.LeaseTTL)
	if err != nil {
		return result, err
	}
	if !held {
		result.LeaseMiss = true
		t.pulseLog.Debugw("Pulse scan skipped, lease held elsewhere")
		return result, nil
	}

	for _, kind := range []workflow.Eligibility{workflow.EligibleForAutoPublish, workflow.EligibleForExpiry} {
		posts, err := t.finder.ListEligible(ctx, workflow.EligibilityQuery{Kind: kind, Now: now, Limit: cfg.BatchSize})
		if err != nil {
			t.record(result)
			return result, errors.Wrapf(err, "list posts eligible for %s", kind.Action())
		}
		for _, post := range posts {
			if err := limiter.Wait(ctx); err != nil {
				t.record(result)
				return result, err
			}
			t.applyOne(ctx, cfg, post, kind.Action(), &result)
		}
	}

	t.record(result)
	if result.Published+result.Expired+result.Failed > 0 {
		t.pulseLog.Infow("Pulse scan complete",
			"published", result.Published,
			"expired", result.Expired,
			"skipped", result.Skipped,
			logger.FieldFailed, result.Failed,
		)
	}
	return result, nil
}

func (t *Ticker) applyOne(ctx context.Context, cfg TickerConfig, post *workflow.JobPost, action workflow.Action, result *ScanResult) {
	itemCtx, cancel := context.WithTimeout(ctx, cfg.ItemTimeout)
	defer cancel()

	_, err := t.engine.Apply(itemCtx, post.ID, action, workflow.SystemActor, workflow.Payload{At: result.At})
	switch kind := workflow.KindOf(err); {
	case err == nil:
		if action == workflow.ActionExpire {
			result.Expired++
		} else {
			result.Published++
		}
	case kind == workflow.KindConflict, kind == workflow.KindInvalidTransition, kind == workflow.KindNotFound:
		result.Skipped++
		t.pulseLog.Debugw("Post moved before automated transition",
			logger.FieldJobPostID, post.ID,
			logger.FieldAction, string(action),
			logger.FieldErrorKind, string(kind),
		)
	default:
		result.Failed++
		t.pulseLog.Errorw("Automated transition failed",
			logger.FieldJobPostID, post.ID,
			logger.FieldAction, string(action),
			logger.FieldError, err,
		)
	}
}

func (t *Ticker) record(r ScanResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.LastScan = r
	t.stats.TotalPublished += int64(r.Published)
	t.stats.TotalExpired += int64(r.Expired)
	t.stats.TotalFailed += int64(r.Failed)
}

// UpdateConfig swaps in new settings; a running loop picks up the new interval immediately
func (t *Ticker) UpdateConfig(cfg TickerConfig) {
	cfg = cfg.normalized()
	t.mu.Lock()
	t.cfg = cfg
	t.limiter = cfg.limiter()
	t.mu.Unlock()

	select {
	case t.reload <- struct{}{}:
	default:
	}
	logger.AddConfigSymbol(t.pulseLog).Infow("Pulse config updated",
		"interval", cfg.Interval,
		"batch_size", cfg.BatchSize,
		"max_transitions_per_second", cfg.MaxTransitionsPerSecond,
	)
}

// Config returns the current settings
func (t *Ticker) Config() TickerConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

// GetStats returns ticker statistics
func (t *Ticker) GetStats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.stats
	s.Interval = t.cfg.Interval
	return s
}
