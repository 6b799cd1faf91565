package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/geosphere-warnings/internal/domain"
	"github.com/couchcryptid/geosphere-warnings/internal/observability"
)

// DefaultInterval is the periodic refresh interval when none is configured.
const DefaultInterval = 15 * time.Minute

// Fetcher retrieves the raw warnings payload for a coordinate.
type Fetcher interface {
	Fetch(ctx context.Context, lat, lon float64, warningType string) (json.RawMessage, error)
}

// Options configures a Coordinator.
type Options struct {
	Latitude    float64
	Longitude   float64
	WarningType string
	Interval    time.Duration
	Policy      domain.WindowPolicy
	Clock       clockwork.Clock
}

// Data is the result of a successful refresh. It is never modified after
// being stored, so readers may share it.
type Data struct {
	ActiveWarnings []domain.WarningRecord
	RawPayload     json.RawMessage
	FetchedAt      time.Time
}

// State is a point-in-time copy of the coordinator's view.
type State struct {
	Data              *Data // nil until the first successful refresh
	LastUpdateSuccess bool
	LastError         error
	LastAttempt       time.Time
	Fetching          bool
}

// Coordinator owns scheduled and on-demand refreshes for one
// coordinate/type key and is the single writer of its State.
type Coordinator struct {
	fetcher Fetcher
	opts    Options
	key     string
	logger  *slog.Logger
	metrics *observability.Metrics

	group    singleflight.Group
	fetching atomic.Bool

	mu    sync.RWMutex
	state State

	listeners *listenerSet

	firstDone chan struct{}
	firstOnce sync.Once
}

// New creates a Coordinator. A zero Interval uses DefaultInterval and a nil
// Clock uses the real clock.
func New(fetcher Fetcher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Coordinator {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	key := strconv.FormatFloat(opts.Latitude, 'f', -1, 64) + "|" +
		strconv.FormatFloat(opts.Longitude, 'f', -1, 64) + "|" +
		opts.WarningType

	return &Coordinator{
		fetcher:   fetcher,
		opts:      opts,
		key:       key,
		logger:    logger.With("component", "coordinator", "key", key),
		metrics:   metrics,
		listeners: newListenerSet(),
		firstDone: make(chan struct{}),
	}
}

// Key identifies the coordinate/type pair this coordinator owns.
func (c *Coordinator) Key() string { return c.key }

// Interval returns the periodic refresh interval.
func (c *Coordinator) Interval() time.Duration { return c.opts.Interval }

// Subscribe registers cb to be called after every completed refresh.
// It does not trigger a fetch. Callbacks run once the fetch has landed, so a
// callback that calls Refresh starts a new fetch rather than joining the one
// that triggered it.
func (c *Coordinator) Subscribe(cb func()) Token {
	return c.listeners.add(cb)
}

// Unsubscribe removes a listener. Unknown tokens are ignored.
func (c *Coordinator) Unsubscribe(tok Token) {
	c.listeners.remove(tok)
}

// State returns a copy of the current state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	s := c.state
	c.mu.RUnlock()

	s.Fetching = c.fetching.Load()
	return s
}

// Refresh fetches, evaluates, and stores warnings, then notifies listeners.
// A caller arriving while a fetch is in flight joins that fetch instead of
// starting another. Failures are recorded in State, never returned. If ctx
// ends first, Refresh stops waiting; the fetch itself continues, bounded by
// the fetcher's timeout, and listeners are still notified.
func (c *Coordinator) Refresh(ctx context.Context) {
	if c.fetching.Load() {
		c.metrics.RefreshesCoalesced.Inc()
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(c.key, func() (any, error) {
		c.refresh(detached)
		return &flight{}, nil
	})
	c.metrics.RefreshWaiters.Inc()
	defer c.metrics.RefreshWaiters.Dec()

	// Every joiner gets the same *flight; the first to receive it notifies.
	// The key is released before results are delivered.
	done := make(chan struct{})
	go func() {
		defer close(done)
		res := <-ch
		if f, ok := res.Val.(*flight); ok {
			f.once.Do(c.notify)
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Debug("refresh caller stopped waiting", "reason", ctx.Err())
	}
}

// flight is the shared result of one coalesced refresh.
type flight struct {
	once sync.Once
}

// FirstRefresh performs the initial refresh and returns once it has
// completed, successfully or not. It fails only if ctx ends first.
func (c *Coordinator) FirstRefresh(ctx context.Context) error {
	c.Refresh(ctx)
	return c.WaitReady(ctx)
}

// WaitReady blocks until the first refresh has completed.
func (c *Coordinator) WaitReady(ctx context.Context) error {
	select {
	case <-c.firstDone:
		return nil
	default:
	}

	select {
	case <-c.firstDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckReadiness returns nil once the first refresh has completed.
func (c *Coordinator) CheckReadiness(_ context.Context) error {
	select {
	case <-c.firstDone:
		return nil
	default:
		return errors.New("initial warnings refresh has not completed")
	}
}

// Run refreshes on every interval tick until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("coordinator started", "interval", c.opts.Interval)
	c.metrics.CoordinatorRunning.Set(1)
	defer c.metrics.CoordinatorRunning.Set(0)

	ticker := c.opts.Clock.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			c.Refresh(ctx)
		}
	}
}

func (c *Coordinator) refresh(ctx context.Context) {
	c.fetching.Store(true)
	attempt := c.opts.Clock.Now().UTC()

	data, err := c.load(ctx)

	c.mu.Lock()
	wasFailing := c.state.LastError != nil
	c.state.LastAttempt = attempt
	if err != nil {
		c.state.LastUpdateSuccess = false
		c.state.LastError = err
	} else {
		c.state.Data = data
		c.state.LastUpdateSuccess = true
		c.state.LastError = nil
	}
	c.mu.Unlock()
	c.fetching.Store(false)

	c.record(data, err, wasFailing)
	c.firstOnce.Do(func() { close(c.firstDone) })
}

// load runs fetch and evaluation. Panics are converted to errors so a bad
// payload can never take down the process.
func (c *Coordinator) load(ctx context.Context) (data *Data, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic during refresh", "panic", r, "stack", string(debug.Stack()))
			data, err = nil, fmt.Errorf("unexpected error: %v", r)
		}
	}()

	start := c.opts.Clock.Now()
	payload, err := c.fetcher.Fetch(ctx, c.opts.Latitude, c.opts.Longitude, c.opts.WarningType)
	c.metrics.FetchDuration.Observe(c.opts.Clock.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	now := c.opts.Clock.Now().UTC()
	ev := domain.Evaluate(payload, now, c.opts.Policy, c.logger)

	c.metrics.FeaturesSkipped.Add(float64(ev.Skipped))
	c.metrics.RecordParseErrors.Add(float64(ev.ParseErrors))
	if ev.Malformed {
		c.metrics.MalformedPayloads.Inc()
	}

	return &Data{
		ActiveWarnings: ev.Active,
		RawPayload:     payload,
		FetchedAt:      now,
	}, nil
}

func (c *Coordinator) record(data *Data, err error, wasFailing bool) {
	c.metrics.Refreshes.WithLabelValues(outcome(err)).Inc()

	if err != nil {
		c.logger.Error("error fetching warnings", "error", err, "outcome", outcome(err))
		return
	}

	c.metrics.ActiveWarnings.Set(float64(len(data.ActiveWarnings)))
	c.metrics.LastSuccess.Set(float64(data.FetchedAt.Unix()))
	if wasFailing {
		c.logger.Info("fetching warnings recovered")
	}
	c.logger.Debug("warnings refreshed", "active", len(data.ActiveWarnings))
}

// notify calls every listener synchronously. A panicking listener is logged
// and does not affect the others.
func (c *Coordinator) notify() {
	for _, cb := range c.listeners.snapshot() {
		c.dispatch(cb)
	}
}

func (c *Coordinator) dispatch(cb func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("listener panicked", "panic", r)
		}
	}()
	cb()
}

func outcome(err error) string {
	var (
		timeoutErr   *domain.TimeoutError
		transportErr *domain.TransportError
	)
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errors.As(err, &timeoutErr):
		return observability.OutcomeTimeout
	case errors.As(err, &transportErr):
		return observability.OutcomeTransport
	default:
		return observability.OutcomeUnexpected
	}
}
