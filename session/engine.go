package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voidreach/cadence/errors"
)

// GroupResolver resolves a target reference to the group key shared by all
// sessions addressing the same external target. Resolution happens once,
// during session setup, before anything is registered.
type GroupResolver interface {
	Resolve(ctx context.Context, targetRef string) (groupKey string, err error)
}

// ActionContext is the opaque, credential-bearing context prepared once per
// session and handed back to the executor on every attempt. The engine never
// looks inside it.
type ActionContext interface{}

// ActionExecutor prepares and performs the remote side-effecting action.
// Attempt returns nil for a successful attempt; any error is fatal to the
// session (no retry in place).
type ActionExecutor interface {
	Prepare(ctx context.Context, targetRef, groupKey string) (ActionContext, error)
	Attempt(ctx context.Context, actx ActionContext) error
}

// Config contains the engine's timing knobs.
type Config struct {
	// TickUnit is the wall-clock duration of one interval second. Always
	// time.Second in production; tests shrink it so interval-driven
	// scenarios run in milliseconds.
	TickUnit time.Duration
	// AttemptTimeout bounds a single action attempt.
	AttemptTimeout time.Duration
	// SafetyMargin is added to targetCount*interval to form the safety
	// deadline, a backstop against sessions that never finish a cycle set.
	SafetyMargin time.Duration
	// Retention is how long a finished session stays queryable before the
	// deferred cleanup purges it from the store and indexes.
	Retention time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TickUnit:       time.Second,
		AttemptTimeout: 15 * time.Second,
		SafetyMargin:   300 * time.Second,
		Retention:      time.Hour,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TickUnit <= 0 {
		c.TickUnit = d.TickUnit
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = d.AttemptTimeout
	}
	if c.SafetyMargin <= 0 {
		c.SafetyMargin = d.SafetyMargin
	}
	if c.Retention <= 0 {
		c.Retention = d.Retention
	}
	return c
}

// StartRequest carries the inputs for starting a session.
type StartRequest struct {
	TargetRef       string
	TargetCount     int
	IntervalSeconds int
}

// Engine is the session scheduler. It owns one runner goroutine per active
// session (recurring timer plus safety deadline) and one cleanup timer per
// finished session. All state mutation for a given session id flows through
// its runner, so two events for the same session are never processed
// concurrently.
type Engine struct {
	store       *Store
	resolver    GroupResolver
	executor    ActionExecutor
	broadcaster Broadcaster // optional
	cfg         Config
	logger      *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	runners  map[string]*runner
	cleanups map[string]*time.Timer
	closed   bool
}

// NewEngine creates a session engine. The store is an explicit dependency so
// tests can use a fresh one per test; broadcaster may be nil.
func NewEngine(store *Store, resolver GroupResolver, executor ActionExecutor, cfg Config, log *zap.SugaredLogger) *Engine {
	return NewEngineWithContext(context.Background(), store, resolver, executor, cfg, log)
}

// NewEngineWithContext creates an engine whose runners shut down when the
// parent context is cancelled.
func NewEngineWithContext(ctx context.Context, store *Store, resolver GroupResolver, executor ActionExecutor, cfg Config, log *zap.SugaredLogger) *Engine {
	engineCtx, cancel := context.WithCancel(ctx)
	return &Engine{
		store:    store,
		resolver: resolver,
		executor: executor,
		cfg:      cfg.withDefaults(),
		logger:   log,
		ctx:      engineCtx,
		cancel:   cancel,
		runners:  make(map[string]*runner),
		cleanups: make(map[string]*time.Timer),
	}
}

// SetBroadcaster attaches a lifecycle event broadcaster. Safe to call while
// sessions are running; events emitted from then on go to b.
func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broadcaster = b
}

// Store exposes the engine's store for the read-only lookup surface.
func (e *Engine) Store() *Store {
	return e.store
}

// SetTimings updates the attempt timeout, safety margin and retention
// window. Applies to sessions started after the call; running sessions keep
// the timers they were armed with. Zero or negative values leave the
// current setting unchanged.
func (e *Engine) SetTimings(attemptTimeout, safetyMargin, retention time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if attemptTimeout > 0 {
		e.cfg.AttemptTimeout = attemptTimeout
	}
	if safetyMargin > 0 {
		e.cfg.SafetyMargin = safetyMargin
	}
	if retention > 0 {
		e.cfg.Retention = retention
	}
}

// timings returns a snapshot of the config, safe against concurrent
// SetTimings calls.
func (e *Engine) timings() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// StartSession validates the request, resolves the group key, prepares the
// action context and, only then, registers the session and arms its timers.
// A failed setup never creates a visible session.
func (e *Engine) StartSession(ctx context.Context, req StartRequest) (string, error) {
	if req.TargetCount <= 0 {
		return "", errors.NewInvalidInputf("target count must be positive, got %d", req.TargetCount)
	}
	if req.IntervalSeconds < 1 {
		return "", errors.NewInvalidInputf("interval must be at least 1 second, got %d", req.IntervalSeconds)
	}
	targetRef := NormalizeRef(req.TargetRef)
	if targetRef == "" {
		return "", errors.NewInvalidInputf("target reference is required")
	}

	groupKey, err := e.resolver.Resolve(ctx, targetRef)
	if err != nil {
		return "", errors.WrapSetupFailed(err, "failed to resolve target reference")
	}

	actx, err := e.executor.Prepare(ctx, targetRef, groupKey)
	if err != nil {
		return "", errors.WrapSetupFailed(err, "failed to prepare action context")
	}

	id, err := NewSessionID()
	if err != nil {
		return "", err
	}

	interval := time.Duration(req.IntervalSeconds) * e.timings().TickUnit
	now := time.Now()
	s := &Session{
		ID:                    id,
		GroupKey:              groupKey,
		TargetRef:             targetRef,
		TargetCount:           req.TargetCount,
		IntervalSeconds:       req.IntervalSeconds,
		State:                 StateActive,
		CreatedAt:             now,
		EstimatedCompletionAt: now.Add(time.Duration(req.TargetCount) * interval),
	}

	r := newRunner(e, s, actx, interval)

	e.mu.Lock()
	if e.closed || e.ctx.Err() != nil {
		e.mu.Unlock()
		return "", errors.New("engine is shut down")
	}
	e.store.Put(s)
	e.runners[id] = r
	e.mu.Unlock()

	e.wg.Add(1)
	go r.loop()

	e.logger.Infow("Session started",
		"session_id", id,
		"group_key", groupKey,
		"target_ref", targetRef,
		"target_count", req.TargetCount,
		"interval_seconds", req.IntervalSeconds)

	rec := s.Record()
	e.broadcast(newEvent(EventSessionStarted, id, &rec, ""))

	return id, nil
}

// StopSession stops an Active session. Stopping a session that already
// reached a terminal state is a no-op success; stopping an unknown id is
// NotFound. The Stopped transition is applied before this returns.
func (e *Engine) StopSession(id string) error {
	if _, err := e.store.Get(id); err != nil {
		return err
	}

	e.mu.Lock()
	r := e.runners[id]
	e.mu.Unlock()

	if r == nil {
		// Runner already exited: the session is terminal and retained only
		// for late queries. Idempotent no-op.
		return nil
	}

	req := stopRequest{done: make(chan struct{})}
	select {
	case r.stopCh <- req:
		<-req.done
	case <-r.done:
		// The runner went terminal while we were asking. Same outcome.
	case <-e.ctx.Done():
		return errors.Wrap(e.ctx.Err(), "engine shutting down")
	}
	return nil
}

// GetSession returns the record for one session.
func (e *Engine) GetSession(id string) (Record, error) {
	s, err := e.store.Get(id)
	if err != nil {
		return Record{}, err
	}
	return s.Record(), nil
}

// armCleanup schedules the one-shot purge of a finished session after the
// retention window. Nothing else ever removes a session from the store.
func (e *Engine) armCleanup(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	delete(e.runners, id)
	e.cleanups[id] = time.AfterFunc(e.cfg.Retention, func() {
		e.purge(id)
	})
}

// purge removes a session from the indexes and primary store after its
// retention window. Failures here are logged and never block other
// sessions' cleanup.
func (e *Engine) purge(id string) {
	e.mu.Lock()
	delete(e.cleanups, id)
	e.mu.Unlock()

	if err := e.store.Remove(id); err != nil {
		e.logger.Warnw("Cleanup failed to remove session", "session_id", id, "error", err)
		return
	}
	e.logger.Infow("Session purged after retention window", "session_id", id)
	e.broadcast(newEvent(EventSessionPurged, id, nil, ""))
}

// Shutdown cancels every runner, safety timer and pending cleanup, then
// waits for all session goroutines to exit. No callback can fire against a
// torn-down store afterwards.
func (e *Engine) Shutdown() {
	e.cancel()
	e.wg.Wait()

	e.mu.Lock()
	for id, t := range e.cleanups {
		t.Stop()
		delete(e.cleanups, id)
	}
	e.runners = make(map[string]*runner)
	e.closed = true
	e.mu.Unlock()

	e.logger.Infow("Session engine shut down")
}

func (e *Engine) broadcast(ev Event) {
	e.mu.Lock()
	b := e.broadcaster
	e.mu.Unlock()
	if b != nil {
		b.BroadcastSessionEvent(ev)
	}
}
