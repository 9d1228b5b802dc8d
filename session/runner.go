package session

import (
	"context"
	"time"

	"github.com/voidreach/cadence/errors"
)

// stopRequest asks a runner to apply the Stopped transition. done is closed
// once the transition has been applied (or found to be a late no-op), so
// StopSession returns with the state already visible.
type stopRequest struct {
	done chan struct{}
}

// runner owns one session's scheduling state: the recurring attempt ticker,
// the safety deadline timer, and the session record itself. Every event for
// the session (tick, deadline, stop) is consumed by the single loop
// goroutine, which is what serializes read-modify-write of the session.
type runner struct {
	engine   *Engine
	session  *Session // canonical copy, owned by the loop goroutine
	actx     ActionContext
	interval time.Duration
	cfg      Config // timing snapshot taken at session start
	stopCh   chan stopRequest
	done     chan struct{} // closed when the loop exits
}

func newRunner(e *Engine, s *Session, actx ActionContext, interval time.Duration) *runner {
	return &runner{
		engine:   e,
		session:  s,
		actx:     actx,
		interval: interval,
		cfg:      e.timings(),
		stopCh:   make(chan stopRequest),
		done:     make(chan struct{}),
	}
}

// loop drives the session until a terminal transition or engine shutdown.
// time.Ticker drops ticks that fire while an attempt is still running, which
// gives the required at-most-one-attempt-per-tick behavior when an attempt
// outlasts the interval.
func (r *runner) loop() {
	defer r.engine.wg.Done()
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	deadline := time.Duration(r.session.TargetCount)*r.interval + r.cfg.SafetyMargin
	safety := time.NewTimer(deadline)
	defer safety.Stop()

	for {
		select {
		case <-r.engine.ctx.Done():
			// Engine shutdown: stop scheduling, leave the record as-is.
			return
		case req := <-r.stopCh:
			r.handleStop()
			close(req.done)
		case <-ticker.C:
			r.handleTick()
		case <-safety.C:
			r.handleDeadline()
		}

		if r.session.State.Terminal() {
			return
		}
	}
}

// handleTick performs at most one action attempt. The state re-check is the
// final guard against a tick that was already in flight when a stop or
// deadline landed.
func (r *runner) handleTick() {
	s := r.session
	if s.State != StateActive || s.CompletedCount >= s.TargetCount {
		return
	}

	err := r.attempt()
	if err != nil {
		if s.applyAttemptFailure(err.Error()) {
			r.engine.store.Put(s)
			r.engine.logger.Warnw("Session attempt failed",
				"session_id", s.ID,
				"group_key", s.GroupKey,
				"completed", s.CompletedCount,
				"target", s.TargetCount,
				"error", err)
			rec := s.Record()
			r.engine.broadcast(newEvent(EventSessionErrored, s.ID, &rec, s.LastError))
			r.engine.armCleanup(s.ID)
		}
		return
	}

	applied, completed := s.applyAttemptSuccess()
	if !applied {
		return
	}
	r.engine.store.Put(s)

	rec := s.Record()
	if completed {
		r.engine.logger.Infow("Session completed",
			"session_id", s.ID,
			"group_key", s.GroupKey,
			"completed", s.CompletedCount)
		r.engine.broadcast(newEvent(EventSessionCompleted, s.ID, &rec, ""))
		r.engine.armCleanup(s.ID)
		return
	}

	r.engine.logger.Debugw("Session attempt succeeded",
		"session_id", s.ID,
		"completed", s.CompletedCount,
		"target", s.TargetCount)
	r.engine.broadcast(newEvent(EventAttemptSucceeded, s.ID, &rec, ""))
}

// attempt runs one bounded action attempt. A panic inside the executor is
// caught here, at the timer-callback boundary, and translated into an error
// so a misbehaving action kills its session but never the scheduler.
func (r *runner) attempt() (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Newf("action attempt panicked: %v", p)
		}
	}()

	ctx, cancel := context.WithTimeout(r.engine.ctx, r.cfg.AttemptTimeout)
	defer cancel()
	return r.engine.executor.Attempt(ctx, r.actx)
}

func (r *runner) handleStop() {
	s := r.session
	if !s.applyStop() {
		return
	}
	r.engine.store.Put(s)
	r.engine.logger.Infow("Session stopped",
		"session_id", s.ID,
		"group_key", s.GroupKey,
		"completed", s.CompletedCount,
		"target", s.TargetCount)
	rec := s.Record()
	r.engine.broadcast(newEvent(EventSessionStopped, s.ID, &rec, ""))
	r.engine.armCleanup(s.ID)
}

func (r *runner) handleDeadline() {
	s := r.session
	if !s.applyDeadline() {
		return
	}
	r.engine.store.Put(s)
	r.engine.logger.Warnw("Session hit safety deadline",
		"session_id", s.ID,
		"group_key", s.GroupKey,
		"completed", s.CompletedCount,
		"target", s.TargetCount)
	rec := s.Record()
	r.engine.broadcast(newEvent(EventSessionTimedOut, s.ID, &rec, ""))
	r.engine.armCleanup(s.ID)
}
