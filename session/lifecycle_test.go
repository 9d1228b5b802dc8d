package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyAttemptSuccessIncrements(t *testing.T) {
	s := &Session{State: StateActive, TargetCount: 3}

	applied, completed := s.applyAttemptSuccess()
	assert.True(t, applied)
	assert.False(t, completed)
	assert.Equal(t, 1, s.CompletedCount)
	assert.Equal(t, StateActive, s.State)
}

func TestApplyAttemptSuccessCompletesAtTarget(t *testing.T) {
	s := &Session{State: StateActive, TargetCount: 2, CompletedCount: 1}

	applied, completed := s.applyAttemptSuccess()
	assert.True(t, applied)
	assert.True(t, completed)
	assert.Equal(t, 2, s.CompletedCount)
	assert.Equal(t, StateCompleted, s.State)

	// Terminal states are sticky; no further increments
	applied, _ = s.applyAttemptSuccess()
	assert.False(t, applied)
	assert.Equal(t, 2, s.CompletedCount)
}

func TestCompletedCountNeverExceedsTarget(t *testing.T) {
	s := &Session{State: StateActive, TargetCount: 3}
	for i := 0; i < 10; i++ {
		s.applyAttemptSuccess()
	}
	assert.Equal(t, 3, s.CompletedCount)
	assert.Equal(t, StateCompleted, s.State)
}

func TestApplyAttemptFailure(t *testing.T) {
	s := &Session{State: StateActive, TargetCount: 5, CompletedCount: 1}

	assert.True(t, s.applyAttemptFailure("remote action returned 500"))
	assert.Equal(t, StateErrored, s.State)
	assert.Equal(t, "remote action returned 500", s.LastError)
	assert.Equal(t, 1, s.CompletedCount)

	// Late failure against a terminal session is ignored
	assert.False(t, s.applyAttemptFailure("again"))
	assert.Equal(t, "remote action returned 500", s.LastError)
}

func TestApplyStop(t *testing.T) {
	s := &Session{State: StateActive, TargetCount: 5}

	assert.True(t, s.applyStop())
	assert.Equal(t, StateStopped, s.State)

	// Stop on terminal is a no-op
	assert.False(t, s.applyStop())

	// A late tick after stop must not count
	applied, _ := s.applyAttemptSuccess()
	assert.False(t, applied)
	assert.Equal(t, 0, s.CompletedCount)
}

func TestApplyDeadline(t *testing.T) {
	s := &Session{State: StateActive, TargetCount: 5, CompletedCount: 2}

	assert.True(t, s.applyDeadline())
	assert.Equal(t, StateTimedOut, s.State)

	assert.False(t, s.applyDeadline())

	completed := &Session{State: StateCompleted, TargetCount: 5, CompletedCount: 5}
	assert.False(t, completed.applyDeadline(), "deadline on completed session is ignored")
	assert.Equal(t, StateCompleted, completed.State)
}

func TestStateTerminal(t *testing.T) {
	assert.False(t, StateActive.Terminal())
	for _, st := range []State{StateCompleted, StateStopped, StateErrored, StateTimedOut} {
		assert.True(t, st.Terminal(), string(st))
	}
}

func TestStateIsValid(t *testing.T) {
	assert.True(t, StateActive.IsValid())
	assert.True(t, StateTimedOut.IsValid())
	assert.False(t, State("paused").IsValid())
}

func TestProgressPercent(t *testing.T) {
	s := &Session{TargetCount: 3, CompletedCount: 1}
	assert.Equal(t, 33, s.ProgressPercent())

	s.CompletedCount = 2
	assert.Equal(t, 67, s.ProgressPercent())

	s.CompletedCount = 3
	assert.Equal(t, 100, s.ProgressPercent())

	zero := &Session{}
	assert.Equal(t, 0, zero.ProgressPercent())
}

func TestNewSessionID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewSessionID()
		assert.NoError(t, err)
		assert.Contains(t, id, "ses_")
		assert.False(t, seen[id], "ids must be unique")
		seen[id] = true
	}
}

func TestNormalizeRef(t *testing.T) {
	assert.Equal(t, "https://example.com/p/1", NormalizeRef("  HTTPS://Example.com/P/1 "))
	assert.Equal(t, "", NormalizeRef("   "))
}
