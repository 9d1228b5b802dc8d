// Package session implements the repeating-action session engine: the
// lifecycle state machine, the indexed in-memory store, the per-session
// scheduler, and deferred cleanup of finished sessions.
//
// A session repeatedly triggers a remote side-effecting action at a fixed
// interval until a target repetition count is reached, a safety deadline
// expires, the session errors, or it is stopped. Sessions live only in
// process memory.
package session

import (
	"crypto/rand"
	"math"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"github.com/voidreach/cadence/errors"
)

// State represents the current lifecycle state of a session
type State string

const (
	// StateActive means the recurring timer is armed and attempts are being made
	StateActive State = "active"
	// StateCompleted means the target count was reached
	StateCompleted State = "completed"
	// StateStopped means the session was explicitly stopped
	StateStopped State = "stopped"
	// StateErrored means an action attempt failed; the session is not retried
	StateErrored State = "errored"
	// StateTimedOut means the safety deadline elapsed before completion
	StateTimedOut State = "timed_out"
)

// IsValid returns true if s is a known session state
func (s State) IsValid() bool {
	switch s {
	case StateActive, StateCompleted, StateStopped, StateErrored, StateTimedOut:
		return true
	default:
		return false
	}
}

// Terminal returns true for states from which no further transition occurs.
// Terminal sessions keep no armed recurring timer and their counts are frozen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateStopped || s == StateErrored || s == StateTimedOut
}

// Session is the unit of work: one scheduled run of repeated remote actions
// toward a count goal.
//
// Field mutation happens only through the lifecycle transition functions,
// applied inside the session's runner goroutine. The store holds snapshots,
// so readers never observe a half-applied transition.
type Session struct {
	ID              string `json:"id"`
	GroupKey        string `json:"group_key"`
	TargetRef       string `json:"target_ref"` // normalized, case-folded
	CompletedCount  int    `json:"completed_count"`
	TargetCount     int    `json:"target_count"`
	IntervalSeconds int    `json:"interval_seconds"`
	State           State  `json:"state"`
	LastError       string `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	// EstimatedCompletionAt is CreatedAt + TargetCount*interval. Advisory
	// only; never re-derived after failures or stops.
	EstimatedCompletionAt time.Time `json:"estimated_completion_at"`
}

// clone returns a copy safe to hand across goroutine boundaries.
func (s *Session) clone() *Session {
	c := *s
	return &c
}

// ProgressPercent returns completion progress rounded to the nearest integer.
func (s *Session) ProgressPercent() int {
	if s.TargetCount <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(s.CompletedCount) / float64(s.TargetCount)))
}

// Record is the read-only projection of a session exposed to callers.
type Record struct {
	ID                    string    `json:"id"`
	TargetRef             string    `json:"target_ref"`
	GroupKey              string    `json:"group_key"`
	CompletedCount        int       `json:"completed_count"`
	TargetCount           int       `json:"target_count"`
	ProgressPercent       int       `json:"progress_percent"`
	State                 State     `json:"state"`
	IntervalSeconds       int       `json:"interval_seconds"`
	CreatedAt             time.Time `json:"created_at"`
	EstimatedCompletionAt time.Time `json:"estimated_completion_at"`
	LastError             string    `json:"last_error,omitempty"`
}

// Record returns the caller-facing projection of the session.
func (s *Session) Record() Record {
	return Record{
		ID:                    s.ID,
		TargetRef:             s.TargetRef,
		GroupKey:              s.GroupKey,
		CompletedCount:        s.CompletedCount,
		TargetCount:           s.TargetCount,
		ProgressPercent:       s.ProgressPercent(),
		State:                 s.State,
		IntervalSeconds:       s.IntervalSeconds,
		CreatedAt:             s.CreatedAt,
		EstimatedCompletionAt: s.EstimatedCompletionAt,
		LastError:             s.LastError,
	}
}

// NormalizeRef canonicalizes a target reference for indexing and lookup.
// References differing only in case or surrounding whitespace are the same
// target.
func NormalizeRef(ref string) string {
	return strings.ToLower(strings.TrimSpace(ref))
}

// sessionIDBytes is the entropy per session id. 12 bytes keeps ids short
// enough to read in logs while never colliding in practice.
const sessionIDBytes = 12

// NewSessionID generates an opaque unique session identifier.
// IDs are never reused; a fresh one is minted for every started session.
func NewSessionID() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "failed to read random bytes for session id")
	}
	return "ses_" + base58.Encode(buf), nil
}
