package session

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a lifecycle event emitted by the engine.
type EventType string

const (
	EventSessionStarted   EventType = "session_started"
	EventAttemptSucceeded EventType = "attempt_succeeded"
	EventSessionCompleted EventType = "session_completed"
	EventSessionErrored   EventType = "session_errored"
	EventSessionStopped   EventType = "session_stopped"
	EventSessionTimedOut  EventType = "session_timed_out"
	EventSessionPurged    EventType = "session_purged"
)

// Event is a lifecycle notification. Session carries the record snapshot at
// the time of the event; it is nil for purge events, where only the id
// remains meaningful.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Session   *Record   `json:"session,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster receives lifecycle events for fan-out to observers.
// This is an interface so the engine has no dependency on the transport
// (the server package implements it over WebSocket).
type Broadcaster interface {
	BroadcastSessionEvent(ev Event)
}

func newEvent(t EventType, sessionID string, rec *Record, errMsg string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		SessionID: sessionID,
		Session:   rec,
		Error:     errMsg,
		Timestamp: time.Now(),
	}
}
