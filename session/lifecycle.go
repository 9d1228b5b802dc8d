package session

// Lifecycle transition functions. Each transition re-checks the current
// state before acting, so a late event landing on an already-terminal
// session is ignored rather than re-processed. Transitions for one session
// are only ever applied from its runner goroutine, which serializes them.
//
//	Active --success, count+1 < target--> Active     (count incremented)
//	Active --success, count+1 >= target-> Completed
//	Active --attempt failure------------> Errored    (last error recorded)
//	Active --explicit stop--------------> Stopped
//	Active --safety deadline------------> TimedOut
//
// Every other event/state combination is a no-op.

// applyAttemptSuccess records one successful action attempt. Returns the
// applied transition: stayed Active, or moved to Completed when the target
// was reached. Returns false if the session was not Active (late tick).
func (s *Session) applyAttemptSuccess() (applied bool, completed bool) {
	if s.State != StateActive {
		return false, false
	}
	if s.CompletedCount >= s.TargetCount {
		// Target already reached; never count past it
		return false, false
	}
	s.CompletedCount++
	if s.CompletedCount >= s.TargetCount {
		s.State = StateCompleted
		return true, true
	}
	return true, false
}

// applyAttemptFailure moves an Active session to Errored and records the
// failure message. A session failure is fatal to the session but not to the
// process: the engine stops retrying it and other sessions are unaffected.
func (s *Session) applyAttemptFailure(msg string) bool {
	if s.State != StateActive {
		return false
	}
	s.State = StateErrored
	s.LastError = msg
	return true
}

// applyStop moves an Active session to Stopped. Stopping an already-terminal
// session is a no-op, not an error.
func (s *Session) applyStop() bool {
	if s.State != StateActive {
		return false
	}
	s.State = StateStopped
	return true
}

// applyDeadline moves an Active session to TimedOut when the safety deadline
// elapses before the session finishes a full cycle set.
func (s *Session) applyDeadline() bool {
	if s.State != StateActive {
		return false
	}
	s.State = StateTimedOut
	return true
}
