package server

import "github.com/voidreach/cadence/session"

// CreateSessionRequest is the body for POST /api/sessions
type CreateSessionRequest struct {
	TargetRef       string `json:"target_ref"`
	TargetCount     int    `json:"target_count"`
	IntervalSeconds int    `json:"interval_seconds"`
}

// CreateSessionResponse is returned on successful session creation
type CreateSessionResponse struct {
	ID string `json:"id"`
}

// ListSessionsResponse wraps a list of session records
type ListSessionsResponse struct {
	Sessions []session.Record `json:"sessions"`
	Count    int              `json:"count"`
}
