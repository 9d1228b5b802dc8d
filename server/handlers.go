package server

import (
	"encoding/json"
	"net/http"

	"github.com/voidreach/cadence/session"
)

// HandleSessions handles requests to /api/sessions
// GET: list all sessions, optionally filtered with ?filter=<substring>
// POST: start a new session
func (s *Server) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListSessions(w, r)
	case http.MethodPost:
		s.handleCreateSession(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// HandleSession handles requests to /api/sessions/{id}
// GET: fetch one session
// DELETE: stop the session (the record stays queryable for the retention window)
func (s *Server) HandleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing session ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetSession(w, r, id)
	case http.MethodDelete:
		s.handleStopSession(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	recs := s.engine.ListSessions(r.URL.Query().Get("filter"))
	writeJSON(w, http.StatusOK, ListSessionsResponse{Sessions: recs, Count: len(recs)})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeWrappedError(w, s.logger, err, "invalid request body", http.StatusBadRequest)
		return
	}

	s.logger.Infow("Create session request",
		"target_ref", req.TargetRef,
		"target_count", req.TargetCount,
		"interval_seconds", req.IntervalSeconds,
		"remote", r.RemoteAddr)

	id, err := s.engine.StartSession(r.Context(), session.StartRequest{
		TargetRef:       req.TargetRef,
		TargetCount:     req.TargetCount,
		IntervalSeconds: req.IntervalSeconds,
	})
	if err != nil {
		handleError(w, s.logger, err, "failed to start session")
		return
	}

	writeJSON(w, http.StatusCreated, CreateSessionResponse{ID: id})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := s.engine.GetSession(id)
	if err != nil {
		handleError(w, s.logger, err, "failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.engine.StopSession(id); err != nil {
		handleError(w, s.logger, err, "failed to stop session")
		return
	}

	s.logger.Infow("Session stop requested", "session_id", id, "remote", r.RemoteAddr)
	w.WriteHeader(http.StatusNoContent)
}

// HandleSearch handles GET /api/sessions/search?term=<substring>&kind=<group|targetRef|any>
func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	kind := session.SearchKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = session.SearchAny
	}

	recs, err := s.engine.Search(r.URL.Query().Get("term"), kind)
	if err != nil {
		handleError(w, s.logger, err, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, ListSessionsResponse{Sessions: recs, Count: len(recs)})
}

// HandleGroupSessions handles GET /api/groups/{key}: all sessions sharing
// one group key, via the exact index.
func (s *Server) HandleGroupSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "Missing group key")
		return
	}

	recs := s.engine.FindByGroup(key)
	writeJSON(w, http.StatusOK, ListSessionsResponse{Sessions: recs, Count: len(recs)})
}
