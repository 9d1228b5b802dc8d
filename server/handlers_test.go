package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voidreach/cadence/errors"
	"github.com/voidreach/cadence/session"
)

// stubResolver derives the group key from the ref itself so tests control
// grouping without a remote call.
type stubResolver struct {
	err error
}

func (r stubResolver) Resolve(_ context.Context, targetRef string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "grp-" + targetRef, nil
}

// stubExecutor always succeeds; handler tests exercise routing and error
// mapping, not attempt semantics.
type stubExecutor struct {
	prepareErr error
}

func (e stubExecutor) Prepare(_ context.Context, targetRef, _ string) (session.ActionContext, error) {
	if e.prepareErr != nil {
		return nil, e.prepareErr
	}
	return targetRef, nil
}

func (e stubExecutor) Attempt(_ context.Context, _ session.ActionContext) error {
	return nil
}

func newTestServer(t *testing.T, resolver session.GroupResolver, executor session.ActionExecutor) *Server {
	t.Helper()

	cfg := session.Config{
		TickUnit:       50 * time.Millisecond,
		AttemptTimeout: time.Second,
		SafetyMargin:   time.Minute,
		Retention:      time.Hour,
	}
	engine := session.NewEngine(session.NewStore(), resolver, executor, cfg, zap.NewNop().Sugar())
	t.Cleanup(engine.Shutdown)

	return NewServer(engine, "127.0.0.1", 0, zap.NewNop().Sugar())
}

func createSession(t *testing.T, srv *Server, ref string, count, interval int) string {
	t.Helper()

	body, err := json.Marshal(CreateSessionRequest{
		TargetRef:       ref,
		TargetCount:     count,
		IntervalSeconds: interval,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(body))
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp CreateSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, stubResolver{}, stubExecutor{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestCreateSession(t *testing.T) {
	srv := newTestServer(t, stubResolver{}, stubExecutor{})

	id := createSession(t, srv, "target-a", 100, 60)
	assert.Contains(t, id, "ses_")
}

func TestCreateSessionInvalidBody(t *testing.T) {
	srv := newTestServer(t, stubResolver{}, stubExecutor{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader([]byte("{not json")))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSessionInvalidInput(t *testing.T) {
	srv := newTestServer(t, stubResolver{}, stubExecutor{})

	cases := []struct {
		name string
		req  CreateSessionRequest
	}{
		{"empty ref", CreateSessionRequest{TargetRef: "", TargetCount: 5, IntervalSeconds: 10}},
		{"zero count", CreateSessionRequest{TargetRef: "t", TargetCount: 0, IntervalSeconds: 10}},
		{"zero interval", CreateSessionRequest{TargetRef: "t", TargetCount: 5, IntervalSeconds: 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, err := json.Marshal(tc.req)
			require.NoError(t, err)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(body))
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestCreateSessionSetupFailureMapsToBadGateway(t *testing.T) {
	srv := newTestServer(t, stubResolver{err: errors.WrapSetupFailed(errors.New("refused"), "resolve group key")}, stubExecutor{})

	body, err := json.Marshal(CreateSessionRequest{TargetRef: "t", TargetCount: 5, IntervalSeconds: 10})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(body))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "refused")
}

func TestGetSession(t *testing.T) {
	srv := newTestServer(t, stubResolver{}, stubExecutor{})
	id := createSession(t, srv, "Target-X", 4, 120)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got session.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "target-x", got.TargetRef)
	assert.Equal(t, "grp-target-x", got.GroupKey)
	assert.Equal(t, 4, got.TargetCount)
	assert.Equal(t, session.StateActive, got.State)
}

func TestGetSessionNotFound(t *testing.T) {
	srv := newTestServer(t, stubResolver{}, stubExecutor{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/ses_missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSessions(t *testing.T) {
	srv := newTestServer(t, stubResolver{}, stubExecutor{})
	id1 := createSession(t, srv, "alpha", 10, 60)
	id2 := createSession(t, srv, "beta", 10, 60)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListSessionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	// Insertion order
	assert.Equal(t, id1, resp.Sessions[0].ID)
	assert.Equal(t, id2, resp.Sessions[1].ID)
}

func TestListSessionsWithFilter(t *testing.T) {
	srv := newTestServer(t, stubResolver{}, stubExecutor{})
	createSession(t, srv, "alpha", 10, 60)
	id := createSession(t, srv, "beta", 10, 60)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions?filter=beta", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListSessionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, id, resp.Sessions[0].ID)
}

func TestStopSession(t *testing.T) {
	srv := newTestServer(t, stubResolver{}, stubExecutor{})
	id := createSession(t, srv, "alpha", 10, 60)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The record survives stopping; only its state changes.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got session.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, session.StateStopped, got.State)
}

func TestStopSessionNotFound(t *testing.T) {
	srv := newTestServer(t, stubResolver{}, stubExecutor{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/ses_missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchSessions(t *testing.T) {
	srv := newTestServer(t, stubResolver{}, stubExecutor{})
	createSession(t, srv, "alpha-prod", 10, 60)
	createSession(t, srv, "alpha-stage", 10, 60)
	createSession(t, srv, "beta-prod", 10, 60)

	cases := []struct {
		name  string
		query string
		want  int
	}{
		{"by group", "term=grp-alpha&kind=group", 2},
		{"by target ref", "term=prod&kind=targetRef", 2},
		{"default any kind", "term=stage", 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/search?"+tc.query, nil))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp ListSessionsResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.want, resp.Count)
		})
	}
}

func TestSearchRejectsInvalidKind(t *testing.T) {
	srv := newTestServer(t, stubResolver{}, stubExecutor{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/search?term=x&kind=bogus", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGroupSessions(t *testing.T) {
	srv := newTestServer(t, stubResolver{}, stubExecutor{})
	id1 := createSession(t, srv, "shared", 10, 60)
	id2 := createSession(t, srv, "shared", 10, 60)
	createSession(t, srv, "other", 10, 60)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/groups/grp-shared", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListSessionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)

	ids := []string{resp.Sessions[0].ID, resp.Sessions[1].ID}
	assert.Contains(t, ids, id1)
	assert.Contains(t, ids, id2)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, stubResolver{}, stubExecutor{})
	id := createSession(t, srv, "alpha", 10, 60)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodDelete, "/api/sessions"},
		{http.MethodPost, fmt.Sprintf("/api/sessions/%s", id)},
		{http.MethodPost, "/api/sessions/search"},
		{http.MethodPost, "/api/groups/grp-alpha"},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
}
