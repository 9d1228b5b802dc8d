package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/voidreach/cadence/errors"
	"github.com/voidreach/cadence/internal/httpclient"
	"github.com/voidreach/cadence/session"
)

// actionContext is the credential-bearing context prepared once per session.
// The engine treats it as opaque and hands it back on every attempt.
type actionContext struct {
	Endpoint string
	GroupKey string
	Token    string
}

// ExecutorConfig configures the HTTP action executor.
type ExecutorConfig struct {
	RequestTimeout time.Duration
	RatePerSecond  float64 // global outbound attempt rate shared by all sessions
	RateBurst      int
	Token          string // bearer credential attached to every attempt
	AllowPrivate   bool
}

// Executor performs action attempts as HTTP POSTs against the session's
// target. A shared rate limiter keeps many concurrent sessions from
// hammering remote hosts.
type Executor struct {
	client  *httpclient.GuardedClient
	limiter *rate.Limiter
	token   string
	logger  *zap.SugaredLogger
}

// NewExecutor creates an executor with its own guarded HTTP client.
func NewExecutor(cfg ExecutorConfig, log *zap.SugaredLogger) *Executor {
	client := httpclient.NewWithOptions(cfg.RequestTimeout, httpclient.Options{AllowPrivateIP: cfg.AllowPrivate})
	return NewExecutorWithClient(client, cfg, log)
}

// NewExecutorWithClient creates an executor using the provided client.
// Used by tests talking to httptest servers.
func NewExecutorWithClient(client *httpclient.GuardedClient, cfg ExecutorConfig, log *zap.SugaredLogger) *Executor {
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 5
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	return &Executor{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		token:   cfg.Token,
		logger:  log,
	}
}

// Prepare validates the target and binds the credential before the session
// is registered. A failure here means no session is created.
func (e *Executor) Prepare(_ context.Context, targetRef, groupKey string) (session.ActionContext, error) {
	if _, err := e.client.ValidateURL(targetRef); err != nil {
		return nil, errors.Wrap(err, "invalid action target")
	}
	return &actionContext{
		Endpoint: targetRef,
		GroupKey: groupKey,
		Token:    e.token,
	}, nil
}

// Attempt performs one action against the target. Any non-2xx response or
// transport error fails the attempt, which is fatal to the session.
func (e *Executor) Attempt(ctx context.Context, actx session.ActionContext) error {
	ac, ok := actx.(*actionContext)
	if !ok {
		return errors.Newf("unexpected action context type %T", actx)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter wait aborted")
	}

	body, err := json.Marshal(map[string]string{"group_key": ac.GroupKey})
	if err != nil {
		return errors.Wrap(err, "failed to encode action payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ac.Endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build action request")
	}
	req.Header.Set("Content-Type", "application/json")
	if ac.Token != "" {
		req.Header.Set("Authorization", "Bearer "+ac.Token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "action request failed")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Newf("action returned status %d", resp.StatusCode)
	}

	e.logger.Debugw("Action attempt succeeded",
		"endpoint", ac.Endpoint,
		"group_key", ac.GroupKey,
		"status", resp.StatusCode)
	return nil
}
