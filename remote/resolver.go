// Package remote implements the engine's two external collaborators over
// HTTP: the group resolver and the action executor. Both go through the
// SSRF-guarded client, since target references are caller-supplied URLs.
package remote

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voidreach/cadence/errors"
	"github.com/voidreach/cadence/internal/httpclient"
)

// GroupKeyHeader is the response header a target may set to name its group
// key explicitly. Without it the key is derived from the URL path.
const GroupKeyHeader = "X-Cadence-Group"

// Resolver resolves a target reference URL to its group key by probing the
// target once. Resolution happens during session setup only.
type Resolver struct {
	client *httpclient.GuardedClient
	logger *zap.SugaredLogger
}

// NewResolver creates a resolver with its own guarded HTTP client.
func NewResolver(timeout time.Duration, allowPrivate bool, log *zap.SugaredLogger) *Resolver {
	client := httpclient.NewWithOptions(timeout, httpclient.Options{AllowPrivateIP: allowPrivate})
	return NewResolverWithClient(client, log)
}

// NewResolverWithClient creates a resolver using the provided client.
// Used by tests talking to httptest servers.
func NewResolverWithClient(client *httpclient.GuardedClient, log *zap.SugaredLogger) *Resolver {
	return &Resolver{client: client, logger: log}
}

// Resolve probes targetRef and returns its group key. If the target is
// unreachable or rejects the probe, resolution fails and no session is
// created.
func (r *Resolver) Resolve(ctx context.Context, targetRef string) (string, error) {
	u, err := r.client.ValidateURL(targetRef)
	if err != nil {
		return "", errors.Wrap(err, "invalid target reference")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetRef, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to build resolve request")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "target unreachable")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Newf("target returned status %d", resp.StatusCode)
	}

	if key := resp.Header.Get(GroupKeyHeader); key != "" {
		return key, nil
	}

	// Derive a stable key from the URL path when the target does not
	// advertise one: host plus last path segment
	key := u.Hostname()
	if segs := strings.Split(strings.Trim(u.Path, "/"), "/"); len(segs) > 0 && segs[len(segs)-1] != "" {
		key += "/" + segs[len(segs)-1]
	}

	r.logger.Debugw("Derived group key from target reference",
		"target_ref", targetRef,
		"group_key", key)
	return key, nil
}
