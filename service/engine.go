package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/felipemchdev/policyforge-core/config"
	"github.com/felipemchdev/policyforge-core/pkg/metrics"
)

// FailureKind classifies why an upstream call produced no response.
type FailureKind string

const (
	FailureNotConfigured FailureKind = "not_configured"
	FailureNetwork       FailureKind = "network_error"
	FailureTimeout       FailureKind = "timeout"
)

// EngineFailure is a classified transport or configuration failure. It is the
// only failure shape that crosses the client boundary; raw transport errors
// never reach a handler.
type EngineFailure struct {
	Kind     FailureKind
	Err      error
	Duration time.Duration
}

func (f *EngineFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("engine call failed (%s): %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("engine call failed (%s)", f.Kind)
}

func (f *EngineFailure) Unwrap() error { return f.Err }

// EngineCall is a completed round trip to the engine. Duration is wall-clock
// time around the call, used for health and degradation reporting.
type EngineCall struct {
	Response *http.Response
	Duration time.Duration
}

// EngineClient performs HTTP calls to the upstream decision engine with a
// bounded timeout. It never retries: read retries belong to the poller, and
// submits must not be duplicated.
type EngineClient struct {
	config     *config.EngineConfig
	httpClient *http.Client
}

func NewEngineClient(cfg *config.EngineConfig) *EngineClient {
	return &EngineClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
	}
}

// Call issues one HTTP request against the engine. The base URL is resolved
// first so an unset endpoint is reported as not_configured rather than
// mistaken for an unreachable one.
func (c *EngineClient) Call(ctx context.Context, method, path string, body io.Reader) (*EngineCall, *EngineFailure) {
	base, err := c.config.ResolveBaseURL()
	if err != nil {
		metrics.ObserveUpstream(string(FailureNotConfigured), 0)
		return nil, &EngineFailure{Kind: FailureNotConfigured, Err: err}
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		metrics.ObserveUpstream(string(FailureNetwork), 0)
		return nil, &EngineFailure{Kind: FailureNetwork, Err: err}
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Cache-Control", "no-store")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		kind := FailureNetwork
		if isTimeout(err) {
			kind = FailureTimeout
		}
		metrics.ObserveUpstream(string(kind), duration)
		return nil, &EngineFailure{Kind: kind, Err: err, Duration: duration}
	}

	metrics.ObserveUpstream("ok", duration)
	return &EngineCall{Response: resp, Duration: duration}, nil
}

// Get issues a GET against the engine.
func (c *EngineClient) Get(ctx context.Context, path string) (*EngineCall, *EngineFailure) {
	return c.Call(ctx, http.MethodGet, path, nil)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
