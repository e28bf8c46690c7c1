// Package api is the resilient client of the vault backend. Each logical
// operation maps to an ordered list of candidate endpoints that are
// probed one after another until one accepts the call.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"familyvault/internal/logging"
	"familyvault/internal/model"
)

const (
	// RequestIDHeader is propagated to the backend on every attempt.
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes = 4 << 20
)

// TokenSource supplies the bearer token for each call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Caller is what controllers depend on.
type Caller interface {
	Call(ctx context.Context, op Operation, req Request) (*model.Envelope, error)
	URL(op Operation, params map[string]string) (string, error)
}

// Client implements Caller over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	metrics *Metrics
	tracer  trace.Tracer
}

var _ Caller = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default otelhttp-instrumented client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-attempt timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithMetrics records probe metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a Client rooted at baseURL, e.g. http://localhost:5000/api.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens: tokens,
		tracer: otel.Tracer("familyvault/internal/api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL resolves the first candidate of op without calling it.
func (c *Client) URL(op Operation, params map[string]string) (string, error) {
	if len(op.Paths) == 0 {
		return "", fmt.Errorf("%s: no candidate endpoints", op.Name)
	}
	p, err := expand(op.Paths[0], params)
	if err != nil {
		return "", err
	}
	return c.baseURL + p, nil
}

type probeKind int

const (
	probeOK probeKind = iota
	// probeMiss is a transport failure: no server answered.
	probeMiss
	// probeRejected is a server answer that was non-2xx or not successful.
	probeRejected
)

func (k probeKind) String() string {
	switch k {
	case probeOK:
		return "ok"
	case probeMiss:
		return "miss"
	default:
		return "rejected"
	}
}

type probeResult struct {
	kind    probeKind
	env     *model.Envelope
	status  int
	message string
	err     error
}

// Call runs op against its candidates strictly in order and returns the
// envelope of the first 2xx response whose success flag is truthy.
// Later candidates are never contacted once one succeeds.
func (c *Client) Call(ctx context.Context, op Operation, req Request) (*model.Envelope, error) {
	ctx, span := c.tracer.Start(ctx, "api."+op.Name, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	start := time.Now()
	log := logging.FromContext(ctx).With(slog.String("operation", op.Name))

	token, err := c.tokens.Token(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "not authenticated")
		c.metrics.call(op.Name, "unauthenticated", time.Since(start))
		return nil, err
	}

	body, contentType, err := req.encode()
	if err != nil {
		return nil, err
	}

	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	var (
		lastStatus  int
		lastMessage string
		lastErr     error
		misses      int
	)
	for i, tmpl := range op.Paths {
		path, err := expand(tmpl, req.Params)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op.Name, err)
		}
		target := c.baseURL + path
		if len(req.Query) > 0 {
			target += "?" + req.Query.Encode()
		}

		res := c.attempt(ctx, op.Method, target, body, contentType, token, requestID)
		c.metrics.attempt(op.Name, res.kind)
		attemptLog := log.With(slog.Int("candidate", i), slog.String("path", path))

		switch res.kind {
		case probeOK:
			attemptLog.Debug("candidate accepted", slog.Int("status", res.status))
			span.SetAttributes(attribute.Int("vault.candidate", i), attribute.String("vault.path", path))
			c.metrics.call(op.Name, "ok", time.Since(start))
			return res.env, nil
		case probeMiss:
			misses++
			lastErr = res.err
			attemptLog.Warn("candidate unreachable", slog.String("error", res.err.Error()))
		case probeRejected:
			lastStatus = res.status
			if res.message != "" {
				lastMessage = res.message
			}
			attemptLog.Info("candidate rejected", slog.Int("status", res.status), slog.String("message", res.message))
		}
	}

	if len(op.Paths) > 0 && misses == len(op.Paths) {
		span.SetStatus(codes.Error, "network error")
		c.metrics.call(op.Name, "network_error", time.Since(start))
		return nil, &NetworkError{Operation: op.Name, Err: lastErr}
	}

	if lastMessage == "" {
		lastMessage = fmt.Sprintf("Failed to %s. Please try again later.", humanize(op.Name))
	}
	span.SetStatus(codes.Error, lastMessage)
	c.metrics.call(op.Name, "failed", time.Since(start))
	return nil, &OperationFailed{
		Operation: op.Name,
		Status:    lastStatus,
		Message:   lastMessage,
		Attempts:  len(op.Paths),
	}
}

func (c *Client) attempt(ctx context.Context, method, target string, body []byte, contentType, token, requestID string) probeResult {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return probeResult{kind: probeMiss, err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return probeResult{kind: probeMiss, err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return probeResult{kind: probeMiss, err: fmt.Errorf("read body: %w", err)}
	}

	var env model.Envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res := probeResult{kind: probeRejected, status: resp.StatusCode}
		if decodeErr == nil {
			res.message = env.Message
		}
		return res
	}
	if decodeErr != nil {
		return probeResult{kind: probeRejected, status: resp.StatusCode, err: errors.Join(errors.New("invalid JSON response"), decodeErr)}
	}
	if !env.Success {
		return probeResult{kind: probeRejected, status: resp.StatusCode, message: env.Message}
	}
	return probeResult{kind: probeOK, status: resp.StatusCode, env: &env}
}

// humanize turns "acceptInvitation" into "accept invitation".
func humanize(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte(' ')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
