// Package bridge is the client for the remote question-answering service.
// The bridge accepts a single standalone question in an Ollama-style chat
// request and answers with one assistant message.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Siddhant-K-code/mqassist/pkg/metrics"
	"github.com/Siddhant-K-code/mqassist/pkg/textutil"
)

// Config holds bridge client configuration.
type Config struct {
	// URL is the chat endpoint. Default: http://localhost:8090/api/chat.
	URL string

	// Model is passed through to the bridge. Default: llama3.1:8b.
	Model string

	// Timeout bounds a whole request. The bridge may run on CPU-only
	// hardware, so the default is generous. Default: 1200s.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:     "http://localhost:8090/api/chat",
		Model:   "llama3.1:8b",
		Timeout: 1200 * time.Second,
	}
}

// Client calls the bridge over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout is overwritten with
// the configured ceiling.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records call outcomes and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a bridge client. Zero config fields take defaults.
func NewClient(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     slog.Default().With(slog.String("component", "bridge")),
		tracer:     otel.Tracer("github.com/Siddhant-K-code/mqassist/pkg/bridge"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Timeout = cfg.Timeout
	return c
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Ask sends a standalone question and returns the answer. It never fails:
// every error is translated into a descriptive answer text.
func (c *Client) Ask(ctx context.Context, question string) string {
	answer, err := c.Complete(ctx, question)
	if err != nil {
		return UserMessage(err)
	}
	return answer
}

// Complete sends a standalone question and returns the answer, or an *Error
// describing why none could be obtained.
func (c *Client) Complete(ctx context.Context, question string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "bridge.ask", trace.WithAttributes(
		attribute.String("bridge.model", c.cfg.Model),
		attribute.Int("bridge.question_length", len(question)),
	))
	defer span.End()

	start := time.Now()
	c.logger.Debug("bridge call", slog.String("question", textutil.Truncate(question, 100)), slog.String("url", c.cfg.URL))

	answer, err := c.complete(ctx, question, start)
	elapsed := time.Since(start)

	if err != nil {
		outcome := string(KindUnknown)
		var bErr *Error
		if errors.As(err, &bErr) {
			outcome = string(bErr.Kind)
		}
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("bridge.outcome", outcome))
		c.metrics.ObserveBridgeCall(outcome, elapsed)
		c.logger.Warn("bridge call failed",
			slog.String("outcome", outcome),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err),
		)
		return "", err
	}

	span.SetAttributes(
		attribute.String("bridge.outcome", "ok"),
		attribute.Int("bridge.answer_length", len(answer)),
	)
	c.metrics.ObserveBridgeCall("ok", elapsed)
	c.logger.Info("bridge call succeeded",
		slog.Duration("elapsed", elapsed),
		slog.Int("chars", len(answer)),
	)
	return answer, nil
}

func (c *Client) complete(ctx context.Context, question string, start time.Time) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.cfg.Model,
		Messages: []chatMessage{{Role: "user", Content: question}},
		Stream:   false,
	})
	if err != nil {
		return "", c.fail(KindUnknown, start, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", c.fail(KindUnknown, start, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.fail(classify(err), start, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		e := c.fail(KindHTTPStatus, start, fmt.Errorf("unexpected status %s", resp.Status))
		e.StatusCode = resp.StatusCode
		return "", e
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.fail(classify(err), start, fmt.Errorf("read response: %w", err))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", c.fail(KindBadResponse, start, fmt.Errorf("decode response: %w", err))
	}
	if parsed.Message == nil || parsed.Message.Content == nil {
		return "", c.fail(KindBadResponse, start, fmt.Errorf("response has no message.content: %s", textutil.Truncate(string(raw), 200)))
	}
	return *parsed.Message.Content, nil
}

func (c *Client) fail(kind Kind, start time.Time, err error) *Error {
	return &Error{
		Kind:     kind,
		Endpoint: c.cfg.URL,
		Elapsed:  time.Since(start),
		Err:      err,
	}
}

// classify maps a transport error to a failure kind. Timeouts win over
// connection errors, so a dial that times out is reported as a timeout.
func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindConnect
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnect
	}
	return KindUnknown
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse uses pointers so a missing field can be told apart from an
// empty answer.
type chatResponse struct {
	Message *struct {
		Role    string  `json:"role"`
		Content *string `json:"content"`
	} `json:"message"`
}
