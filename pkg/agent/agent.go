// Package agent turns raw user utterances into standalone questions for the
// bridge. It asks for a queue manager when a question needs one and none is
// known, resolves vague references against the queue manager remembered for
// the session, and records each exchange in the session history.
package agent

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Siddhant-K-code/mqassist/pkg/metrics"
	"github.com/Siddhant-K-code/mqassist/pkg/session"
	"github.com/Siddhant-K-code/mqassist/pkg/textutil"
	"github.com/Siddhant-K-code/mqassist/pkg/transcript"
)

// Asker answers a standalone question. Implementations must not fail; errors
// are reported as answer text.
type Asker interface {
	Ask(ctx context.Context, question string) string
}

// Recorder receives every handled exchange.
type Recorder interface {
	Record(ctx context.Context, ex transcript.Exchange) error
}

// Agent handles messages for sessions. It holds no per-session state, so one
// Agent serves every session of a Manager.
type Agent struct {
	bridge   Asker
	recorder Recorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures an Agent.
type Option func(*Agent)

// WithRecorder records exchanges to r. Recording failures are logged only.
func WithRecorder(r Recorder) Option {
	return func(a *Agent) {
		a.recorder = r
	}
}

// WithMetrics counts message outcomes and rewrites.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Agent) {
		a.metrics = m
	}
}

// WithLogger sets the agent's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Agent that forwards questions to bridge.
func New(bridge Asker, opts ...Option) *Agent {
	a := &Agent{
		bridge: bridge,
		logger: slog.Default().With(slog.String("component", "agent")),
		tracer: otel.Tracer("github.com/Siddhant-K-code/mqassist/pkg/agent"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HandleMessage answers one user message within sess. Calls for the same
// session are serialised; calls for different sessions run in parallel.
// It always returns a non-empty answer unless the bridge answers with
// empty text.
func (a *Agent) HandleMessage(ctx context.Context, sess *session.Session, text string) string {
	sess.Lock()
	defer sess.Unlock()

	ctx, span := a.tracer.Start(ctx, "agent.handle_message", trace.WithAttributes(
		attribute.String("session.id", sess.ID),
	))
	defer span.End()

	start := a.now()
	logger := a.logger.With(slog.String("session", textutil.ShortID(sess.ID)))

	sess.Touch()
	sess.Append(session.RoleUser, text)
	logger.Debug("user message", slog.String("text", textutil.Truncate(text, 100)))

	remembered := sess.Context().LastQueueManager
	if remembered == "" && NeedsQueueManager(text) {
		sess.Append(session.RoleAssistant, ClarificationPrompt)
		span.SetAttributes(attribute.String("agent.outcome", metrics.OutcomeClarification))
		a.metrics.IncMessage(metrics.OutcomeClarification)
		logger.Info("asked for queue manager")

		a.record(ctx, logger, transcript.Exchange{
			SessionID: sess.ID,
			UserID:    sess.UserID,
			Question:  text,
			Answer:    ClarificationPrompt,
			Outcome:   transcript.OutcomeClarification,
			Elapsed:   a.now().Sub(start),
		})
		return ClarificationPrompt
	}

	res := Enhance(text, remembered)
	switch res.Kind {
	case RewriteRemember:
		sess.RememberQueueManager(res.Remember)
		logger.Info("stored queue manager", slog.String("qmgr", res.Remember))
	case RewriteSubstitute, RewriteAnnotate:
		logger.Info("question enhanced",
			slog.String("from", text),
			slog.String("to", res.Question),
			slog.String("kind", res.Kind),
		)
	}
	if res.Kind != RewriteNone {
		a.metrics.IncRewrite(res.Kind)
	}

	answer := a.bridge.Ask(ctx, res.Question)

	if dropped := sess.Append(session.RoleAssistant, answer); dropped > 0 {
		logger.Debug("history trimmed", slog.Int("dropped", dropped), slog.Int("kept", len(sess.History())))
	}

	span.SetAttributes(
		attribute.String("agent.outcome", metrics.OutcomeForwarded),
		attribute.String("agent.rewrite", res.Kind),
	)
	a.metrics.IncMessage(metrics.OutcomeForwarded)

	a.record(ctx, logger, transcript.Exchange{
		SessionID:  sess.ID,
		UserID:     sess.UserID,
		Question:   text,
		Standalone: res.Question,
		Answer:     answer,
		Outcome:    transcript.OutcomeAnswered,
		Rewrite:    res.Kind,
		QueueMgr:   sess.Context().LastQueueManager,
		Elapsed:    a.now().Sub(start),
	})
	return answer
}

func (a *Agent) record(ctx context.Context, logger *slog.Logger, ex transcript.Exchange) {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.Record(ctx, ex); err != nil {
		logger.Warn("record exchange", slog.Any("error", err))
	}
}
