package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Siddhant-K-code/mqassist/pkg/agent"
	"github.com/Siddhant-K-code/mqassist/pkg/bridge"
	"github.com/Siddhant-K-code/mqassist/pkg/metrics"
	"github.com/Siddhant-K-code/mqassist/pkg/session"
	"github.com/Siddhant-K-code/mqassist/pkg/transcript"
)

// App wires the session registry, bridge client, agent and the optional
// transcript store. Used by chat, ask, serve and mcp.
type App struct {
	Config   *Config
	Metrics  *metrics.Metrics
	Sessions *session.Manager
	Bridge   *bridge.Client
	Agent    *agent.Agent

	// Transcript is nil when no transcript database is configured.
	Transcript *transcript.SQLiteStore
}

// appOption customises NewApp.
type appOption func(*appOptions)

type appOptions struct {
	asker agent.Asker
}

// withAsker replaces the bridge client as the agent's answer source.
func withAsker(a agent.Asker) appOption {
	return func(o *appOptions) { o.asker = a }
}

// NewApp builds the application from cfg, registering metrics with reg.
func NewApp(cfg *Config, reg prometheus.Registerer, opts ...appOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	m := metrics.MustNew(reg)

	a := &App{
		Config:  cfg,
		Metrics: m,
		Sessions: session.NewManager(cfg.SessionManagerConfig(),
			session.WithMetrics(m),
			session.WithLogger(slog.Default().With(slog.String("component", "session"))),
		),
		Bridge: bridge.NewClient(cfg.BridgeClientConfig(),
			bridge.WithMetrics(m),
			bridge.WithLogger(slog.Default().With(slog.String("component", "bridge"))),
		),
	}

	agentOpts := []agent.Option{
		agent.WithMetrics(m),
		agent.WithLogger(slog.Default().With(slog.String("component", "agent"))),
	}

	if cfg.Transcript.DBPath != "" {
		store, err := transcript.NewSQLiteStore(cfg.Transcript.DBPath, transcript.Config{
			Retention:     cfg.Transcript.retention(),
			PruneInterval: transcript.DefaultConfig().PruneInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("open transcript: %w", err)
		}
		a.Transcript = store
		agentOpts = append(agentOpts, agent.WithRecorder(store))
	}

	var asker agent.Asker = a.Bridge
	if o.asker != nil {
		asker = o.asker
	}
	a.Agent = agent.New(asker, agentOpts...)

	return a, nil
}

// Handle answers text within the session identified by sessionID, creating
// or replacing the session as needed. It returns the answer and the user
// that owns the session, which for a live session may differ from userID.
// A panic while handling is turned into an error answer that points at the
// bridge.
func (a *App) Handle(ctx context.Context, sessionID, userID, text string) (answer, owner string) {
	owner = userID
	defer func() {
		if r := recover(); r != nil {
			slog.Error("handle message panicked", slog.Any("panic", r))
			answer = fmt.Sprintf("❌ Error: %v\n\nPlease check if MCP bridge is running at %s", r, a.Config.Bridge.URL)
		}
	}()

	sess := a.Sessions.GetOrCreate(sessionID, userID)
	owner = sess.UserID
	answer = a.Agent.HandleMessage(ctx, sess, text)
	return answer, owner
}

// Close releases the transcript store.
func (a *App) Close() error {
	if a.Transcript != nil {
		return a.Transcript.Close()
	}
	return nil
}

func newSessionID() string {
	return uuid.NewString()
}

// newUserID returns a default user id of the form user_<8 hex>.
func newUserID() string {
	return "user_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
