package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siddhant-K-code/mqassist/pkg/agent"
	"github.com/Siddhant-K-code/mqassist/pkg/session"
	"github.com/Siddhant-K-code/mqassist/pkg/transcript"
)

type echoAsker struct {
	mu        sync.Mutex
	questions []string
}

func (e *echoAsker) Ask(_ context.Context, q string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.questions = append(e.questions, q)
	return "echo: " + q
}

type panicAsker struct{}

func (panicAsker) Ask(context.Context, string) string { panic("boom") }

func testConfig() *Config {
	return &Config{
		Bridge:     BridgeConfig{URL: "http://bridge.test/api/chat", Model: "llama3.1:8b", Timeout: Duration(time.Second)},
		Session:    SessionConfig{TimeoutMinutes: 30, MaxHistory: 10, SweepInterval: Duration(5 * time.Minute)},
		Transcript: TranscriptConfig{Retention: Duration(time.Hour)},
		Telemetry:  TelemetryConfig{Exporter: "none"},
		ServerAddr: ":0",
	}
}

func newTestApp(t *testing.T, cfg *Config, asker agent.Asker) (*App, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	app, err := NewApp(cfg, reg, withAsker(asker))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app, reg
}

func postChat(t *testing.T, h http.Handler, req ChatRequest) (*httptest.ResponseRecorder, ChatResponse) {
	t.Helper()
	body, _ := json.Marshal(req)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(body)))

	var resp ChatResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestChatEndpointConversation(t *testing.T) {
	asker := &echoAsker{}
	app, reg := newTestApp(t, testConfig(), asker)
	h := newServeMux(app, reg)

	rec, first := postChat(t, h, ChatRequest{Message: "How many queues in SRVIG?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, first.SessionID, "a session id is minted")
	assert.True(t, strings.HasPrefix(first.UserID, "user_"))
	assert.Len(t, first.UserID, len("user_")+8)
	assert.Equal(t, "echo: How many queues in SRVIG?", first.Answer)

	_, second := postChat(t, h, ChatRequest{SessionID: first.SessionID, Message: "Is it running?"})
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, "echo: Is it running? (Queue manager: SRVIG)", second.Answer)

	// A different session has no remembered queue manager.
	_, other := postChat(t, h, ChatRequest{SessionID: "other", Message: "Is it running?"})
	assert.Equal(t, agent.ClarificationPrompt, other.Answer)

	assert.Equal(t, []string{
		"How many queues in SRVIG?",
		"Is it running? (Queue manager: SRVIG)",
	}, asker.questions)
}

func TestChatEndpointReportsSessionOwner(t *testing.T) {
	app, reg := newTestApp(t, testConfig(), &echoAsker{})
	h := newServeMux(app, reg)

	_, first := postChat(t, h, ChatRequest{SessionID: "shared", UserID: "alice", Message: "hello"})
	assert.Equal(t, "alice", first.UserID)

	_, second := postChat(t, h, ChatRequest{SessionID: "shared", UserID: "mallory", Message: "hello again"})
	assert.Equal(t, "alice", second.UserID, "a live session keeps its owner")
}

func TestChatEndpointValidation(t *testing.T) {
	app, reg := newTestApp(t, testConfig(), &echoAsker{})
	h := newServeMux(app, reg)

	rec, _ := postChat(t, h, ChatRequest{Message: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "message is required")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestChatEndpointRecoversFromPanic(t *testing.T) {
	app, reg := newTestApp(t, testConfig(), panicAsker{})
	h := newServeMux(app, reg)

	rec, resp := postChat(t, h, ChatRequest{SessionID: "s", Message: "How many queues in SRVIG?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "❌ Error: boom\n\nPlease check if MCP bridge is running at http://bridge.test/api/chat", resp.Answer)

	// The session lock is released after the panic.
	done := make(chan struct{})
	go func() {
		postChat(t, h, ChatRequest{SessionID: "s", Message: "again"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session stayed locked after panic")
	}
}

func TestSessionEndpoints(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	app, reg := newTestApp(t, testConfig(), &echoAsker{})
	app.Sessions = session.NewManager(app.Config.SessionManagerConfig(), session.WithClock(func() time.Time { return now }))
	h := newServeMux(app, reg)

	postChat(t, h, ChatRequest{SessionID: "a", Message: "hello"})
	postChat(t, h, ChatRequest{SessionID: "b", Message: "hello"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats session.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, session.Stats{Total: 2, Active: 2}, stats)

	now = now.Add(31 * time.Minute)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sessions/sweep", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var sweep SweepResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sweep))
	assert.Equal(t, 2, sweep.Removed)
	assert.Equal(t, session.Stats{}, sweep.Stats)
}

func TestConfigEndpoint(t *testing.T) {
	app, reg := newTestApp(t, testConfig(), &echoAsker{})
	h := newServeMux(app, reg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	b := got["bridge"].(map[string]any)
	assert.Equal(t, "http://bridge.test/api/chat", b["url"])
	assert.Equal(t, "1s", b["timeout"])
	s := got["session"].(map[string]any)
	assert.EqualValues(t, 10, s["max_history"])
}

func TestTranscriptEndpoints(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		app, reg := newTestApp(t, testConfig(), &echoAsker{})
		h := newServeMux(app, reg)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/transcript/recent", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.Transcript.DBPath = ":memory:"
		app, reg := newTestApp(t, cfg, &echoAsker{})
		h := newServeMux(app, reg)

		postChat(t, h, ChatRequest{SessionID: "s1", Message: "What's the status?"})
		postChat(t, h, ChatRequest{SessionID: "s1", Message: "How many queues in SRVIG?"})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/transcript/recent?session_id=s1&limit=1", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var recent transcript.RecentResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recent))
		require.Len(t, recent.Exchanges, 1)
		assert.Equal(t, "SRVIG", recent.Exchanges[0].QueueMgr)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/transcript/recent?limit=x", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/transcript/stats", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var stats transcript.Stats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		assert.Equal(t, 2, stats.TotalExchanges)
		assert.Equal(t, 1, stats.ByOutcome[transcript.OutcomeClarification])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	app, reg := newTestApp(t, testConfig(), &echoAsker{})
	h := newServeMux(app, reg)

	postChat(t, h, ChatRequest{Message: "What's the status?"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mqassist_agent_messages_total{outcome="clarification"} 1`)
}
