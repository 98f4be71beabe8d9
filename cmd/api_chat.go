package cmd

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/Siddhant-K-code/mqassist/pkg/session"
	"github.com/Siddhant-K-code/mqassist/pkg/transcript"
)

// ChatAPI handles conversation HTTP endpoints.
type ChatAPI struct {
	app *App
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"` // empty starts a new conversation
	UserID    string `json:"user_id,omitempty"`
	Message   string `json:"message"`
}

// ChatResponse is the reply to POST /v1/chat.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Answer    string `json:"answer"`
}

// SweepResponse is the reply to POST /v1/sessions/sweep.
type SweepResponse struct {
	Removed int           `json:"removed"`
	Stats   session.Stats `json:"stats"`
}

// RegisterChatRoutes adds conversation endpoints to the given mux.
func (c *ChatAPI) RegisterChatRoutes(mux *http.ServeMux, mw func(string, http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/v1/chat", mw("/v1/chat", c.handleChat))
	mux.HandleFunc("/v1/sessions/stats", mw("/v1/sessions/stats", c.handleStats))
	mux.HandleFunc("/v1/sessions/sweep", mw("/v1/sessions/sweep", c.handleSweep))
	mux.HandleFunc("/v1/config", mw("/v1/config", c.handleConfig))
	mux.HandleFunc("/v1/transcript/recent", mw("/v1/transcript/recent", c.handleTranscriptRecent))
	mux.HandleFunc("/v1/transcript/stats", mw("/v1/transcript/stats", c.handleTranscriptStats))
}

func (c *ChatAPI) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSONError(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = newSessionID()
	}
	if req.UserID == "" {
		req.UserID = newUserID()
	}

	answer, owner := c.app.Handle(r.Context(), req.SessionID, req.UserID, req.Message)

	writeJSON(w, ChatResponse{
		SessionID: req.SessionID,
		UserID:    owner,
		Answer:    answer,
	})
}

func (c *ChatAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, c.app.Sessions.Stats())
}

func (c *ChatAPI) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	removed := c.app.Sessions.SweepExpired()
	writeJSON(w, SweepResponse{Removed: removed, Stats: c.app.Sessions.Stats()})
}

func (c *ChatAPI) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, c.app.Config)
}

func (c *ChatAPI) handleTranscriptRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if c.app.Transcript == nil {
		writeJSONError(w, "transcript is disabled", http.StatusNotFound)
		return
	}

	req := transcript.RecentRequest{SessionID: r.URL.Query().Get("session_id")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		req.Limit = n
	}

	result, err := c.app.Transcript.Recent(r.Context(), req)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func (c *ChatAPI) handleTranscriptStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if c.app.Transcript == nil {
		writeJSONError(w, "transcript is disabled", http.StatusNotFound)
		return
	}

	stats, err := c.app.Transcript.Stats(r.Context())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
