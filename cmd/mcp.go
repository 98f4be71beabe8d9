package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Siddhant-K-code/mqassist/pkg/transcript"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the assistant as MCP tools over stdio",
	Long: `Expose the assistant to MCP clients over stdio.

Tools:
  ask                answer a message within a session
  session_stats      total and active sessions
  sweep_sessions     drop expired sessions now
  transcript_recent  latest recorded exchanges (needs TRANSCRIPT_DB)
  transcript_stats   transcript statistics (needs TRANSCRIPT_DB)

Examples:
  mqassist mcp
  TRANSCRIPT_DB=mqassist.db mqassist mcp`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// MCPServer adapts the application to MCP tool calls.
type MCPServer struct {
	app *App
}

func runMCP(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	app, err := NewApp(cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	m := &MCPServer{app: app}
	return server.ServeStdio(m.newServer())
}

func (m *MCPServer) newServer() *server.MCPServer {
	s := server.NewMCPServer("mqassist", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Ask the IBM MQ assistant a question. Follow-up questions in the same session reuse the last queue manager mentioned."),
		mcp.WithString("message", mcp.Required(), mcp.Description("The question, e.g. 'How many queues in SRVIG?'")),
		mcp.WithString("session_id", mcp.Description("Conversation id; omit to start a new conversation")),
		mcp.WithString("user_id", mcp.Description("User id recorded with a new session")),
	), m.handleAsk)

	s.AddTool(mcp.NewTool("session_stats",
		mcp.WithDescription("Count total and active conversation sessions"),
	), m.handleSessionStats)

	s.AddTool(mcp.NewTool("sweep_sessions",
		mcp.WithDescription("Remove expired conversation sessions"),
	), m.handleSweepSessions)

	s.AddTool(mcp.NewTool("transcript_recent",
		mcp.WithDescription("List the latest recorded exchanges, newest first"),
		mcp.WithString("session_id", mcp.Description("Only exchanges of this session")),
		mcp.WithNumber("limit", mcp.Description("Maximum exchanges to return (default 20)")),
	), m.handleTranscriptRecent)

	s.AddTool(mcp.NewTool("transcript_stats",
		mcp.WithDescription("Summarise recorded exchanges by outcome and queue manager"),
	), m.handleTranscriptStats)

	return s
}

func (m *MCPServer) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	message, _ := args["message"].(string)
	if message == "" {
		return mcp.NewToolResultError("message is required"), nil
	}

	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		sessionID = newSessionID()
	}
	userID, _ := args["user_id"].(string)
	if userID == "" {
		userID = newUserID()
	}

	answer, owner := m.app.Handle(ctx, sessionID, userID, message)

	data, _ := json.MarshalIndent(ChatResponse{SessionID: sessionID, UserID: owner, Answer: answer}, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (m *MCPServer) handleSessionStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, _ := json.MarshalIndent(m.app.Sessions.Stats(), "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (m *MCPServer) handleSweepSessions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	removed := m.app.Sessions.SweepExpired()
	data, _ := json.MarshalIndent(SweepResponse{Removed: removed, Stats: m.app.Sessions.Stats()}, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (m *MCPServer) handleTranscriptRecent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if m.app.Transcript == nil {
		return mcp.NewToolResultError("transcript is disabled; set TRANSCRIPT_DB"), nil
	}
	args := request.GetArguments()

	req := transcript.RecentRequest{}
	req.SessionID, _ = args["session_id"].(string)
	if v, ok := args["limit"].(float64); ok && v > 0 {
		req.Limit = int(v)
	}

	result, err := m.app.Transcript.Recent(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recent: %v", err)), nil
	}

	data, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (m *MCPServer) handleTranscriptStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if m.app.Transcript == nil {
		return mcp.NewToolResultError("transcript is disabled; set TRANSCRIPT_DB"), nil
	}

	stats, err := m.app.Transcript.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats: %v", err)), nil
	}

	data, _ := json.MarshalIndent(stats, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

