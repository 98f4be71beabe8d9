package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation with the MQ assistant.

The assistant remembers the queue manager you are talking about, so
follow-up questions like "Is it running?" go to the right one.

Commands:
  /new        start a new conversation
  /stats      show session statistics
  /config     show the effective configuration
  /examples   list example questions
  /help       show this help
  /quit       leave

Examples:
  mqassist chat
  mqassist chat --user alice`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().String("user", "", "User id (default: user_<random>)")
	chatCmd.Flags().Bool("no-spinner", false, "Disable the progress spinner")
}

// exampleQuestions are offered by /examples.
var exampleQuestions = []struct {
	Label    string
	Question string
}{
	{"Status", "Is SRVIG running?"},
	{"Queue Count", "How many queues in SRVIG?"},
	{"Search Queues", "Show me SYSTEM queues in SRVIG"},
	{"Queue Details", "Tell me about DEV.QUEUE.1 in SRVIG"},
	{"Channels", "How many channels does SRVIG have?"},
	{"List QMgrs", "List all queue managers"},
}

const chatHelp = `Type a question about your IBM MQ environment.
Be specific with queue manager names; the assistant remembers the last one you used.

  /new        start a new conversation
  /stats      show session statistics
  /config     show the effective configuration
  /examples   list example questions
  /quit       leave`

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	app, err := NewApp(cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	userID, _ := cmd.Flags().GetString("user")
	noSpinner, _ := cmd.Flags().GetBool("no-spinner")

	repl := newChatREPL(app, os.Stdin, os.Stdout, userID)
	if !noSpinner {
		repl.spinnerOut = os.Stderr
	}
	return repl.Run(cmd.Context())
}

// chatREPL is a line-oriented conversation loop bound to one session at a time.
type chatREPL struct {
	app        *App
	in         io.Reader
	out        io.Writer
	spinnerOut io.Writer // nil disables the spinner

	userID    string
	sessionID string
	lastSweep time.Time
	now       func() time.Time
}

func newChatREPL(app *App, in io.Reader, out io.Writer, userID string) *chatREPL {
	if userID == "" {
		userID = newUserID()
	}
	return &chatREPL{
		app:       app,
		in:        in,
		out:       out,
		userID:    userID,
		sessionID: newSessionID(),
		now:       time.Now,
	}
}

// Run reads lines until EOF or /quit.
func (r *chatREPL) Run(ctx context.Context) error {
	r.lastSweep = r.now()

	fmt.Fprintln(r.out, "IBM MQ Assistant")
	fmt.Fprintf(r.out, "Bridge: %s | Model: %s | Type /help for commands.\n\n", r.app.Config.Bridge.URL, r.app.Config.Bridge.Model)

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(r.out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := r.command(line); quit {
				return nil
			}
			continue
		}

		r.maybeSweep()
		answer := r.ask(ctx, line)
		fmt.Fprintf(r.out, "Assistant: %s\n\n", answer)
	}
}

func (r *chatREPL) command(line string) (quit bool) {
	switch strings.ToLower(strings.Fields(line)[0]) {
	case "/quit", "/exit":
		return true
	case "/new":
		r.sessionID = newSessionID()
		fmt.Fprintln(r.out, "Started a new conversation.")
	case "/stats":
		stats := r.app.Sessions.Stats()
		fmt.Fprintf(r.out, "Active Sessions: %d\nTotal Sessions: %d\n", stats.Active, stats.Total)
	case "/config":
		c := r.app.Config
		fmt.Fprintf(r.out, "Bridge: %s\nModel: %s\nMax History: %d\nSession Timeout: %d min\n",
			c.Bridge.URL, c.Bridge.Model, c.Session.MaxHistory, c.Session.TimeoutMinutes)
	case "/examples":
		for _, ex := range exampleQuestions {
			fmt.Fprintf(r.out, "  %-14s %s\n", ex.Label, ex.Question)
		}
	case "/help":
		fmt.Fprintln(r.out, chatHelp)
	default:
		fmt.Fprintf(r.out, "Unknown command %s. Type /help for commands.\n", line)
	}
	fmt.Fprintln(r.out)
	return false
}

// maybeSweep drops expired sessions at most once per sweep interval.
func (r *chatREPL) maybeSweep() {
	now := r.now()
	if now.Sub(r.lastSweep) < time.Duration(r.app.Config.Session.SweepInterval) {
		return
	}
	r.lastSweep = now
	r.app.Sessions.SweepExpired()
}

func (r *chatREPL) ask(ctx context.Context, text string) string {
	if r.spinnerOut == nil {
		answer, _ := r.app.Handle(ctx, r.sessionID, r.userID, text)
		return answer
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(r.spinnerOut),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetDescription("Thinking..."),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan string, 1)
	go func() {
		answer, _ := r.app.Handle(ctx, r.sessionID, r.userID, text)
		done <- answer
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case answer := <-done:
			_ = bar.Finish()
			return answer
		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
}
