package cmd

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question",
	Long: `Ask one question and print the answer.

Use --qmgr to set the queue manager the question is about, so vague
questions like "Is it running?" are resolved against it.

Examples:
  mqassist ask "How many queues in SRVIG?"
  mqassist ask --qmgr SRVIG "Is it running?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().String("qmgr", "", "Queue manager the question is about")
	askCmd.Flags().String("user", "", "User id (default: user_<random>)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	app, err := NewApp(cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	qmgr, _ := cmd.Flags().GetString("qmgr")
	userID, _ := cmd.Flags().GetString("user")
	if userID == "" {
		userID = newUserID()
	}

	sessionID := newSessionID()
	if qmgr = strings.TrimSpace(qmgr); qmgr != "" {
		app.Sessions.GetOrCreate(sessionID, userID).RememberQueueManager(qmgr)
	}

	answer, _ := app.Handle(cmd.Context(), sessionID, userID, strings.Join(args, " "))
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}
