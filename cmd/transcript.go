package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Siddhant-K-code/mqassist/pkg/transcript"
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Inspect and prune the exchange transcript",
	Long: `Inspect and prune the audit log of recorded exchanges.

The transcript is written by chat, ask, serve and mcp when a database
path is configured (--db or TRANSCRIPT_DB). It is never used to restore
conversations.

Examples:
  mqassist transcript stats --db mqassist.db
  mqassist transcript recent --db mqassist.db --session-id abc --limit 5
  mqassist transcript prune --db mqassist.db --older-than 168h`,
}

var transcriptStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show transcript statistics",
	RunE:  runTranscriptStats,
}

var transcriptRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the latest exchanges",
	RunE:  runTranscriptRecent,
}

var transcriptPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove exchanges older than the retention window",
	RunE:  runTranscriptPrune,
}

func init() {
	rootCmd.AddCommand(transcriptCmd)
	transcriptCmd.AddCommand(transcriptStatsCmd, transcriptRecentCmd, transcriptPruneCmd)

	// Shared flags
	transcriptCmd.PersistentFlags().String("db", "", "SQLite transcript path (default: TRANSCRIPT_DB)")

	// Recent flags
	transcriptRecentCmd.Flags().String("session-id", "", "Only exchanges of this session")
	transcriptRecentCmd.Flags().Int("limit", 20, "Maximum exchanges to return")

	// Prune flags
	transcriptPruneCmd.Flags().Duration("older-than", 0, "Retention window (default: TRANSCRIPT_RETENTION)")
}

// openTranscript opens the transcript named by --db or the configuration.
func openTranscript(cmd *cobra.Command) (*transcript.SQLiteStore, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = viper.GetString("transcript.db_path")
	}
	if dbPath == "" {
		return nil, errors.New("no transcript database: pass --db or set TRANSCRIPT_DB")
	}

	cfg := transcript.DefaultConfig()
	if r := viper.GetDuration("transcript.retention"); r > 0 {
		cfg.Retention = r
	}
	return transcript.NewSQLiteStore(dbPath, cfg)
}

func runTranscriptStats(cmd *cobra.Command, _ []string) error {
	store, err := openTranscript(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stats, err := store.Stats(context.Background())
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runTranscriptRecent(cmd *cobra.Command, _ []string) error {
	store, err := openTranscript(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sessionID, _ := cmd.Flags().GetString("session-id")
	limit, _ := cmd.Flags().GetInt("limit")

	result, err := store.Recent(context.Background(), transcript.RecentRequest{
		SessionID: sessionID,
		Limit:     limit,
	})
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runTranscriptPrune(cmd *cobra.Command, _ []string) error {
	store, err := openTranscript(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	cfg := store.Config()
	if olderThan, _ := cmd.Flags().GetDuration("older-than"); olderThan > 0 {
		cfg.Retention = olderThan
	}
	if cfg.Retention <= 0 {
		return fmt.Errorf("retention must be positive, got %s", cfg.Retention)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	result, err := transcript.NewPruneWorker(store, cfg).RunOnce(ctx)
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
