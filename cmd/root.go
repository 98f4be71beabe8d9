// Package cmd implements the mqassist command line.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Siddhant-K-code/mqassist/pkg/telemetry"
)

// Set by the build.
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mqassist",
	Short: "Conversational assistant for IBM MQ queue managers",
	Long: `mqassist keeps short conversations about IBM MQ queue managers and
forwards each question, made standalone, to an MCP bridge.

It remembers the queue manager a conversation is about, asks for one when
a question needs it, and rewrites vague references like "the qmgr".

Examples:
  mqassist chat
  mqassist ask "How many queues in SRVIG?"
  mqassist serve --addr :8080
  mqassist mcp`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		slog.SetDefault(telemetry.NewLogger(telemetry.LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		}))
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (or LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json (or LOG_FORMAT)")
	rootCmd.PersistentFlags().String("bridge-url", "", "MCP bridge chat endpoint (or MCP_BRIDGE_URL)")
	rootCmd.PersistentFlags().String("model", "", "model name sent to the bridge (or LLM_MODEL)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("bridge.url", rootCmd.PersistentFlags().Lookup("bridge-url"))
	_ = viper.BindPFlag("bridge.model", rootCmd.PersistentFlags().Lookup("model"))

	setDefaults(viper.GetViper())
	bindEnv(viper.GetViper())
}

// initConfig reads the optional config file.
func initConfig() error {
	if cfgFile == "" {
		return nil
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", cfgFile, err)
	}
	return nil
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"bridge.url":              "MCP_BRIDGE_URL",
	"bridge.model":            "LLM_MODEL",
	"bridge.timeout":          "BRIDGE_TIMEOUT",
	"session.timeout_minutes": "SESSION_TIMEOUT_MINUTES",
	"session.max_history":     "MAX_CONVERSATION_HISTORY",
	"session.sweep_interval":  "SESSION_SWEEP_INTERVAL",
	"transcript.db_path":      "TRANSCRIPT_DB",
	"transcript.retention":    "TRANSCRIPT_RETENTION",
	"telemetry.exporter":      "OTEL_EXPORTER",
	"telemetry.otlp_endpoint": "OTEL_EXPORTER_OTLP_ENDPOINT",
	"server.addr":             "MQASSIST_ADDR",
	"log.level":               "LOG_LEVEL",
	"log.format":              "LOG_FORMAT",
}

func bindEnv(v *viper.Viper) {
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	v.SetEnvPrefix("MQASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}
