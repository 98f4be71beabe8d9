package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Siddhant-K-code/mqassist/pkg/bridge"
	"github.com/Siddhant-K-code/mqassist/pkg/session"
	"github.com/Siddhant-K-code/mqassist/pkg/telemetry"
	"github.com/Siddhant-K-code/mqassist/pkg/transcript"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and
environment variables are applied.

Examples:
  mqassist config
  MAX_CONVERSATION_HISTORY=20 mqassist config`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

// Config is the effective application configuration.
type Config struct {
	Bridge        BridgeConfig     `json:"bridge"`
	Session       SessionConfig    `json:"session"`
	Transcript    TranscriptConfig `json:"transcript"`
	Telemetry     TelemetryConfig  `json:"telemetry"`
	ServerAddr    string           `json:"server_addr"`
	LogLevel      string           `json:"log_level"`
	LogFormat     string           `json:"log_format"`
	ServerVersion string           `json:"version"`
}

// Duration prints as a Go duration string in JSON.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d Duration) String() string { return time.Duration(d).String() }

// BridgeConfig locates the MCP bridge.
type BridgeConfig struct {
	URL     string   `json:"url"`
	Model   string   `json:"model"`
	Timeout Duration `json:"timeout"`
}

// SessionConfig bounds conversation sessions.
type SessionConfig struct {
	TimeoutMinutes int      `json:"timeout_minutes"`
	MaxHistory     int      `json:"max_history"`
	SweepInterval  Duration `json:"sweep_interval"`
}

// TranscriptConfig enables the exchange audit log.
type TranscriptConfig struct {
	DBPath    string   `json:"db_path,omitempty"`
	Retention Duration `json:"retention"`
}

// TelemetryConfig selects a trace exporter.
type TelemetryConfig struct {
	Exporter     string `json:"exporter"`
	OTLPEndpoint string `json:"otlp_endpoint,omitempty"`
}

func setDefaults(v *viper.Viper) {
	b := bridge.DefaultConfig()
	s := session.DefaultConfig()

	v.SetDefault("bridge.url", b.URL)
	v.SetDefault("bridge.model", b.Model)
	v.SetDefault("bridge.timeout", b.Timeout)
	v.SetDefault("session.timeout_minutes", int(s.Timeout/time.Minute))
	v.SetDefault("session.max_history", s.MaxHistory)
	v.SetDefault("session.sweep_interval", session.DefaultSweepInterval)
	v.SetDefault("transcript.db_path", "")
	v.SetDefault("transcript.retention", transcript.DefaultConfig().Retention)
	v.SetDefault("telemetry.exporter", telemetry.ExporterNone)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// loadConfig reads and validates the configuration held by v.
func loadConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Bridge: BridgeConfig{
			URL:     strings.TrimSpace(v.GetString("bridge.url")),
			Model:   v.GetString("bridge.model"),
			Timeout: Duration(v.GetDuration("bridge.timeout")),
		},
		Session: SessionConfig{
			TimeoutMinutes: v.GetInt("session.timeout_minutes"),
			MaxHistory:     v.GetInt("session.max_history"),
			SweepInterval:  Duration(v.GetDuration("session.sweep_interval")),
		},
		Transcript: TranscriptConfig{
			DBPath:    v.GetString("transcript.db_path"),
			Retention: Duration(v.GetDuration("transcript.retention")),
		},
		Telemetry: TelemetryConfig{
			Exporter:     strings.ToLower(v.GetString("telemetry.exporter")),
			OTLPEndpoint: v.GetString("telemetry.otlp_endpoint"),
		},
		ServerAddr:    v.GetString("server.addr"),
		LogLevel:      v.GetString("log.level"),
		LogFormat:     v.GetString("log.format"),
		ServerVersion: version,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Bridge.URL == "" {
		errs = append(errs, errors.New("bridge.url must not be empty"))
	}
	if c.Bridge.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("bridge.timeout must be positive, got %s", c.Bridge.Timeout))
	}
	if c.Session.TimeoutMinutes <= 0 {
		errs = append(errs, fmt.Errorf("session.timeout_minutes must be positive, got %d", c.Session.TimeoutMinutes))
	}
	if c.Session.MaxHistory <= 0 {
		errs = append(errs, fmt.Errorf("session.max_history must be positive, got %d", c.Session.MaxHistory))
	}
	if c.Session.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("session.sweep_interval must be positive, got %s", c.Session.SweepInterval))
	}
	if c.Transcript.Retention < 0 {
		errs = append(errs, fmt.Errorf("transcript.retention must not be negative, got %s", c.Transcript.Retention))
	}
	switch c.Telemetry.Exporter {
	case telemetry.ExporterNone, telemetry.ExporterStdout, telemetry.ExporterOTLP:
	default:
		errs = append(errs, fmt.Errorf("telemetry.exporter must be none, stdout or otlp, got %q", c.Telemetry.Exporter))
	}
	return errors.Join(errs...)
}

// BridgeClientConfig converts to the bridge client configuration.
func (c *Config) BridgeClientConfig() bridge.Config {
	return bridge.Config{URL: c.Bridge.URL, Model: c.Bridge.Model, Timeout: time.Duration(c.Bridge.Timeout)}
}

// SessionManagerConfig converts to the session manager configuration.
func (c *Config) SessionManagerConfig() session.Config {
	return session.Config{
		Timeout:    time.Duration(c.Session.TimeoutMinutes) * time.Minute,
		MaxHistory: c.Session.MaxHistory,
	}
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

func (t TranscriptConfig) retention() time.Duration {
	return time.Duration(t.Retention)
}
