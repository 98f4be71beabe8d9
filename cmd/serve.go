package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Siddhant-K-code/mqassist/pkg/session"
	"github.com/Siddhant-K-code/mqassist/pkg/telemetry"
	"github.com/Siddhant-K-code/mqassist/pkg/transcript"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the conversation HTTP API",
	Long: `Serve the conversation API over HTTP.

Endpoints:
  POST /v1/chat               answer a message within a session
  GET  /v1/sessions/stats     total and active sessions
  POST /v1/sessions/sweep     drop expired sessions now
  GET  /v1/config             effective configuration
  GET  /v1/transcript/recent  latest recorded exchanges
  GET  /v1/transcript/stats   transcript statistics
  GET  /metrics               Prometheus metrics
  GET  /healthz               liveness

Expired sessions are swept on a schedule (SESSION_SWEEP_INTERVAL).

Examples:
  mqassist serve
  mqassist serve --addr :9090 --transcript-db mqassist.db`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (or MQASSIST_ADDR)")
	serveCmd.Flags().String("transcript-db", "", "SQLite transcript path (or TRANSCRIPT_DB)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("transcript.db_path", serveCmd.Flags().Lookup("transcript-db"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		Exporter:       cfg.Telemetry.Exporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		ServiceName:    "mqassist",
		ServiceVersion: version,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("tracing shutdown", slog.Any("error", err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := NewApp(cfg, reg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	sweeper := session.NewSweeper(app.Sessions, time.Duration(cfg.Session.SweepInterval))
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer sweeper.Stop()

	if app.Transcript != nil {
		pruner := transcript.NewPruneWorker(app.Transcript, app.Transcript.Config())
		pruner.Start()
		defer pruner.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           newServeMux(app, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening",
			slog.String("addr", cfg.ServerAddr),
			slog.String("bridge", cfg.Bridge.URL),
			slog.String("model", cfg.Bridge.Model),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

// newServeMux builds the HTTP handler tree for app.
func newServeMux(app *App, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()

	api := &ChatAPI{app: app}
	api.RegisterChatRoutes(mux, instrument)

	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	return mux
}

// instrument wraps h with a server span and an access log line.
func instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	tracer := otel.Tracer("github.com/Siddhant-K-code/mqassist/cmd")
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := tracer.Start(r.Context(), "http "+route, trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
			))
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		slog.Debug("http request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
