// caseguardd serves the governance engine over HTTP: use case registration,
// risk flag lifecycle, escalation runs, and the portfolio dashboard.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/caseguard/caseguard/pkg/config"
	"github.com/caseguard/caseguard/pkg/dimension"
	"github.com/caseguard/caseguard/pkg/engine"
	"github.com/caseguard/caseguard/pkg/escalation"
	"github.com/caseguard/caseguard/pkg/hooks"
	"github.com/caseguard/caseguard/pkg/observability"
	"github.com/caseguard/caseguard/pkg/profile"
)

func main() {
	if err := run(); err != nil {
		slog.Error("caseguardd failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	presets := profile.NewRegistry()
	if cfg.PresetDir != "" {
		if err := presets.LoadAll(cfg.PresetDir); err != nil {
			return fmt.Errorf("load preset dir %q: %w", cfg.PresetDir, err)
		}
	}

	eng, err := engine.New(engine.Config{
		SchemaVersion:  parseSchema(cfg.SchemaVersion),
		Presets:        cfg.Presets,
		PresetRegistry: presets,
		MatchMode:      parseMatchMode(cfg.MatchMode),
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	audit := hooks.NewAuditLogger()
	for _, name := range []hooks.EventName{
		hooks.EventUseCaseRegistered,
		hooks.EventFlagAdded,
		hooks.EventFlagResolved,
		hooks.EventFlagAccepted,
		hooks.EventFlagReviewStarted,
		hooks.EventEscalationApplied,
		hooks.EventDashboardReset,
	} {
		eng.Hooks().Subscribe(name, audit)
	}

	shutdownMetrics, err := setupMetrics(eng)
	if err != nil {
		return fmt.Errorf("setup metrics: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newServer(eng, audit, presets).routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("caseguardd listening",
			"port", cfg.Port,
			"schema", cfg.SchemaVersion,
			"presets", strings.Join(cfg.Presets, ","),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return shutdownMetrics(ctx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func parseSchema(v string) dimension.SchemaVersion {
	if strings.EqualFold(v, "v1") {
		return dimension.SchemaV1
	}
	return dimension.SchemaV2
}

func parseMatchMode(m string) escalation.MatchMode {
	if strings.EqualFold(m, "highest_severity") {
		return escalation.HighestSeverity
	}
	return escalation.FirstMatch
}

// setupMetrics wires the governance event counters onto a process-wide
// OpenTelemetry meter provider and returns its shutdown function.
func setupMetrics(eng *engine.Engine) (func(context.Context) error, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", "caseguardd"),
		),
	)
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	otel.SetMeterProvider(provider)

	metrics, err := observability.NewMetrics(otel.Meter("caseguard"))
	if err != nil {
		return nil, err
	}
	metrics.Bind(eng.Hooks())
	return provider.Shutdown, nil
}
