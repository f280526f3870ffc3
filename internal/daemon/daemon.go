// Package daemon wires the gateway together: config, logging, metrics,
// registry, resolver, backends, runner and the HTTP server, plus the
// optional catalog watcher and scheduled reloads.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/opspilot/toolgate/internal/config"
	"github.com/opspilot/toolgate/internal/logger"
	"github.com/opspilot/toolgate/internal/metrics"
	"github.com/opspilot/toolgate/pkg/assets"
	"github.com/opspilot/toolgate/pkg/backend"
	"github.com/opspilot/toolgate/pkg/builtins"
	"github.com/opspilot/toolgate/pkg/gateway"
	"github.com/opspilot/toolgate/pkg/registry"
	"github.com/opspilot/toolgate/pkg/runner"
)

// Daemon is the assembled gateway process.
type Daemon struct {
	cfg      *config.Config
	log      *logger.Logger
	metrics  *metrics.Metrics
	registry *registry.Registry
	runner   *runner.Runner
	server   *gateway.Server
	watcher  *registry.Watcher
	cron     *cron.Cron
}

// New builds a daemon from configuration.
func New(cfg *config.Config) (*Daemon, error) {
	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	m := metrics.New()

	var resolver assets.Resolver = assets.NoopResolver{}
	var inventory assets.Inventory
	if cfg.Assets.Endpoint != "" {
		client := assets.NewClient(assets.ClientOptions{
			Endpoint: cfg.Assets.Endpoint,
			APIKey:   cfg.Assets.APIKey,
			Timeout:  time.Duration(cfg.Assets.TimeoutSeconds) * time.Second,
		})
		resolver = client
		inventory = client
	} else {
		log.Warn().Msg("No asset service configured, asset intelligence disabled")
	}

	reg, report := registry.New(registry.Options{
		CatalogDirs: cfg.Catalog.Dirs,
		Builtins:    builtins.All(inventory),
		Hooks:       m.RegistryHooks(),
	})
	log.Info().
		Int("tools", report.Count).
		Strs("missing_required", report.MissingRequired).
		Strs("catalog_dirs", cfg.Catalog.Dirs).
		Msg("Tool registry initialized")

	var pipeline backend.Backend
	if cfg.Pipeline.Endpoint != "" {
		pipeline = backend.NewPipeline(backend.PipelineOptions{
			Endpoint:      cfg.Pipeline.Endpoint,
			APIKey:        cfg.Pipeline.APIKey,
			NetworkMargin: time.Duration(cfg.Pipeline.NetworkMarginSeconds) * time.Second,
		})
	} else {
		log.Warn().Msg("No pipeline endpoint configured, remote tools unavailable")
	}

	d := &Daemon{cfg: cfg, log: lg, metrics: m, registry: reg}

	run, err := runner.New(runner.Options{
		Registry:              reg,
		Resolver:              resolver,
		Local:                 backend.NewLocal(),
		Pipeline:              pipeline,
		TimeoutOverrides:      cfg.Execution.TimeoutOverrides,
		DefaultMaxOutputBytes: cfg.Execution.MaxOutputBytes,
		Hooks: runner.Hooks{
			OnResult: m.RunnerHook(),
			OnEvent:  d.publishEvent,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build runner: %w", err)
	}
	d.runner = run

	server, err := gateway.NewServer(gateway.ServerOptions{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		MetricsHandler:     m.Handler(),
	}, reg, run, lg.Zerolog())
	if err != nil {
		return nil, err
	}
	d.server = server

	return d, nil
}

// publishEvent forwards runner events to the gateway feed once the
// server exists.
func (d *Daemon) publishEvent(event string, data map[string]interface{}) {
	if d.server != nil {
		d.server.Events().Publish(event, data)
	}
}

// Run starts everything and blocks until the context is cancelled or a
// termination signal arrives.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if d.cfg.Catalog.Watch && len(d.cfg.Catalog.Dirs) > 0 {
		w, err := registry.NewWatcher(d.registry, 0)
		if err != nil {
			log.Warn().Err(err).Msg("Catalog watcher unavailable")
		} else if err := w.Start(); err != nil {
			log.Warn().Err(err).Msg("Catalog watcher failed to start")
		} else {
			d.watcher = w
		}
	}

	if d.cfg.Catalog.ReloadSchedule != "" {
		d.cron = cron.New()
		_, err := d.cron.AddFunc(d.cfg.Catalog.ReloadSchedule, func() {
			report := d.registry.Reload()
			d.publishEvent("catalog_reloaded", map[string]interface{}{
				"count":            report.Count,
				"missing_required": report.MissingRequired,
				"scheduled":        true,
			})
		})
		if err != nil {
			log.Warn().Err(err).Str("schedule", d.cfg.Catalog.ReloadSchedule).Msg("Invalid reload schedule")
			d.cron = nil
		} else {
			d.cron.Start()
			log.Info().Str("schedule", d.cfg.Catalog.ReloadSchedule).Msg("Scheduled catalog reload enabled")
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.server.Start()
	}()

	select {
	case err := <-errCh:
		d.shutdown()
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		d.shutdown()
		return nil
	}
}

func (d *Daemon) shutdown() {
	if d.cron != nil {
		d.cron.Stop()
	}
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			log.Warn().Err(err).Msg("Catalog watcher shutdown failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.server.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("Gateway shutdown failed")
	}

	if err := d.log.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
	}
}
