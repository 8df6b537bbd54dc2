package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/hakim/scandash/internal/config"
	"github.com/hakim/scandash/internal/dashboard"
	"github.com/hakim/scandash/internal/events"
	"github.com/hakim/scandash/internal/metrics"
	"github.com/hakim/scandash/internal/models"
	"github.com/hakim/scandash/internal/pipeline"
	"github.com/hakim/scandash/internal/registry"
	"github.com/hakim/scandash/internal/scanner"
	"github.com/hakim/scandash/internal/storage"
)

// app holds every long-lived component a command may need.
type app struct {
	cfg       *config.Config
	store     io.Closer
	registry  *registry.Registry
	client    *scanner.HTTPClient
	metrics   *metrics.Recorder
	publisher *events.Publisher
	notifier  *dashboard.Notifier
	orch      *pipeline.Orchestrator
	svc       *dashboard.Service
}

// newApp opens the history backend, loads and seeds the registry, and wires
// the orchestrator. onEvent, when set, runs after the notifier for every
// orchestrator event.
func newApp(ctx context.Context, cfg *config.Config, onEvent func(pipeline.Event)) (*app, error) {
	a := &app{cfg: cfg}

	backend, closer, err := openBackend(cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.store = closer

	a.registry = registry.New(backend, slog.Default())
	loaded, err := a.registry.Load()
	if err != nil {
		a.Close()
		return nil, err
	}
	slog.Debug("History loaded", "scans", loaded, "driver", cfg.Storage.Driver)

	a.client, err = scanner.NewHTTPClient(scanner.Options{
		BaseURL: cfg.Scanner.BaseURL,
		Timeout: cfg.RequestTimeout(),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.History.SeedFromScanner {
		a.seed(ctx)
	}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
		a.metrics.TrackRegistrySize(a.registry.Len)
	}

	if cfg.Notify.AMQPURL != "" {
		a.publisher, err = events.Dial(cfg.Notify.AMQPURL, cfg.Notify.AMQPQueue)
		if err != nil {
			// Events are best effort; the dashboard works without a broker.
			slog.Warn("Event publishing disabled", "error", err)
		}
	}

	var webhook *pipeline.NotifyConfig
	if cfg.Notify.WebhookURL != "" {
		webhook = &pipeline.NotifyConfig{WebhookURL: cfg.Notify.WebhookURL}
	}
	if webhook != nil || a.publisher != nil {
		var pub dashboard.Publisher
		if a.publisher != nil {
			pub = a.publisher
		}
		a.notifier = dashboard.NewNotifier(webhook, pub, slog.Default())
	}

	a.orch = pipeline.New(a.client, a.registry, pipeline.Options{
		PollInterval:   cfg.PollInterval(),
		RequestTimeout: cfg.RequestTimeout(),
		RecordFailed:   cfg.History.RecordFailed,
		Scope: &pipeline.ScopeConfig{
			AllowedDomains: cfg.Scope.AllowedDomains,
			AllowedCIDRs:   cfg.Scope.AllowedCIDRs,
		},
		OnEvent: a.eventHandler(onEvent),
		Metrics: a.metrics,
		Logger:  slog.Default(),
	})
	a.svc = dashboard.NewService(a.orch, a.registry, slog.Default())

	return a, nil
}

func (a *app) eventHandler(extra func(pipeline.Event)) func(pipeline.Event) {
	if a.notifier == nil && extra == nil {
		return nil
	}
	return func(ev pipeline.Event) {
		if a.notifier != nil {
			a.notifier.Handle(ev)
		}
		if extra != nil {
			extra(ev)
		}
	}
}

// seed copies the scanner's own history into the registry, subject to the
// same failed-scan policy as live scans. The scanner being down is not
// fatal: local history is still usable.
func (a *app) seed(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout()+5*time.Second)
	defer cancel()

	scans, err := a.client.ListHistorical(ctx)
	if err != nil {
		slog.Warn("Could not seed history from scanner", "error", err)
		return
	}
	if !a.cfg.History.RecordFailed {
		scans = slices.DeleteFunc(scans, func(s models.Scan) bool {
			return s.Status == models.StatusFailed
		})
	}
	added := a.registry.Seed(scans)
	slog.Debug("History seeded from scanner", "received", len(scans), "added", added)
}

// Close stops polling and releases every resource in dependency order.
func (a *app) Close() {
	if a.orch != nil {
		a.orch.Stop()
	}
	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			slog.Warn("Closing event publisher", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("Closing history store", "error", err)
		}
	}
}

func openBackend(sc config.StorageConfig) (registry.Backend, io.Closer, error) {
	switch sc.Driver {
	case config.DriverPostgres:
		store, err := storage.NewSQLStore(sc.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres history: %w", err)
		}
		return store, store, nil
	default:
		store, err := storage.NewStore(sc.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening database %s: %w", sc.DBPath, err)
		}
		return store, store, nil
	}
}

func requireConfig() error {
	if cfg == nil {
		return fmt.Errorf("config not loaded. Run 'scandash init' first to create config")
	}
	return nil
}
