package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/electionmap/internal/config"
	"github.com/rewired-gh/electionmap/internal/logger"
	"github.com/rewired-gh/electionmap/internal/models"
	"github.com/rewired-gh/electionmap/internal/panel"
	"github.com/rewired-gh/electionmap/internal/storage"
	"github.com/rewired-gh/electionmap/internal/telegram"
	"github.com/rewired-gh/electionmap/internal/web"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load all configured panels and serve them over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "configs/config.yaml", "Path to configuration file")
	return cmd
}

func runServe(parent context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", configPath)

	store, err := storage.New(cfg.Storage.MaxLoads, cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	opts, err := panelOptions(cfg, newFetcher(cfg))
	if err != nil {
		return err
	}
	registry, err := buildRegistry(cfg, opts)
	if err != nil {
		return err
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracker := newFailureTracker(telegramClient)
	for _, p := range registry.All() {
		p.OnLoad(func(o panel.Outcome) {
			recordOutcome(store, o)
			tracker.observe(o)
		})
	}

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx, func() []telegram.PanelStatus {
			return panelStatuses(registry)
		})
	}

	logger.Info("Loading %d panels", len(registry.All()))
	if err := registry.LoadAll(ctx); err != nil {
		logger.Info("Shutdown signal received during initial load")
		return nil
	}

	if cfg.Refresh.Interval > 0 {
		go refreshLoop(ctx, registry, store, cfg.Refresh.Interval)
	}

	server := web.NewServer(registry, store, web.Options{
		Address:        cfg.Server.Address,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ReloadTimeout:  cfg.Fetch.Timeout * time.Duration(cfg.Fetch.MaxRetries+1),
	})
	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	logger.Info("Service stopped")
	return nil
}

func refreshLoop(ctx context.Context, registry *panel.Registry, store *storage.Storage, interval time.Duration) {
	logger.Info("Refreshing panels every %v", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Debug("Starting scheduled refresh")
			if err := registry.LoadAll(ctx); err != nil {
				return
			}
			if err := store.RotateLoads(); err != nil {
				logger.Warn("Failed to rotate loads: %v", err)
			}
		}
	}
}

// recordOutcome writes the load history entry and, on success, the parsed rows.
func recordOutcome(store *storage.Storage, o panel.Outcome) {
	rec := &models.LoadRecord{
		PanelID:    o.PanelID,
		Source:     o.Source,
		Generation: o.Generation,
		Status:     models.LoadOK,
		Rows:       o.Rows,
		LoadedAt:   o.LoadedAt,
	}
	if o.Err != nil {
		rec.Status = models.LoadError
		rec.ErrorKind = models.KindOf(o.Err)
		rec.Message = o.Err.Error()
	}
	if o.Dataset != nil {
		rec.Totals = o.Dataset.Totals()
	}
	if err := store.RecordLoad(rec); err != nil {
		logger.Warn("Failed to record load of panel %s: %v", o.PanelID, err)
		return
	}

	switch {
	case o.Dataset != nil:
		if err := store.RecordElection(rec.ID, o.Dataset); err != nil {
			logger.Warn("Failed to record results of panel %s: %v", o.PanelID, err)
		}
	case len(o.Trend) > 0:
		if err := store.RecordTrend(rec.ID, o.Trend); err != nil {
			logger.Warn("Failed to record trend of panel %s: %v", o.PanelID, err)
		}
	}
}

// notifier is the part of the Telegram client used for load alerts.
type notifier interface {
	SendError(panelID string, err error) error
	SendRecovery(panelID string, failureCount int) error
}

// failureTracker counts consecutive failed loads per panel. It alerts on the first
// failure of a run and reports recovery on the next success.
type failureTracker struct {
	notify notifier

	mu       sync.Mutex
	failures map[string]int
}

func newFailureTracker(client *telegram.Client) *failureTracker {
	t := &failureTracker{failures: make(map[string]int)}
	if client != nil {
		t.notify = client
	}
	return t
}

func (t *failureTracker) observe(o panel.Outcome) {
	t.mu.Lock()
	prev := t.failures[o.PanelID]
	if o.Err != nil {
		t.failures[o.PanelID] = prev + 1
	} else {
		delete(t.failures, o.PanelID)
	}
	t.mu.Unlock()

	if t.notify == nil {
		return
	}
	switch {
	case o.Err != nil && prev == 0:
		if err := t.notify.SendError(o.PanelID, o.Err); err != nil {
			logger.Warn("Failed to send error notification to Telegram: %v", err)
		}
	case o.Err == nil && prev > 0:
		if err := t.notify.SendRecovery(o.PanelID, prev); err != nil {
			logger.Warn("Failed to send recovery notification to Telegram: %v", err)
		}
	}
}

func panelStatuses(registry *panel.Registry) []telegram.PanelStatus {
	panels := registry.All()
	out := make([]telegram.PanelStatus, 0, len(panels))
	for _, p := range panels {
		snap := p.Snapshot()
		out = append(out, telegram.PanelStatus{
			ID:       snap.ID,
			Title:    snap.Title,
			Totals:   snap.Totals,
			Err:      snap.Error,
			LoadedAt: snap.LoadedAt,
		})
	}
	return out
}
