package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dwizi/group-warden/internal/config"
	"github.com/dwizi/group-warden/internal/connectors"
	"github.com/dwizi/group-warden/internal/connectors/telegram"
	"github.com/dwizi/group-warden/internal/gateway"
	"github.com/dwizi/group-warden/internal/grants"
	"github.com/dwizi/group-warden/internal/heartbeat"
	"github.com/dwizi/group-warden/internal/httpapi"
	"github.com/dwizi/group-warden/internal/linkguard"
	"github.com/dwizi/group-warden/internal/metrics"
	"github.com/dwizi/group-warden/internal/store"
	"github.com/dwizi/group-warden/internal/sweeper"
)

// New validates cfg and wires every component. Nothing runs until Run.
func New(cfg config.Config, logger *slog.Logger, version string) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	schedule, err := sweeper.ParseSchedule(cfg.SweepSchedule, cfg.SweepInterval())
	if err != nil {
		return nil, err
	}
	action, err := sweeper.ParseAction(cfg.ExpiryAction)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	instruments := metrics.New(registry)

	var sqlStore *store.Store
	grantOpts := []grants.Option{}
	if cfg.PersistGrants {
		sqlStore, err = openStore(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		grantOpts = append(grantOpts, grants.WithPersister(sqlStore, logger.With("component", "grant-persistence")))
	}
	grantStore := grants.New(grantOpts...)
	if sqlStore != nil {
		if err := restoreGrants(sqlStore, grantStore, logger); err != nil {
			sqlStore.Close()
			return nil, err
		}
	}
	instruments.SetActiveGrants(grantStore.Len())

	admins := gateway.NewAdminSet(cfg.AdminIDs)
	client := telegram.NewClient(cfg.TelegramToken, cfg.TelegramAPI, cfg.CallTimeout(), nil)

	guard := linkguard.New(admins, client, cfg.LinkLockDefault, logger.With("component", "linkguard"))
	guard.SetCallTimeout(cfg.CallTimeout())
	commandGateway := gateway.New(grantStore, guard, client, admins, gateway.Config{
		MaxApproveMinutes: cfg.MaxApproveMinutes,
		CallTimeout:       cfg.CallTimeout(),
	}, logger.With("component", "gateway"))
	sweepService := sweeper.New(grantStore, client, sweeper.Config{
		Schedule:    schedule,
		Action:      action,
		CallTimeout: cfg.CallTimeout(),
	}, logger.With("component", "sweeper"))
	telegramConnector := telegram.New(telegram.Config{
		Token:         cfg.TelegramToken,
		APIBase:       cfg.TelegramAPI,
		Mode:          cfg.UpdateMode,
		PollSeconds:   cfg.TelegramPoll,
		WebhookURL:    cfg.WebhookURL,
		WebhookSecret: cfg.WebhookSecret,
		CallTimeout:   cfg.CallTimeout(),
	}, commandGateway, guard, logger, telegram.WithClient(client), telegram.WithCommandSync(cfg.CommandSyncEnabled))

	for _, component := range []metricsAware{guard, commandGateway, sweepService, telegramConnector} {
		component.SetMetrics(instruments)
	}

	var heartbeatRegistry *heartbeat.Registry
	var heartbeatMonitor *heartbeat.Monitor
	if cfg.HeartbeatEnabled {
		heartbeatRegistry = heartbeat.NewRegistry()
		for _, component := range []heartbeatAware{sweepService, telegramConnector} {
			component.SetHeartbeatReporter(heartbeatRegistry)
		}
		notifier := newAdminNotifier(client, cfg.AdminIDs, cfg.HeartbeatNotifyAdmin, logger.With("component", "heartbeat-notifier"))
		heartbeatMonitor = heartbeat.NewMonitor(heartbeatRegistry, heartbeat.MonitorConfig{
			Interval:     cfg.HeartbeatInterval(),
			StaleAfter:   cfg.HeartbeatStale(),
			Logger:       logger.With("component", "heartbeat"),
			OnTransition: notifier.HandleTransition,
		})
	}

	deps := httpapi.Dependencies{
		Config:              cfg,
		Version:             version,
		Grants:              grantStore,
		Links:               guard,
		Gatherer:            registry,
		Logger:              logger.With("component", "api"),
		Heartbeat:           heartbeatRegistry,
		HeartbeatStaleAfter: cfg.HeartbeatStale(),
	}
	if sqlStore != nil {
		deps.Store = sqlStore
	}
	if telegramConnector.Mode() == telegram.ModeWebhook {
		deps.Webhook = telegramConnector.WebhookHandler()
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Runtime{
		cfg:              cfg,
		logger:           logger,
		store:            sqlStore,
		grants:           grantStore,
		guard:            guard,
		gateway:          commandGateway,
		sweeper:          sweepService,
		telegram:         telegramConnector,
		connectors:       []connectors.Connector{telegramConnector},
		httpServer:       httpServer,
		registry:         registry,
		metrics:          instruments,
		heartbeat:        heartbeatRegistry,
		heartbeatMonitor: heartbeatMonitor,
	}, nil
}

func openStore(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	sqlStore, err := store.New(path)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		sqlStore.Close()
		return nil, err
	}
	return sqlStore, nil
}

// restoreGrants reloads grants that survived a restart. Already expired ones
// are loaded too so the first sweep revokes them.
func restoreGrants(sqlStore *store.Store, grantStore *grants.Store, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	items, err := sqlStore.ListGrants(ctx)
	if err != nil {
		return fmt.Errorf("restore grants: %w", err)
	}
	restored := grantStore.Restore(items)
	if restored > 0 {
		logger.Info("grants restored", "count", restored)
	}
	return nil
}
