package app

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dwizi/group-warden/internal/config"
	"github.com/dwizi/group-warden/internal/connectors"
	"github.com/dwizi/group-warden/internal/connectors/telegram"
	"github.com/dwizi/group-warden/internal/gateway"
	"github.com/dwizi/group-warden/internal/grants"
	"github.com/dwizi/group-warden/internal/heartbeat"
	"github.com/dwizi/group-warden/internal/linkguard"
	"github.com/dwizi/group-warden/internal/metrics"
	"github.com/dwizi/group-warden/internal/store"
	"github.com/dwizi/group-warden/internal/sweeper"
)

type Runtime struct {
	cfg              config.Config
	logger           *slog.Logger
	store            *store.Store
	grants           *grants.Store
	guard            *linkguard.Guard
	gateway          *gateway.Service
	sweeper          *sweeper.Service
	telegram         *telegram.Connector
	connectors       []connectors.Connector
	httpServer       *http.Server
	registry         *prometheus.Registry
	metrics          *metrics.Metrics
	heartbeat        *heartbeat.Registry
	heartbeatMonitor *heartbeat.Monitor
}

type heartbeatAware interface {
	SetHeartbeatReporter(reporter heartbeat.Reporter)
}

type metricsAware interface {
	SetMetrics(m *metrics.Metrics)
}
