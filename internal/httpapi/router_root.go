package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dwizi/group-warden/internal/config"
	"github.com/dwizi/group-warden/internal/grants"
	"github.com/dwizi/group-warden/internal/heartbeat"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type GrantLister interface {
	List(chatID int64) []grants.Grant
	Now() time.Time
}

type LinkLockStatus interface {
	Locked() bool
}

type Dependencies struct {
	Config              config.Config
	Version             string
	Store               Pinger
	Grants              GrantLister
	Links               LinkLockStatus
	Webhook             http.Handler
	Gatherer            prometheus.Gatherer
	Logger              *slog.Logger
	Heartbeat           *heartbeat.Registry
	HeartbeatStaleAfter time.Duration
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	mux.HandleFunc("/api/v1/heartbeat", rt.handleHeartbeat)
	mux.HandleFunc("/api/v1/info", rt.handleInfo)
	mux.HandleFunc("/api/v1/grants", rt.handleGrants)
	if deps.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	if deps.Webhook != nil {
		path := strings.TrimSpace(deps.Config.WebhookPath)
		if path == "" {
			path = "/webhook"
		}
		mux.Handle(path, deps.Webhook)
	}
	return mux
}
