package telegram

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dwizi/group-warden/internal/gateway"
	"github.com/dwizi/group-warden/internal/heartbeat"
	"github.com/dwizi/group-warden/internal/linkguard"
	"github.com/dwizi/group-warden/internal/metrics"
)

const componentName = "connector:telegram"

const (
	ModeWebhook = "webhook"
	ModePoll    = "poll"
)

type CommandGateway interface {
	HandleCommand(ctx context.Context, input gateway.CommandInput) (gateway.MessageOutput, error)
}

type LinkInspector interface {
	Inspect(ctx context.Context, message linkguard.Message) bool
}

type Config struct {
	Token         string
	APIBase       string
	Mode          string
	PollSeconds   int
	WebhookURL    string
	WebhookSecret string
	CallTimeout   time.Duration
}

type Connector struct {
	client        *Client
	mode          string
	pollSeconds   int
	webhookURL    string
	webhookSecret string
	commandSync   bool
	gateway       CommandGateway
	links         LinkInspector
	logger        *slog.Logger
	reporter      heartbeat.Reporter
	metrics       *metrics.Metrics

	mu          sync.RWMutex
	botUsername string
	offset      int64
}

type Option func(*Connector)

func WithCommandSync(enabled bool) Option {
	return func(connector *Connector) {
		connector.commandSync = enabled
	}
}

// WithClient shares an existing Bot API client with the connector.
func WithClient(client *Client) Option {
	return func(connector *Connector) {
		if client != nil {
			connector.client = client
		}
	}
}

// WithHTTPClient replaces the transport used for Bot API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(connector *Connector) {
		connector.client.httpClient = client
	}
}

func New(cfg Config, commandGateway CommandGateway, links LinkInspector, logger *slog.Logger, opts ...Option) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	pollSeconds := cfg.PollSeconds
	if pollSeconds < 1 {
		pollSeconds = 25
	}
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode != ModePoll {
		mode = ModeWebhook
	}
	connector := &Connector{
		client:        NewClient(cfg.Token, cfg.APIBase, cfg.CallTimeout, nil),
		mode:          mode,
		pollSeconds:   pollSeconds,
		webhookURL:    strings.TrimSpace(cfg.WebhookURL),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		commandSync:   true,
		gateway:       commandGateway,
		links:         links,
		logger:        logger.With("connector", "telegram"),
	}
	for _, opt := range opts {
		opt(connector)
	}
	return connector
}

func (c *Connector) Name() string {
	return "telegram"
}

// Client exposes the Bot API client so moderation components share one
// transport with the connector.
func (c *Connector) Client() *Client {
	return c.client
}

func (c *Connector) Mode() string {
	return c.mode
}

func (c *Connector) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	c.reporter = reporter
}

func (c *Connector) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

func (c *Connector) username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.botUsername
}

func (c *Connector) setUsername(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.botUsername = strings.TrimPrefix(strings.TrimSpace(username), "@")
}
