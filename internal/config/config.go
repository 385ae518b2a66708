package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "GROUP_WARDEN_"

type Config struct {
	Environment string `yaml:"environment"`
	HTTPAddr    string `yaml:"http_addr" validate:"required"`
	DataDir     string `yaml:"data_dir"`
	DBPath      string `yaml:"db_path" validate:"required_if=PersistGrants true"`

	TelegramToken      string  `yaml:"telegram_token" validate:"required"`
	TelegramAPI        string  `yaml:"telegram_api_base" validate:"required,url"`
	TelegramPoll       int     `yaml:"telegram_poll_seconds" validate:"min=1,max=50"`
	AdminIDs           []int64 `yaml:"admin_ids" validate:"required,min=1,dive,ne=0"`
	UpdateMode         string  `yaml:"update_mode" validate:"oneof=webhook poll"`
	WebhookPath        string  `yaml:"webhook_path" validate:"startswith=/"`
	WebhookURL         string  `yaml:"webhook_url" validate:"omitempty,url"`
	WebhookSecret      string  `yaml:"webhook_secret" validate:"omitempty,max=256,webhook_secret"`
	CallTimeoutSec     int     `yaml:"call_timeout_seconds" validate:"min=1"`
	CommandSyncEnabled bool    `yaml:"command_sync_enabled"`

	SweepIntervalSec  int    `yaml:"sweep_interval_seconds" validate:"min=1"`
	SweepSchedule     string `yaml:"sweep_schedule" validate:"omitempty,sweep_schedule"`
	ExpiryAction      string `yaml:"expiry_action" validate:"oneof=ban restrict"`
	LinkLockDefault   bool   `yaml:"link_lock_default"`
	MaxApproveMinutes int    `yaml:"max_approve_minutes" validate:"min=1,max=525600"`
	PersistGrants     bool   `yaml:"persist_grants"`

	HeartbeatEnabled     bool `yaml:"heartbeat_enabled"`
	HeartbeatIntervalSec int  `yaml:"heartbeat_interval_seconds" validate:"min=1"`
	HeartbeatStaleSec    int  `yaml:"heartbeat_stale_seconds" validate:"gtefield=HeartbeatIntervalSec"`
	HeartbeatNotifyAdmin bool `yaml:"heartbeat_notify_admin"`

	ConfigFile string `yaml:"-"`

	// adminIDProblems holds ADMIN_IDS entries that were not integers.
	adminIDProblems []string
}

func Defaults() Config {
	return Config{
		Environment:          "development",
		HTTPAddr:             ":10000",
		DataDir:              "/data",
		TelegramAPI:          "https://api.telegram.org",
		TelegramPoll:         25,
		UpdateMode:           "webhook",
		WebhookPath:          "/webhook",
		CallTimeoutSec:       10,
		CommandSyncEnabled:   true,
		SweepIntervalSec:     30,
		ExpiryAction:         "ban",
		LinkLockDefault:      true,
		MaxApproveMinutes:    7 * 24 * 60,
		PersistGrants:        true,
		HeartbeatEnabled:     true,
		HeartbeatIntervalSec: 30,
		HeartbeatStaleSec:    120,
		HeartbeatNotifyAdmin: true,
	}
}

// FromEnv returns the defaults overridden by environment variables only.
func FromEnv() Config {
	cfg := Defaults()
	applyEnv(&cfg)
	return cfg
}

// Load layers defaults, an optional YAML file and environment variables, in
// that order. An empty path falls back to GROUP_WARDEN_CONFIG_FILE.
func Load(path string) (Config, error) {
	cfg := Defaults()
	path = strings.TrimSpace(path)
	if path == "" {
		path = stringOrDefault(envPrefix+"CONFIG_FILE", "")
	}
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
		cfg.ConfigFile = path
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Environment = stringOrDefault(envPrefix+"ENV", cfg.Environment)
	if port := stringOrDefault("PORT", ""); port != "" {
		cfg.HTTPAddr = ":" + port
	}
	cfg.HTTPAddr = stringOrDefault(envPrefix+"HTTP_ADDR", cfg.HTTPAddr)
	cfg.DataDir = stringOrDefault(envPrefix+"DATA_DIR", cfg.DataDir)
	cfg.DBPath = stringOrDefault(envPrefix+"DB_PATH", cfg.DBPath)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "grants.sqlite")
	}

	cfg.TelegramToken = stringOrDefault(envPrefix+"TELEGRAM_TOKEN", stringOrDefault("BOT_TOKEN", cfg.TelegramToken))
	cfg.TelegramAPI = stringOrDefault(envPrefix+"TELEGRAM_API_BASE", cfg.TelegramAPI)
	cfg.TelegramPoll = intOrDefault(envPrefix+"TELEGRAM_POLL_SECONDS", cfg.TelegramPoll)
	if raw := stringOrDefault(envPrefix+"ADMIN_IDS", stringOrDefault("ADMIN_IDS", "")); raw != "" {
		cfg.AdminIDs, cfg.adminIDProblems = parseAdminIDs(raw)
	}
	cfg.UpdateMode = strings.ToLower(stringOrDefault(envPrefix+"UPDATE_MODE", cfg.UpdateMode))
	cfg.WebhookPath = stringOrDefault(envPrefix+"WEBHOOK_PATH", cfg.WebhookPath)
	cfg.WebhookURL = stringOrDefault(envPrefix+"WEBHOOK_URL", cfg.WebhookURL)
	cfg.WebhookSecret = stringOrDefault(envPrefix+"WEBHOOK_SECRET", cfg.WebhookSecret)
	cfg.CallTimeoutSec = intOrDefault(envPrefix+"CALL_TIMEOUT_SECONDS", cfg.CallTimeoutSec)
	cfg.CommandSyncEnabled = boolOrDefault(envPrefix+"COMMAND_SYNC_ENABLED", cfg.CommandSyncEnabled)

	cfg.SweepIntervalSec = intOrDefault(envPrefix+"SWEEP_INTERVAL_SECONDS", cfg.SweepIntervalSec)
	cfg.SweepSchedule = stringOrDefault(envPrefix+"SWEEP_SCHEDULE", cfg.SweepSchedule)
	cfg.ExpiryAction = strings.ToLower(stringOrDefault(envPrefix+"EXPIRY_ACTION", cfg.ExpiryAction))
	cfg.LinkLockDefault = boolOrDefault(envPrefix+"LINK_LOCK_DEFAULT", cfg.LinkLockDefault)
	cfg.MaxApproveMinutes = intOrDefault(envPrefix+"MAX_APPROVE_MINUTES", cfg.MaxApproveMinutes)
	cfg.PersistGrants = boolOrDefault(envPrefix+"PERSIST_GRANTS", cfg.PersistGrants)

	cfg.HeartbeatEnabled = boolOrDefault(envPrefix+"HEARTBEAT_ENABLED", cfg.HeartbeatEnabled)
	cfg.HeartbeatIntervalSec = intOrDefault(envPrefix+"HEARTBEAT_INTERVAL_SECONDS", cfg.HeartbeatIntervalSec)
	cfg.HeartbeatStaleSec = intOrDefault(envPrefix+"HEARTBEAT_STALE_SECONDS", cfg.HeartbeatStaleSec)
	cfg.HeartbeatNotifyAdmin = boolOrDefault(envPrefix+"HEARTBEAT_NOTIFY_ADMIN", cfg.HeartbeatNotifyAdmin)
}

func parseAdminIDs(raw string) ([]int64, []string) {
	var ids []int64
	var problems []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("ADMIN_IDS entry %q is not an integer", part))
			continue
		}
		ids = append(ids, id)
	}
	return ids, problems
}

func (c Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSec) * time.Second
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSec) * time.Second
}

func (c Config) HeartbeatStale() time.Duration {
	return time.Duration(c.HeartbeatStaleSec) * time.Second
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
