package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dwizi/group-warden/internal/grants"
	"github.com/dwizi/group-warden/internal/heartbeat"
	"github.com/dwizi/group-warden/internal/metrics"
	"github.com/dwizi/group-warden/internal/platform"
	"github.com/dwizi/group-warden/internal/warderr"
)

const (
	componentName = "sweeper"

	DefaultInterval    = 30 * time.Second
	DefaultCallTimeout = 10 * time.Second
)

// Action is what happens to a member whose temporary grant has expired.
type Action string

const (
	ActionBan      Action = "ban"
	ActionRestrict Action = "restrict"
)

func ParseAction(raw string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ActionBan:
		return ActionBan, nil
	case ActionRestrict:
		return ActionRestrict, nil
	default:
		return "", fmt.Errorf("unknown expiry action %q", raw)
	}
}

// ParseSchedule returns a cron schedule for expr, or a constant interval
// schedule when expr is empty.
func ParseSchedule(expr string, interval time.Duration) (cron.Schedule, error) {
	expr = strings.Join(strings.Fields(expr), " ")
	if expr == "" {
		if interval <= 0 {
			interval = DefaultInterval
		}
		return cron.Every(interval), nil
	}
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule: %w", err)
	}
	return schedule, nil
}

type Store interface {
	ListExpired(now time.Time) []grants.Key
	RevokeExpired(chatID, userID int64, now time.Time) bool
	Len() int
}

type Config struct {
	Schedule    cron.Schedule
	Action      Action
	CallTimeout time.Duration
	Now         func() time.Time
}

// Result aggregates the outcome of one sweep.
type Result struct {
	Expired int `json:"expired"`
	Revoked int `json:"revoked"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

type Service struct {
	store       Store
	actions     platform.Actions
	schedule    cron.Schedule
	action      Action
	callTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
	reporter    heartbeat.Reporter
	metrics     *metrics.Metrics
}

func New(store Store, actions platform.Actions, cfg Config, logger *slog.Logger) *Service {
	schedule := cfg.Schedule
	if schedule == nil {
		schedule = cron.Every(DefaultInterval)
	}
	action := cfg.Action
	if action == "" {
		action = ActionBan
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       store,
		actions:     actions,
		schedule:    schedule,
		action:      action,
		callTimeout: callTimeout,
		now:         now,
		logger:      logger,
	}
}

func (s *Service) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Start sweeps immediately, so grants that expired while the process was
// down are revoked first, then keeps sweeping on schedule until ctx ends.
func (s *Service) Start(ctx context.Context) error {
	if s.store == nil || s.actions == nil {
		if s.reporter != nil {
			s.reporter.Disabled(componentName, "dependencies missing")
		}
		<-ctx.Done()
		return nil
	}
	if s.reporter != nil {
		s.reporter.Starting(componentName, "started")
	}
	s.logger.Info("sweeper started", "action", string(s.action), "call_timeout", s.callTimeout.String())

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			if s.reporter != nil {
				s.reporter.Stopped(componentName, "stopped")
			}
			s.logger.Info("sweeper stopped")
			return nil
		case <-timer.C:
		}

		s.sweepSafely(ctx)

		now := s.now()
		timer.Reset(s.schedule.Next(now).Sub(now))
	}
}

// sweepSafely keeps a failing sweep from ending the loop.
func (s *Service) sweepSafely(ctx context.Context) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("sweep panicked: %v", recovered)
			if s.reporter != nil {
				s.reporter.Degrade(componentName, "sweep failed", err)
			}
			s.logger.Error("sweep failed", "error", err)
		}
	}()
	result := s.SweepOnce(ctx)
	if s.reporter != nil {
		if result.Failed > 0 {
			s.reporter.Degrade(componentName, "revocations failed", fmt.Errorf("%d of %d revocations failed", result.Failed, result.Expired))
		} else {
			s.reporter.Beat(componentName, "sweep completed")
		}
	}
}

// SweepOnce revokes every grant that expired at the moment the sweep began.
// Expired grants leave the store whether or not the platform call succeeds.
// A re-approval that arrives while the platform call is in flight keeps its
// grant even though the call still lands.
func (s *Service) SweepOnce(ctx context.Context) Result {
	startedAt := time.Now()
	now := s.now().UTC()
	expired := s.store.ListExpired(now)

	result := Result{}
	for _, key := range expired {
		if ctx.Err() != nil {
			break
		}
		// Claim the grant before the platform call so a re-approval that
		// landed after ListExpired is never revoked.
		if !s.store.RevokeExpired(key.ChatID, key.UserID, now) {
			result.Skipped++
			continue
		}
		result.Expired++
		if err := s.revoke(ctx, key); err != nil {
			result.Failed++
			s.metrics.ExternalCallFailed(s.opName())
			warderr.Log(s.logger, s.opName(), err, "chat_id", key.ChatID, "user_id", key.UserID)
		} else {
			result.Revoked++
		}
	}

	s.metrics.ObserveSweep(time.Since(startedAt).Seconds(), result.Revoked, result.Failed)
	s.metrics.SetActiveGrants(s.store.Len())
	if result.Expired > 0 || result.Skipped > 0 {
		s.logger.Info(
			"sweep completed",
			"expired", result.Expired,
			"revoked", result.Revoked,
			"failed", result.Failed,
			"skipped", result.Skipped,
		)
	}
	return result
}

func (s *Service) revoke(ctx context.Context, key grants.Key) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = warderr.External(s.opName(), fmt.Errorf("panic: %v", recovered))
		}
	}()
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	switch s.action {
	case ActionRestrict:
		err = s.actions.RestrictChatMember(callCtx, key.ChatID, key.UserID, platform.ReadOnly())
	default:
		err = s.actions.BanChatMember(callCtx, key.ChatID, key.UserID)
	}
	if err != nil && !errors.Is(err, warderr.ErrExternalCall) {
		err = warderr.External(s.opName(), err)
	}
	return err
}

func (s *Service) opName() string {
	if s.action == ActionRestrict {
		return "restrictChatMember"
	}
	return "banChatMember"
}
