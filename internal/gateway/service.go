package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dwizi/group-warden/internal/grants"
	"github.com/dwizi/group-warden/internal/metrics"
	"github.com/dwizi/group-warden/internal/platform"
	"github.com/dwizi/group-warden/internal/warderr"
)

const (
	startReply        = "✅ Admin bot active. /help"
	approveUsageReply = "Reply to user → /approve 30"
	removeUsageReply  = "Reply to user message → /remove"
	lockReply         = "🔒 Link block ON"
	unlockReply       = "🔓 Link block OFF"
	removedReply      = "🚫 Removed"
	removeFailedReply = "⚠️ Could not remove that user. Check that the bot is a chat admin with ban rights."
	noGrantsReply     = "No temporary grants in this chat."

	DefaultMaxApproveMinutes = 7 * 24 * 60

	// maxGrantMinutes is the longest grant a time.Duration can hold.
	maxGrantMinutes int64 = math.MaxInt64 / int64(time.Minute)
)

type GrantStore interface {
	Grant(chatID, userID int64, duration time.Duration) (grants.Grant, error)
	Revoke(chatID, userID int64) bool
	List(chatID int64) []grants.Grant
	Len() int
	Now() time.Time
}

type LinkLock interface {
	Lock()
	Unlock()
	Locked() bool
}

type Config struct {
	MaxApproveMinutes int
	CallTimeout       time.Duration
}

type User struct {
	ID          int64
	DisplayName string
}

// CommandInput is a parsed command invocation from a chat.
type CommandInput struct {
	Name        string
	Args        []string
	SenderID    int64
	ChatID      int64
	ReplyTarget *User
}

type MessageOutput struct {
	Handled bool
	Reply   string
}

type Service struct {
	grants  GrantStore
	links   LinkLock
	actions platform.Actions
	admins  *AdminSet
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(grantStore GrantStore, links LinkLock, actions platform.Actions, admins *AdminSet, cfg Config, logger *slog.Logger) *Service {
	if cfg.MaxApproveMinutes < 1 {
		cfg.MaxApproveMinutes = DefaultMaxApproveMinutes
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		grants:  grantStore,
		links:   links,
		actions: actions,
		admins:  admins,
		cfg:     cfg,
		logger:  logger,
	}
}

func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

func (s *Service) IsAdmin(userID int64) bool {
	return s.admins.IsAdmin(userID)
}

// HandleCommand runs one command. Admin commands from anyone else are
// dropped without a reply.
func (s *Service) HandleCommand(ctx context.Context, input CommandInput) (MessageOutput, error) {
	name := strings.ToLower(strings.TrimSpace(input.Name))
	if isAdminCommand(name) {
		if err := s.authorize(input.SenderID); err != nil {
			s.metrics.Command(name, "denied")
			warderr.Log(s.logger, name, err, "user_id", input.SenderID, "chat_id", input.ChatID)
			return MessageOutput{}, nil
		}
	}

	switch name {
	case "start":
		return MessageOutput{Handled: true, Reply: startReply}, nil
	case "help":
		return MessageOutput{Handled: true, Reply: helpText()}, nil
	case "approve":
		return s.handleApprove(ctx, input)
	case "remove":
		return s.handleRemove(ctx, input)
	case "locklinks":
		s.links.Lock()
		s.metrics.Command(name, "ok")
		s.logger.Info("link lock enabled", "user_id", input.SenderID, "chat_id", input.ChatID)
		return MessageOutput{Handled: true, Reply: lockReply}, nil
	case "unlocklinks":
		s.links.Unlock()
		s.metrics.Command(name, "ok")
		s.logger.Info("link lock disabled", "user_id", input.SenderID, "chat_id", input.ChatID)
		return MessageOutput{Handled: true, Reply: unlockReply}, nil
	case "grants":
		return s.handleGrants(input)
	default:
		return MessageOutput{}, nil
	}
}

func (s *Service) authorize(userID int64) error {
	if !s.admins.IsAdmin(userID) {
		return fmt.Errorf("%w: user %d", warderr.ErrUnauthorized, userID)
	}
	return nil
}

// parseApprove validates everything /approve needs before anything changes.
func (s *Service) parseApprove(input CommandInput) (User, int, error) {
	if input.ReplyTarget == nil || input.ReplyTarget.ID == 0 {
		return User{}, 0, warderr.Validation("approve needs a reply target")
	}
	if len(input.Args) == 0 {
		return User{}, 0, warderr.Validation("approve needs a minutes argument")
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(input.Args[0]))
	if err != nil {
		return User{}, 0, warderr.Validation("minutes %q is not a number", input.Args[0])
	}
	if minutes < 1 || minutes > s.cfg.MaxApproveMinutes || int64(minutes) > maxGrantMinutes {
		return User{}, 0, warderr.Validation("minutes must be between 1 and %d", s.cfg.MaxApproveMinutes)
	}
	return *input.ReplyTarget, minutes, nil
}

func (s *Service) handleApprove(ctx context.Context, input CommandInput) (MessageOutput, error) {
	target, minutes, err := s.parseApprove(input)
	if err != nil {
		s.metrics.Command("approve", "usage")
		s.logger.Info("approve rejected", "error", err, "user_id", input.SenderID, "chat_id", input.ChatID)
		reply := approveUsageReply
		if len(input.Args) > 0 && input.ReplyTarget != nil {
			reply = fmt.Sprintf("%s (1-%d minutes)", approveUsageReply, s.cfg.MaxApproveMinutes)
		}
		return MessageOutput{Handled: true, Reply: reply}, nil
	}

	restrictErr := s.callPlatform(ctx, "restrictChatMember", func(callCtx context.Context) error {
		return s.actions.RestrictChatMember(callCtx, input.ChatID, target.ID, platform.FullPosting())
	}, "chat_id", input.ChatID, "user_id", target.ID)

	grant, err := s.grants.Grant(input.ChatID, target.ID, time.Duration(minutes)*time.Minute)
	if err != nil {
		s.metrics.Command("approve", "failed")
		return MessageOutput{}, fmt.Errorf("store grant: %w", err)
	}
	s.metrics.GrantIssued()
	s.metrics.SetActiveGrants(s.grants.Len())
	s.metrics.Command("approve", "ok")
	s.logger.Info(
		"temporary access granted",
		"chat_id", input.ChatID,
		"user_id", target.ID,
		"approved_by", input.SenderID,
		"expires_at", grant.ExpiresAt.Format(time.RFC3339),
	)

	reply := fmt.Sprintf("✅ %s approved for %d minutes", displayName(target), minutes)
	if restrictErr != nil {
		reply += "\n⚠️ Telegram rejected the permission change; access still expires on schedule."
	}
	return MessageOutput{Handled: true, Reply: reply}, nil
}

func (s *Service) handleRemove(ctx context.Context, input CommandInput) (MessageOutput, error) {
	if input.ReplyTarget == nil || input.ReplyTarget.ID == 0 {
		s.metrics.Command("remove", "usage")
		return MessageOutput{Handled: true, Reply: removeUsageReply}, nil
	}
	target := *input.ReplyTarget
	banErr := s.callPlatform(ctx, "banChatMember", func(callCtx context.Context) error {
		return s.actions.BanChatMember(callCtx, input.ChatID, target.ID)
	}, "chat_id", input.ChatID, "user_id", target.ID)

	if s.grants.Revoke(input.ChatID, target.ID) {
		s.metrics.SetActiveGrants(s.grants.Len())
	}
	if banErr != nil {
		s.metrics.Command("remove", "failed")
		return MessageOutput{Handled: true, Reply: removeFailedReply}, nil
	}
	s.metrics.Command("remove", "ok")
	s.logger.Info("member removed", "chat_id", input.ChatID, "user_id", target.ID, "removed_by", input.SenderID)
	return MessageOutput{Handled: true, Reply: removedReply}, nil
}

func (s *Service) handleGrants(input CommandInput) (MessageOutput, error) {
	s.metrics.Command("grants", "ok")
	items := s.grants.List(input.ChatID)
	if len(items) == 0 {
		return MessageOutput{Handled: true, Reply: noGrantsReply}, nil
	}
	now := s.grants.Now()
	lines := []string{"Temporary grants:"}
	for _, item := range items {
		remaining := item.ExpiresAt.Sub(now).Round(time.Second)
		if remaining <= 0 {
			lines = append(lines, fmt.Sprintf("- user %d: expired, pending sweep", item.UserID))
			continue
		}
		lines = append(lines, fmt.Sprintf("- user %d: %s left", item.UserID, remaining))
	}
	return MessageOutput{Handled: true, Reply: strings.Join(lines, "\n")}, nil
}

// callPlatform runs a bounded platform call; failures are logged and returned
// so callers can adjust the reply, never their state changes.
func (s *Service) callPlatform(ctx context.Context, op string, call func(context.Context) error, attrs ...any) error {
	if s.actions == nil {
		return warderr.External(op, errors.New("platform actions unavailable"))
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	err := call(callCtx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, warderr.ErrExternalCall) {
		err = warderr.External(op, err)
	}
	s.metrics.ExternalCallFailed(op)
	warderr.Log(s.logger, op, err, attrs...)
	return err
}

func helpText() string {
	return strings.Join([]string{
		"Admins only:",
		"/approve (reply) <minutes>  e.g. reply to user then /approve 30",
		"/remove (reply)",
		"/locklinks",
		"/unlocklinks",
		"/grants",
	}, "\n")
}

func displayName(user User) string {
	if name := strings.TrimSpace(user.DisplayName); name != "" {
		return name
	}
	return strconv.FormatInt(user.ID, 10)
}
