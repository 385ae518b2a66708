package linkguard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dwizi/group-warden/internal/metrics"
	"github.com/dwizi/group-warden/internal/warderr"
)

// linkMarkers are matched as plain substrings. Text such as "www." without a
// real URL is still deleted.
var linkMarkers = []string{"http://", "https://", "t.me/", "www."}

// ShouldDelete decides whether a text message is removed.
func ShouldDelete(lockEnabled bool, text string, isSenderAdmin bool) bool {
	if !lockEnabled || isSenderAdmin {
		return false
	}
	return ContainsLink(text)
}

func ContainsLink(text string) bool {
	lowered := strings.ToLower(text)
	for _, marker := range linkMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

type AdminChecker interface {
	IsAdmin(userID int64) bool
}

type MessageDeleter interface {
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
}

type Message struct {
	ChatID    int64
	MessageID int64
	SenderID  int64
	Text      string
}

// Guard owns the process-wide link lock and applies ShouldDelete to inbound
// messages.
type Guard struct {
	locked      atomic.Bool
	admins      AdminChecker
	deleter     MessageDeleter
	callTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

func New(admins AdminChecker, deleter MessageDeleter, lockedByDefault bool, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	guard := &Guard{
		admins:      admins,
		deleter:     deleter,
		callTimeout: 10 * time.Second,
		logger:      logger,
	}
	guard.locked.Store(lockedByDefault)
	return guard
}

func (g *Guard) SetMetrics(m *metrics.Metrics) {
	g.metrics = m
}

func (g *Guard) SetCallTimeout(timeout time.Duration) {
	if timeout > 0 {
		g.callTimeout = timeout
	}
}

func (g *Guard) Lock() {
	g.locked.Store(true)
}

func (g *Guard) Unlock() {
	g.locked.Store(false)
}

func (g *Guard) Locked() bool {
	return g.locked.Load()
}

// Inspect deletes the message when it breaks the link lock. It reports
// whether the message matched; a failed delete is logged and dropped.
func (g *Guard) Inspect(ctx context.Context, message Message) bool {
	if strings.TrimSpace(message.Text) == "" {
		return false
	}
	isAdmin := g.admins != nil && g.admins.IsAdmin(message.SenderID)
	if !ShouldDelete(g.Locked(), message.Text, isAdmin) {
		return false
	}
	if g.deleter == nil {
		return true
	}
	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()
	if err := g.deleter.DeleteMessage(callCtx, message.ChatID, message.MessageID); err != nil {
		g.metrics.LinkMessage(false)
		g.metrics.ExternalCallFailed("deleteMessage")
		if !errors.Is(err, warderr.ErrExternalCall) {
			err = warderr.External("deleteMessage", err)
		}
		warderr.Log(g.logger, "deleteMessage", err, "chat_id", message.ChatID, "message_id", message.MessageID)
		return true
	}
	g.metrics.LinkMessage(true)
	g.logger.Info("link message deleted", "chat_id", message.ChatID, "message_id", message.MessageID, "user_id", message.SenderID)
	return true
}
