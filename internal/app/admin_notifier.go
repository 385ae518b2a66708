package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dwizi/group-warden/internal/heartbeat"
	"github.com/dwizi/group-warden/internal/warderr"
)

type messageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) error
}

// adminNotifier sends degraded and recovered transitions to every admin as a
// private message. Admins who never opened a chat with the bot cannot be
// reached; those failures are only logged.
type adminNotifier struct {
	sender  messageSender
	admins  []int64
	enabled bool
	now     func() time.Time
	logger  *slog.Logger
}

func newAdminNotifier(sender messageSender, admins []int64, enabled bool, logger *slog.Logger) *adminNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &adminNotifier{
		sender:  sender,
		admins:  append([]int64(nil), admins...),
		enabled: enabled,
		now:     time.Now,
		logger:  logger,
	}
}

func (n *adminNotifier) HandleTransition(ctx context.Context, transition heartbeat.Transition) {
	if n == nil || n.sender == nil || !n.enabled {
		return
	}
	eventType := heartbeatTransitionType(transition)
	if eventType == "" {
		return
	}
	message := buildHeartbeatTransitionMessage(eventType, transition, n.now())
	for _, adminID := range n.admins {
		sendCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
		err := n.sender.SendMessage(sendCtx, adminID, message, 0)
		cancel()
		if err != nil {
			warderr.Log(n.logger, "heartbeat notify", err, "admin_id", adminID)
		}
	}
}

func heartbeatTransitionType(transition heartbeat.Transition) string {
	fromDegraded := heartbeat.IsDegradedState(transition.FromState)
	toDegraded := heartbeat.IsDegradedState(transition.ToState)
	switch {
	case !fromDegraded && toDegraded:
		return "degraded"
	case fromDegraded && strings.EqualFold(strings.TrimSpace(transition.ToState), heartbeat.StateHealthy):
		return "recovered"
	default:
		return ""
	}
}

func buildHeartbeatTransitionMessage(eventType string, transition heartbeat.Transition, at time.Time) string {
	title := "Heartbeat recovered"
	if eventType == "degraded" {
		title = "Heartbeat degraded"
	}
	builder := strings.Builder{}
	builder.WriteString(title)
	builder.WriteString("\n- component: ")
	builder.WriteString(strings.TrimSpace(transition.Component))
	builder.WriteString("\n- state: ")
	builder.WriteString(strings.TrimSpace(transition.FromState))
	builder.WriteString(" -> ")
	builder.WriteString(strings.TrimSpace(transition.ToState))
	if message := strings.TrimSpace(transition.Message); message != "" {
		builder.WriteString("\n- detail: ")
		builder.WriteString(truncateSingleLine(message, 500))
	}
	if errorText := strings.TrimSpace(transition.Error); errorText != "" {
		builder.WriteString("\n- error: ")
		builder.WriteString(truncateSingleLine(errorText, 500))
	}
	builder.WriteString("\n- at: ")
	builder.WriteString(at.UTC().Format(time.RFC3339))
	return builder.String()
}

func truncateSingleLine(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return strings.TrimSpace(text[:limit]) + "..."
}
