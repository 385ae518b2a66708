package telegram

import (
	"context"
	"strings"

	"github.com/dwizi/group-warden/internal/gateway"
	"github.com/dwizi/group-warden/internal/linkguard"
	"github.com/dwizi/group-warden/internal/warderr"
)

// HandleUpdate dispatches one update. Commands addressed to this bot go to
// the gateway; everything else, including commands it ignored, is offered to
// the link guard.
func (c *Connector) HandleUpdate(ctx context.Context, source string, update telegramUpdate) {
	c.metrics.Update(source)
	switch {
	case update.Message != nil:
		c.handleMessage(ctx, *update.Message)
	case update.EditedMessage != nil:
		if !c.isOwnMessage(*update.EditedMessage) {
			c.inspectLinks(ctx, *update.EditedMessage)
		}
	}
}

func (c *Connector) handleMessage(ctx context.Context, message telegramMessage) {
	if c.isOwnMessage(message) {
		return
	}
	if c.acceptsCommands(message) {
		c.handleCommand(ctx, message)
		return
	}
	c.inspectLinks(ctx, message)
}

// acceptsCommands is true for messages sent by a person under their own
// account. Bots and messages sent on behalf of a chat only get link checks.
func (c *Connector) acceptsCommands(message telegramMessage) bool {
	return message.From != nil && !message.From.IsBot && message.SenderChat == nil
}

func (c *Connector) isOwnMessage(message telegramMessage) bool {
	if message.From == nil || !message.From.IsBot || message.SenderChat != nil {
		return false
	}
	own := c.username()
	return own != "" && strings.EqualFold(strings.TrimSpace(message.From.Username), own)
}

func (c *Connector) handleCommand(ctx context.Context, message telegramMessage) {
	if name, args, ok := gateway.ParseCommand(message.Text, c.username()); ok {
		output, err := c.gateway.HandleCommand(ctx, gateway.CommandInput{
			Name:        name,
			Args:        args,
			SenderID:    message.From.ID,
			ChatID:      message.Chat.ID,
			ReplyTarget: replyTarget(message),
		})
		if err != nil {
			warderr.Log(c.logger, "command:"+name, err, "chat_id", message.Chat.ID, "user_id", message.From.ID)
			return
		}
		if output.Handled {
			c.reply(ctx, message, output.Reply)
			return
		}
	}
	c.inspectLinks(ctx, message)
}

func (c *Connector) inspectLinks(ctx context.Context, message telegramMessage) {
	body := message.body()
	if strings.TrimSpace(body) == "" {
		return
	}
	c.links.Inspect(ctx, linkguard.Message{
		ChatID:    message.Chat.ID,
		MessageID: message.MessageID,
		SenderID:  message.senderID(),
		Text:      body,
	})
}

func (c *Connector) reply(ctx context.Context, message telegramMessage, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if err := c.client.SendMessage(ctx, message.Chat.ID, text, message.MessageID); err != nil {
		c.metrics.ExternalCallFailed("sendMessage")
		warderr.Log(c.logger, "sendMessage", err, "chat_id", message.Chat.ID)
	}
}

func replyTarget(message telegramMessage) *gateway.User {
	if message.ReplyToMessage == nil || message.ReplyToMessage.From == nil {
		return nil
	}
	from := *message.ReplyToMessage.From
	return &gateway.User{ID: from.ID, DisplayName: userDisplayName(from)}
}
