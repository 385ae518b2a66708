package telegram

import (
	"strconv"
	"strings"
)

var allowedUpdates = []string{"message", "edited_message"}

type telegramUpdate struct {
	UpdateID      int64            `json:"update_id"`
	Message       *telegramMessage `json:"message"`
	EditedMessage *telegramMessage `json:"edited_message"`
}

type telegramMessage struct {
	MessageID      int64            `json:"message_id"`
	From           *telegramUser    `json:"from"`
	SenderChat     *telegramChat    `json:"sender_chat"`
	Chat           telegramChat     `json:"chat"`
	Text           string           `json:"text"`
	Caption        string           `json:"caption"`
	ReplyToMessage *telegramMessage `json:"reply_to_message"`
}

type telegramChat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

type telegramUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

type botCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

func userDisplayName(user telegramUser) string {
	if name := strings.TrimSpace(user.FirstName); name != "" {
		return name
	}
	if strings.TrimSpace(user.Username) != "" {
		return "@" + strings.TrimSpace(user.Username)
	}
	return strconv.FormatInt(user.ID, 10)
}

// senderID prefers sender_chat: messages posted as a channel or an anonymous
// admin carry a shared service bot in from.
func (m telegramMessage) senderID() int64 {
	if m.SenderChat != nil {
		return m.SenderChat.ID
	}
	if m.From == nil {
		return 0
	}
	return m.From.ID
}

func (m telegramMessage) body() string {
	if text := strings.TrimSpace(m.Text); text != "" {
		return m.Text
	}
	return m.Caption
}
