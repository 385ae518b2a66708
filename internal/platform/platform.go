package platform

import "context"

// Permissions is the subset of chat member permissions the bot toggles.
type Permissions struct {
	SendMessages     bool `json:"can_send_messages"`
	SendMedia        bool `json:"can_send_other_messages"`
	AddLinkPreviews  bool `json:"can_add_web_page_previews"`
	SendPolls        bool `json:"can_send_polls"`
	InviteUsers      bool `json:"can_invite_users"`
	PinMessages      bool `json:"can_pin_messages"`
	ChangeInfo       bool `json:"can_change_info"`
	ManageForumTopic bool `json:"can_manage_topics"`
}

// FullPosting grants plain posting rights, the same set /approve always handed out.
func FullPosting() Permissions {
	return Permissions{SendMessages: true}
}

func ReadOnly() Permissions {
	return Permissions{}
}

// Actions is what the moderation core needs from the chat platform.
type Actions interface {
	RestrictChatMember(ctx context.Context, chatID, userID int64, permissions Permissions) error
	BanChatMember(ctx context.Context, chatID, userID int64) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
}
