package gateway

import "strings"

type SlashCommand struct {
	Name        string
	Description string
	AdminOnly   bool
}

func SlashCommands() []SlashCommand {
	return []SlashCommand{
		{Name: "start", Description: "Check that the bot is running"},
		{Name: "help", Description: "Show moderation commands"},
		{Name: "approve", Description: "Reply to a member: allow posting for N minutes", AdminOnly: true},
		{Name: "remove", Description: "Reply to a member: ban them from the chat", AdminOnly: true},
		{Name: "locklinks", Description: "Delete messages containing links", AdminOnly: true},
		{Name: "unlocklinks", Description: "Stop deleting messages with links", AdminOnly: true},
		{Name: "grants", Description: "List temporary posting grants in this chat", AdminOnly: true},
	}
}

func isAdminCommand(name string) bool {
	for _, command := range SlashCommands() {
		if command.Name == name {
			return command.AdminOnly
		}
	}
	return false
}

// ParseCommand splits "/name@bot arg1 arg2". Commands addressed to a
// different bot are not ours and report ok=false.
func ParseCommand(text, botUsername string) (string, []string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(trimmed, "/"))
	if len(fields) == 0 {
		return "", nil, false
	}
	name := strings.ToLower(fields[0])
	if idx := strings.Index(name, "@"); idx >= 0 {
		target := name[idx+1:]
		name = name[:idx]
		botUsername = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(botUsername), "@"))
		if botUsername != "" && target != botUsername {
			return "", nil, false
		}
	}
	if name == "" {
		return "", nil, false
	}
	return name, fields[1:], true
}
