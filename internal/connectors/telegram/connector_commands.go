package telegram

import (
	"context"
	"regexp"
	"strings"

	"github.com/dwizi/group-warden/internal/gateway"
)

var commandNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)

func (c *Connector) syncCommands(ctx context.Context) error {
	slashCommands := gateway.SlashCommands()
	commands := make([]botCommand, 0, len(slashCommands))
	for _, command := range slashCommands {
		name := telegramCommandName(command.Name)
		if name == "" {
			continue
		}
		commands = append(commands, botCommand{
			Command:     name,
			Description: telegramCommandDescription(command.Description),
		})
	}
	return c.client.SetMyCommands(ctx, commands)
}

func telegramCommandName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if !commandNamePattern.MatchString(name) {
		return ""
	}
	return name
}

func telegramCommandDescription(description string) string {
	description = strings.TrimSpace(description)
	if len(description) < 3 {
		return "Bot command"
	}
	if len(description) > 256 {
		return strings.TrimSpace(description[:256])
	}
	return description
}
