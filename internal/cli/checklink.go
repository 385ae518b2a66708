package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwizi/group-warden/internal/linkguard"
)

func newCheckLinkCommand() *cobra.Command {
	var locked bool
	var admin bool
	cmd := &cobra.Command{
		Use:   "check-link <text>",
		Short: "Show whether the link guard would delete a message",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			text := strings.Join(args, " ")
			switch {
			case linkguard.ShouldDelete(locked, text, admin):
				fmt.Fprintln(cmd.OutOrStdout(), "delete: message contains a link")
			case !linkguard.ContainsLink(text):
				fmt.Fprintln(cmd.OutOrStdout(), "keep: no link found")
			case !locked:
				fmt.Fprintln(cmd.OutOrStdout(), "keep: link lock is off")
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "keep: sender is an admin")
			}
		},
	}
	cmd.Flags().BoolVar(&locked, "locked", true, "evaluate with the link lock on")
	cmd.Flags().BoolVar(&admin, "admin", false, "evaluate as an admin sender")
	return cmd
}
