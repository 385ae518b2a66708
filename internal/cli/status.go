package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/group-warden/internal/adminclient"
)

func newStatusCommand() *cobra.Command {
	var apiURL string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show component health and link lock state of a running instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := adminclient.New(apiURL, 10*time.Second)
			if err != nil {
				return err
			}
			info, err := client.Info(cmd.Context())
			if err != nil {
				return fmt.Errorf("read info: %w", err)
			}
			out := cmd.OutOrStdout()
			lock := "off"
			if info.LinkLock {
				lock = "on"
			}
			fmt.Fprintf(out, "%s %s (%s, %s mode)\n", info.Name, info.Version, info.Environment, info.UpdateMode)
			fmt.Fprintf(out, "link lock: %s\nexpiry action: %s\nadmins: %d\n", lock, info.ExpiryAction, info.AdminCount)

			snapshot, err := client.Heartbeat(cmd.Context())
			if err != nil {
				fmt.Fprintf(out, "heartbeat: unavailable (%v)\n", err)
				return nil
			}
			fmt.Fprintf(out, "overall: %s\n", snapshot.Overall)
			writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "COMPONENT\tSTATE\tMESSAGE")
			for _, item := range snapshot.Components {
				message := item.Message
				if item.Error != "" {
					message = item.Error
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\n", item.Name, item.State, message)
			}
			return writer.Flush()
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", "http://127.0.0.1:10000", "base URL of the running instance")
	return cmd
}
