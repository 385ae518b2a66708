package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/group-warden/internal/adminclient"
	"github.com/dwizi/group-warden/internal/config"
	"github.com/dwizi/group-warden/internal/grants"
	"github.com/dwizi/group-warden/internal/store"
)

func newGrantsCommand(configPath *string) *cobra.Command {
	var dbPath string
	var apiURL string
	var chatID int64
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "grants",
		Short: "List persisted temporary grants",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(apiURL) != "" {
				return listLiveGrants(cmd, apiURL, chatID, asJSON)
			}
			if strings.TrimSpace(dbPath) == "" {
				cfg, err := config.Load(*configPath)
				if err != nil {
					return err
				}
				dbPath = cfg.DBPath
			}
			if _, err := os.Stat(dbPath); err != nil {
				return fmt.Errorf("open grant database %s: %w", dbPath, err)
			}
			sqlStore, err := store.New(dbPath)
			if err != nil {
				return err
			}
			defer sqlStore.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := sqlStore.AutoMigrate(ctx); err != nil {
				return err
			}
			items, err := sqlStore.ListGrants(ctx)
			if err != nil {
				return err
			}
			items = filterGrants(items, chatID)
			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(items)
			}
			return printGrants(cmd, items, time.Now().UTC())
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "grant database path (defaults to the configured DB path)")
	cmd.Flags().StringVar(&apiURL, "api", "", "read live grants from a running instance at this base URL instead of the database")
	cmd.Flags().Int64Var(&chatID, "chat-id", 0, "only list grants for this chat")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func listLiveGrants(cmd *cobra.Command, apiURL string, chatID int64, asJSON bool) error {
	client, err := adminclient.New(apiURL, 10*time.Second)
	if err != nil {
		return err
	}
	live, err := client.ListGrants(cmd.Context(), chatID)
	if err != nil {
		return fmt.Errorf("list live grants: %w", err)
	}
	items := make([]grants.Grant, 0, len(live))
	for _, item := range live {
		items = append(items, grants.Grant{
			Key:       grants.Key{ChatID: item.ChatID, UserID: item.UserID},
			ExpiresAt: item.ExpiresAt,
		})
	}
	if asJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(items)
	}
	return printGrants(cmd, items, time.Now().UTC())
}

func filterGrants(items []grants.Grant, chatID int64) []grants.Grant {
	if chatID == 0 {
		return items
	}
	filtered := make([]grants.Grant, 0, len(items))
	for _, item := range items {
		if item.ChatID == chatID {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func printGrants(cmd *cobra.Command, items []grants.Grant, now time.Time) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "no grants")
		return err
	}
	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "CHAT\tUSER\tEXPIRES AT\tREMAINING")
	for _, item := range items {
		remaining := "expired"
		if left := item.ExpiresAt.Sub(now); left > 0 {
			remaining = left.Round(time.Second).String()
		}
		fmt.Fprintf(writer, "%d\t%d\t%s\t%s\n", item.ChatID, item.UserID, item.ExpiresAt.UTC().Format(time.RFC3339), remaining)
	}
	return writer.Flush()
}
