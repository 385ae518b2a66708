package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dwizi/group-warden/internal/app"
	"github.com/dwizi/group-warden/internal/config"
)

const version = "0.1.0"

func NewRoot(logger *slog.Logger) *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "group-warden",
		Short:         "Group Warden moderates Telegram groups with temporary posting grants and a link lock",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides GROUP_WARDEN_CONFIG_FILE)")

	root.AddCommand(newServeCommand(logger, &configPath))
	root.AddCommand(newGrantsCommand(&configPath))
	root.AddCommand(newStatusCommand())
	root.AddCommand(newCheckLinkCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newServeCommand(logger *slog.Logger, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the moderation bot, expiry sweeper and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			runtime, err := app.New(cfg, logger, version)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runtime.Run(ctx)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}
