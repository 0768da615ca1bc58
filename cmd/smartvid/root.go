package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/smartvid/smartvid/internal/config"
	"github.com/smartvid/smartvid/internal/logger"
)

// commandContext loads configuration once for whichever subcommand runs.
type commandContext struct {
	envFile string

	cfg config.Config
	log *slog.Logger
}

func (c *commandContext) load() {
	config.LoadDotEnv(c.envFile)
	c.cfg = config.Load()
	c.log = logger.New(c.cfg.Log)
	slog.SetDefault(c.log)
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "smartvid",
		Short:         "SmartVid video generation backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&ctx.envFile, "env-file", ".env", "Path to a .env file")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newWorkerCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newStatsCommand(ctx))
	rootCmd.AddCommand(newSitemapCommand(ctx))
	return rootCmd
}
