package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smartvid/smartvid/internal/database"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), database.Schema())
				return err
			}
			db, err := openDB(ctx.cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			mctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			if err := database.Migrate(mctx, db); err != nil {
				return err
			}
			ctx.log.Info("schema applied", "database", ctx.cfg.DBName)
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the schema instead of applying it")
	return cmd
}
