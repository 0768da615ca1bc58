package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smartvid/smartvid/internal/repository"
	"github.com/smartvid/smartvid/internal/sitemap"
)

func newSitemapCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "sitemap",
		Short: "Write sitemap.xml for the public site",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(ctx.cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			gctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := sitemap.New(ctx.cfg.SiteURL, repository.NewBlogRepo(db)).Write(gctx, w); err != nil {
				return err
			}
			if output != "" && output != "-" {
				ctx.log.Info("sitemap written", "path", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}
