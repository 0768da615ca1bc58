package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smartvid/smartvid/internal/logger"
	"github.com/smartvid/smartvid/internal/queue"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume render jobs from the broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx.cfg, ctx.log)
			if err != nil {
				return err
			}
			defer a.Close()

			if concurrency < 1 {
				concurrency = ctx.cfg.Integrations.RenderConcurrency
			}
			c := &queue.Consumer{
				URL:         ctx.cfg.Integrations.AMQPURL,
				Concurrency: concurrency,
				Handle:      a.render.Process,
				Log:         logger.Component(ctx.log, "worker"),
			}
			ctx.log.Info("worker started", "concurrency", concurrency)
			err = c.Run(sigCtx)
			ctx.log.Info("worker stopped")
			return err
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Concurrent renders (default RENDER_CONCURRENCY)")
	return cmd
}
