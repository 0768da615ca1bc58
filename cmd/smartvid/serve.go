package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/smartvid/smartvid/internal/config"
	"github.com/smartvid/smartvid/internal/handler"
	"github.com/smartvid/smartvid/internal/logger"
	"github.com/smartvid/smartvid/internal/middleware"
	"github.com/smartvid/smartvid/internal/router"
	"github.com/smartvid/smartvid/internal/sitemap"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var shutdownTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx.cfg, ctx.log)
			if err != nil {
				return err
			}
			defer a.Close()

			e := buildServer(a)
			addr := ":" + ctx.cfg.Port
			errCh := make(chan error, 1)
			go func() {
				ctx.log.Info("listening", "addr", addr, "env", ctx.cfg.Env)
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-sigCtx.Done():
			}
			ctx.log.Info("shutting down")
			shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return e.Shutdown(shutCtx)
		},
	}
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "Grace period for in-flight requests")
	return cmd
}

// buildServer mounts every route group on a new echo instance.
func buildServer(a *app) *echo.Echo {
	cfg := a.cfg
	log := logger.Component(a.log, "http")

	e := echo.New()
	router.Setup(e, cfg, log)

	authH := handler.NewAuthHandler(cfg, a.users, a.tokens)
	contentH := handler.NewContentHandler(a.users, a.templates, a.notifications)
	blogH := handler.NewBlogHandler(a.posts, sitemap.New(cfg.SiteURL, a.posts))
	billingH := handler.NewBillingHandler(a.billing, a.subscriptions, a.usage)
	adminH := handler.NewAdminHandler(a.admin, a.users, a.renderLogs, a.templates, a.posts)

	limits := router.Limits{
		RateLimit:   middleware.NewTokenBucket(config.LoadRateLimitConfig(), a.rdb, log),
		AIRateLimit: middleware.NewTokenBucket(config.LoadAIRateLimitConfig(), a.rdb, log),
		Cache:       middleware.NewRedisCache(config.LoadCacheConfig(), a.rdb),
	}

	router.RegisterRoutes(e, handler.Ready(a.db))
	router.RegisterAuth(e, authH, cfg.JWTSecret, limits.RateLimit)
	router.RegisterPublic(e, contentH, blogH, limits.Cache)
	router.RegisterWebhooks(e, billingH)
	router.RegisterAPI(e, router.API{
		Videos:  handler.NewVideoHandler(a.video, a.render),
		Content: contentH,
		Billing: billingH,
		Media:   handler.NewMediaHandler(a.media),
		Events:  handler.NewEventsHandler(a.hub),
	}, cfg.JWTSecret, limits)
	router.RegisterAdmin(e, adminH, cfg.JWTSecret)

	e.Static("/media", cfg.StorageDir)
	return e
}
