package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/smartvid/smartvid/internal/config"
	"github.com/smartvid/smartvid/internal/database"
	"github.com/smartvid/smartvid/internal/integrations/apiclient"
	"github.com/smartvid/smartvid/internal/integrations/elevenlabs"
	"github.com/smartvid/smartvid/internal/integrations/email"
	"github.com/smartvid/smartvid/internal/integrations/llm"
	"github.com/smartvid/smartvid/internal/integrations/paystack"
	"github.com/smartvid/smartvid/internal/integrations/pexels"
	"github.com/smartvid/smartvid/internal/integrations/render"
	"github.com/smartvid/smartvid/internal/integrations/stripepay"
	"github.com/smartvid/smartvid/internal/logger"
	"github.com/smartvid/smartvid/internal/queue"
	"github.com/smartvid/smartvid/internal/realtime"
	"github.com/smartvid/smartvid/internal/repository"
	"github.com/smartvid/smartvid/internal/service"
)

// app holds the shared wiring of the server and the worker.
type app struct {
	cfg config.Config
	log *slog.Logger
	db  *sql.DB
	rdb *redis.Client
	hub *realtime.Hub

	users         *repository.UserRepo
	tokens        *repository.TokenRepo
	videos        *repository.VideoRepo
	subs          *repository.SubscriptionRepo
	templates     *repository.TemplateRepo
	notifications *repository.NotificationRepo
	renderLogs    *repository.RenderLogRepo
	posts         *repository.BlogRepo
	admin         *repository.AdminRepo

	usage         *service.UsageService
	notifier      *service.Notifier
	subscriptions *service.SubscriptionService
	billing       *service.BillingService
	video         *service.VideoService
	media         *service.MediaService
	render        *service.RenderService
}

// openDB connects to MySQL with the configured credentials.
func openDB(cfg config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// newApp opens the database and Redis and builds every service.  Redis
// is optional; integrations without credentials are left disabled.
func newApp(cfg config.Config, log *slog.Logger) (*app, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, db: db, rdb: config.NewRedisClient()}
	a.hub = realtime.NewHub(a.rdb, "", logger.Component(log, "realtime"))

	a.users = repository.NewUserRepo(db)
	a.tokens = repository.NewTokenRepo(db)
	a.videos = repository.NewVideoRepo(db)
	a.subs = repository.NewSubscriptionRepo(db)
	a.templates = repository.NewTemplateRepo(db)
	a.notifications = repository.NewNotificationRepo(db)
	a.renderLogs = repository.NewRenderLogRepo(db)
	a.posts = repository.NewBlogRepo(db)
	a.admin = repository.NewAdminRepo(db)

	in := cfg.Integrations
	api := apiclient.New()

	var stripeGW service.StripeGateway
	switch {
	case in.StripeEnabled() && in.StripeAPIBase != "":
		stripeGW = stripepay.NewWithBackendURL(in.StripeSecretKey, in.StripeWebhookSecret, in.StripePrices, in.StripeAPIBase)
	case in.StripeEnabled():
		stripeGW = stripepay.New(in.StripeSecretKey, in.StripeWebhookSecret, in.StripePrices)
	}
	var paystackGW service.PaystackGateway
	if in.PaystackEnabled() {
		paystackGW = paystack.New(in.PaystackSecretKey, in.PaystackPlans, api)
	}
	var scenes service.SceneGenerator
	if in.LLMAPIKey != "" {
		scenes = llm.NewClient(llm.Config{
			APIKey:  in.LLMAPIKey,
			BaseURL: in.LLMBaseURL,
			Model:   in.LLMModel,
			Referer: cfg.SiteURL,
			Title:   "SmartVid",
		}, api)
	}
	var speech service.SpeechSynthesizer
	if in.ElevenLabsAPIKey != "" {
		speech = elevenlabs.NewClient(in.ElevenLabsAPIKey, in.ElevenLabsModel, in.DefaultVoiceID, api)
	}
	var footage service.FootageSearcher
	if in.PexelsAPIKey != "" {
		footage = pexels.NewClient(in.PexelsAPIKey, api)
	}
	var renderer render.Client
	if in.RenderMock {
		log.Info("render: using mock client")
		renderer = render.NewMockClient(cfg.PublicURL)
	} else {
		renderer = render.NewHTTPClient(in.RenderBaseURL, in.RenderAPIKey, api)
	}
	var mailer email.Mailer = email.LogMailer{Log: logger.Component(log, "email")}
	if in.SendGridAPIKey != "" {
		mailer = email.NewSendGrid(in.SendGridAPIKey, in.MailFrom)
	}

	quotas := repository.NewQuotaRepo(db)
	a.usage = service.NewUsageService(a.videos, a.subs, quotas, logger.Component(log, "usage"))
	a.notifier = service.NewNotifier(a.notifications, a.users, mailer, a.hub, cfg.SiteURL, logger.Component(log, "notifier"))
	a.subscriptions = service.NewSubscriptionService(a.subs, a.users, stripeGW, paystackGW, a.hub, a.rdb,
		cfg.SubCheckEvery, logger.Component(log, "subscription"))
	a.billing = service.NewBillingService(a.users, a.subs, a.usage, a.notifier, stripeGW, paystackGW, a.hub,
		logger.Component(log, "billing"))
	a.video = service.NewVideoService(a.videos, a.usage)
	a.media = service.NewMediaService(a.videos, scenes, speech, footage,
		service.NewLocalStorage(cfg.StorageDir, strings.TrimRight(cfg.PublicURL, "/")+"/media"))

	deps := service.RenderDeps{
		Videos:    a.videos,
		Logs:      a.renderLogs,
		Client:    renderer,
		Usage:     a.usage,
		Notifier:  a.notifier,
		Events:    a.hub,
		Log:       logger.Component(log, "render"),
		RenderLog: logger.NewRenderLog(cfg.Log),
		Poll:      service.PollPolicy{Deadline: in.RenderDeadline},
	}
	if footage != nil {
		deps.Footage = footage
	}
	if in.AMQPURL != "" {
		deps.Dispatch = queue.NewPublisher(in.AMQPURL, logger.Component(log, "queue"))
	}
	a.render = service.NewRenderService(deps)
	return a, nil
}

// Close releases the database and Redis connections.
func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	_ = a.db.Close()
}
