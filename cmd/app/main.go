// File: cmd/app/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"client-manager-bot/internal/application"
	"client-manager-bot/internal/config"
	"client-manager-bot/internal/flow"
	pg "client-manager-bot/internal/infra/db/postgres"
	"client-manager-bot/internal/infra/logging"
	"client-manager-bot/internal/infra/metrics"
	red "client-manager-bot/internal/infra/redis"
	"client-manager-bot/internal/infra/sched"
	"client-manager-bot/internal/infra/security"
	"client-manager-bot/internal/infra/telegram"
	"client-manager-bot/internal/infra/web"
	"client-manager-bot/internal/infra/whatsapp"
	"client-manager-bot/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	logging.Global = *logger
	metrics.Register()

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Redis (optional; in-memory fallbacks without it) ----
	var (
		sessionStore flow.Store          = flow.NewMemoryStore()
		limiter      application.Limiter // nil disables throttling
		locker       red.Locker          // nil disables the sweep lock
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		sessionStore = red.NewSessionStore(redisClient, cfg.Redis.SessionTTL)
		limiter = red.NewCommandLimiter(red.NewRateLimiter(redisClient), cfg.RateLimit.PerMinute)
		locker = red.NewLocker(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set; sessions are in-memory and rate limiting is off")
	}

	// ---- Encryption ----
	encSvc, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}

	// ---- Repositories ----
	userRepo := pg.NewPostgresUserRepo(pool)
	clientRepo := pg.NewPostgresClientRepo(pool)
	productRepo := pg.NewPostgresProductRepo(pool)

	// ---- Use cases ----
	userUC := usecase.NewUserUseCase(userRepo, clientRepo, tm, cfg.Bot.OwnerID, logger)
	clientUC := usecase.NewClientUseCase(clientRepo, productRepo, tm, logger)
	statsUC := usecase.NewStatsUseCase(clientRepo, productRepo, userRepo, logger)

	facade := application.NewBotFacade(userUC, clientUC, statsUC, encSvc)

	// ---- Telegram ----
	bot, err := telegram.NewBot(&cfg.Bot, userUC, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram")
	}
	tgEngine := flow.NewEngine("telegram", sessionStore, bot, userUC, clientUC, encSvc, logger)
	bot.SetRouter(application.NewCommandRouter(tgEngine, facade, bot, limiter, logger))
	go func() {
		if err := bot.StartPolling(ctx); err != nil {
			logger.Error().Err(err).Msg("telegram polling stopped")
		}
	}()

	// ---- WhatsApp webhook ----
	var waServer *http.Server
	if cfg.WhatsApp.Enabled {
		waMsgr := whatsapp.NewMessenger(&cfg.WhatsApp, logger)
		waEngine := flow.NewEngine("whatsapp", sessionStore, waMsgr, userUC, clientUC, encSvc, logger)
		waRouter := application.NewCommandRouter(waEngine, facade, waMsgr, limiter, logger)
		webhook := whatsapp.NewWebhook(&cfg.WhatsApp, userUC, waRouter, waMsgr, logger)

		waServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.WhatsApp.Port),
			Handler: webhook.Router(),
		}
		go func() {
			logger.Info().Str("addr", waServer.Addr).Msg("whatsapp webhook listening")
			if err := waServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("whatsapp server")
			}
		}()
	}

	// ---- Admin API ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, 30*time.Minute)
	admin := web.NewServer(clientUC, statsUC, encSvc, auth, cfg.Admin.Password, cfg.Bot.OwnerID, logger)
	adminServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler: admin.Router(),
	}
	go func() {
		logger.Info().Str("addr", adminServer.Addr).Msg("admin api listening")
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin server")
		}
	}()

	// ---- Expiry-notice scheduler ----
	notifUC := usecase.NewNotificationUseCase(productRepo, bot, logger)
	worker, err := sched.NewNoticeWorker(cfg.Scheduler.NoticeCheckCron, notifUC, locker, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("notice worker")
	}
	worker.Start()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	cancel()
	bot.StopPolling()
	worker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if waServer != nil {
		_ = waServer.Shutdown(shutdownCtx)
	}
	_ = adminServer.Shutdown(shutdownCtx)
}
