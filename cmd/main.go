package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"qwqvpn/internal/bootstrap"
	"qwqvpn/internal/bot"
	"qwqvpn/internal/config"
	cronpkg "qwqvpn/internal/cron"
	"qwqvpn/internal/identity"
	"qwqvpn/internal/middleware"
	"qwqvpn/internal/panel"
	"qwqvpn/internal/repository"
	"qwqvpn/internal/router"
	"qwqvpn/internal/subscription"
	"qwqvpn/internal/support"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Store)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	// --- Repositories and services ---
	users := repository.NewUserRepository(db)
	tickets := repository.NewTicketRepository(db)

	ids := identity.NewStore(users, cfg.Plans.UsernamePrefix)
	panelClient := panel.NewMarzbanClient(
		cfg.Marzban.BaseURL,
		cfg.Marzban.Username,
		cfg.Marzban.Password,
		cfg.Marzban.VerifySSL,
	)
	subs := subscription.NewService(panelClient, ids, logger)
	supportSvc := support.NewService(tickets, logger)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	// --- Webhook Deduper (Redis with in-memory fallback) ---
	updateDeduper, dedupeErr := middleware.NewUpdateDeduper(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		10*time.Minute,
	)
	if dedupeErr != nil {
		logger.Warn("Redis unavailable for webhook dedup, using in-memory fallback", zap.Error(dedupeErr))
	}

	// --- Bot ---
	teleBot, err := bot.New(cfg, &bot.Deps{
		Subs:    subs,
		Ids:     ids,
		Support: supportSvc,
		Panel:   panelClient,
		Users:   users,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// --- Routes ---
	router.Setup(e, db, updateDeduper, teleBot.WebhookHandler())

	// --- Cron Scheduler ---
	scheduler := cronpkg.New(cfg, ids, panelClient, teleBot, logger)
	scheduler.Start()

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	go teleBot.Start()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	teleBot.Stop()

	ctx := scheduler.Stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
