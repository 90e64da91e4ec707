package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tg_support_bot/internal/app"
	"tg_support_bot/internal/config"
	"tg_support_bot/internal/feature/admin"
	"tg_support_bot/internal/logging"
	"tg_support_bot/internal/messenger"
	"tg_support_bot/internal/server"
	"tg_support_bot/internal/telegram"
)

const (
	adminBootstrapTimeout = 5 * time.Second
	storeCloseTimeout     = 5 * time.Second
	identityTimeout       = 5 * time.Second
	httpShutdownTimeout   = 10 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":   "startup",
		"backend": cfg.StoreBackend,
		"env":     cfg.AppEnv,
	}).Info("configuration loaded")

	backend, err := app.OpenStore(context.Background(), cfg, logger)
	if err != nil {
		logger.WithError(err).Error("store connection error")
		fmt.Fprintf(os.Stderr, "store connection error: %v\n", err)
		os.Exit(1)
	}

	bootstrapCtx, cancelBootstrap := context.WithTimeout(context.Background(), adminBootstrapTimeout)
	if err := admin.NewBootstrapper(backend.Gateway, logger).Bootstrap(bootstrapCtx, cfg.AdminID); err != nil {
		// Defaults are applied in memory when the settings row is missing, so
		// the bot can still serve.
		logger.WithError(err).Warn("admin bootstrap error")
	}
	cancelBootstrap()

	guard := app.OpenGuard(context.Background(), cfg, logger)

	tgClient, err := telegram.NewClient(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	outbound, err := messenger.New(tgClient.Bot(), logger)
	if err != nil {
		logger.WithError(err).Error("messenger setup error")
		fmt.Fprintf(os.Stderr, "messenger setup error: %v\n", err)
		os.Exit(1)
	}

	botUsername := ""
	identityCtx, cancelIdentity := context.WithTimeout(context.Background(), identityTimeout)
	if status, err := tgClient.WebhookInfo(identityCtx); err != nil {
		logger.WithError(err).Warn("could not read bot identity")
	} else {
		botUsername = status.BotUsername
		logger.WithFields(logging.Fields{
			"event":           "telegram_identity",
			"bot_username":    status.BotUsername,
			"webhook_url":     status.URL,
			"pending_updates": status.PendingUpdates,
		}).Info("telegram identity resolved")
	}
	cancelIdentity()

	rt, err := app.BuildRouter(app.Deps{
		Config:      cfg,
		Store:       backend.Gateway,
		Messenger:   outbound,
		Guard:       guard,
		BotUsername: botUsername,
		Logger:      logger,
	})
	if err != nil {
		logger.WithError(err).Error("router setup error")
		fmt.Fprintf(os.Stderr, "router setup error: %v\n", err)
		os.Exit(1)
	}
	tgClient.Route(rt)

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	httpServer := server.NewServer(server.Options{
		Port:      cfg.HTTPPort,
		Store:     backend.Gateway,
		Webhook:   tgClient,
		Secret:    cfg.WebhookSecret,
		PublicURL: cfg.PublicURL,
		Logger:    logger,
	})

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Serve(signalCtx, httpServer, tgClient, httpShutdownTimeout, logger); err != nil {
		logger.WithError(err).Error("server stopped with error")
	}

	if err := guard.Close(); err != nil {
		logger.WithError(err).Warn("duplicate guard close error")
	}

	closeCtx, cancelClose := context.WithTimeout(context.Background(), storeCloseTimeout)
	if err := backend.Close(closeCtx); err != nil {
		logger.WithError(err).Error("store disconnect error")
	} else {
		logger.WithField("event", "store_disconnect").Info("store disconnected")
	}
	cancelClose()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}
