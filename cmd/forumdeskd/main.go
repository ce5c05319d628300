package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/forumdesk-io/forumdesk/internal/api"
	"github.com/forumdesk-io/forumdesk/internal/audit"
	"github.com/forumdesk-io/forumdesk/internal/bridge"
	"github.com/forumdesk-io/forumdesk/internal/config"
	"github.com/forumdesk-io/forumdesk/internal/correlation"
	"github.com/forumdesk-io/forumdesk/internal/discord"
	"github.com/forumdesk-io/forumdesk/internal/reconcile"
	"github.com/forumdesk-io/forumdesk/internal/relay"
	"github.com/forumdesk-io/forumdesk/internal/zendesk"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose logging")
	reconcileEvery := flag.Duration("reconcile-every", 10*time.Minute, "Correlation reconcile interval (0 disables)")
	flag.Parse()

	// .env is a development convenience; absence is fine.
	godotenv.Load()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(jsonHandler)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	auditLog, err := audit.Open(cfg.Audit.Path)
	if err != nil {
		logger.Error("failed to open audit log", "path", cfg.Audit.Path, "error", err)
		os.Exit(1)
	}
	defer auditLog.Close()
	logger = slog.New(audit.NewHandler(jsonHandler, auditLog))

	logger.Info("forumdeskd starting", "forum", cfg.Discord.ForumID, "port", cfg.Server.Port)

	os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755)
	db, err := correlation.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open correlation store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	conn, err := discord.New(discord.Config{
		Token:   cfg.Discord.Token,
		GuildID: cfg.Discord.GuildID,
		ForumID: cfg.Discord.ForumID,
	}, logger.With("component", "discord"))
	if err != nil {
		logger.Error("failed to init discord connector", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	markers := correlation.NewThreadStore(conn, correlation.Policy{
		Attempts: cfg.Resolve.Attempts,
		Interval: cfg.Resolve.Interval,
	})
	store := correlation.NewLayered(db, markers, logger.With("component", "correlation"))

	tickets := zendesk.New(cfg.Zendesk.Subdomain, cfg.Zendesk.Email, cfg.Zendesk.APIToken)

	b := bridge.New(bridge.Config{
		ForumID:       cfg.Discord.ForumID,
		ThreadFieldID: cfg.Zendesk.ThreadFieldID,
		GroupID:       cfg.Zendesk.GroupID,
		PreDelay:      cfg.Resolve.PreDelay,
	}, tickets, store, conn, logger.With("component", "bridge"))
	conn.RegisterHandlers(ctx, b)

	outbound := relay.New(cfg.Relay.Routes, conn, logger.With("component", "relay"))

	srv := api.NewServer(api.Config{
		Port:          cfg.Server.Port,
		PublicKey:     cfg.Discord.PublicKey,
		WebhookSecret: cfg.Zendesk.WebhookSecret,
	}, outbound, logger.With("component", "api"))

	go safeGo(logger, "discord", func() { conn.Start(ctx) })
	go safeGo(logger, "http-server", func() { srv.Start(ctx) })

	if *reconcileEvery > 0 {
		// Reconcile scans use a single attempt: old markers are either
		// visible or the thread was never bridged.
		scanner := correlation.NewThreadStore(conn, correlation.Policy{Attempts: 1})
		rec := reconcile.New(conn, db, scanner, *reconcileEvery, logger.With("component", "reconcile"))
		go safeGo(logger, "reconciler", func() { rec.Start(ctx) })
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	logger.Info("forumdeskd stopped")
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}
