package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"milktrack/internal/auth"
	"milktrack/internal/config"
	"milktrack/internal/dashboard"
	apphttp "milktrack/internal/http"
	applog "milktrack/internal/log"
	"milktrack/internal/notify"
	"milktrack/internal/services"
	"milktrack/internal/storage"
	"milktrack/internal/store"
	mem "milktrack/internal/store/memory"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentApp})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Choose data backend
	var (
		entryStore store.EntryStore
		userStore  auth.UserStore
	)
	switch cfg.DataBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		entryStore, userStore = repo, repo
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		entryStore, userStore = mem.New(), mem.NewUserStore()
		logger.Info("Initialized memory backend")
	}

	// AMQP is optional; without it changes stay in-process.
	var publisher services.Publisher
	var amqpClient *notify.Client
	if cfg.AMQPURL != "" {
		client, err := notify.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, running without change bus", "error", err)
		} else {
			defer client.Close()
			amqpClient = client
			publisher = client
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	entrySvc := services.NewEntryService(entryStore, publisher)
	dash := dashboard.NewManager(entryStore)
	entrySvc.OnChange(func(ch store.Change) {
		if err := dash.HandleChange(context.Background(), ch); err != nil {
			logger.Error("Dashboard refresh failed", "error", err, "owner_id", ch.OwnerID)
		}
	})

	authSvc := auth.NewService(userStore, []byte(cfg.JWTSecret), cfg.TokenTTL)

	srv := apphttp.NewServer(":"+cfg.Port, authSvc, entrySvc, dash)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting milktrack server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if amqpClient != nil {
		g.Go(func() error {
			err := amqpClient.ConsumeEntryChanges(ctx, func(msg *notify.EntryChangedMessage) error {
				return dash.HandleChange(ctx, msg.Change())
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
