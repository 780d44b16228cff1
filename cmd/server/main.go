// Package main is the entry point for the wager engine server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/config"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/game/builtin"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/metrics"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/notify"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/pkg/db"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/repository/postgres"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/server"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/service"
)

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg.Log)

	log.Info().Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := postgres.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}
	store := postgres.New(dbPool.Pool)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Notification sinks. With Redis enabled every instance publishes to the
	// channel and its own subscriber feeds the local hub, so a user's event
	// reaches them whichever instance holds their socket.
	hub := notify.NewHub(notify.HubConfig{
		SendBuffer:   cfg.Notify.SendBuffer,
		WriteTimeout: cfg.Notify.WriteTimeout,
	}, m)

	var sinks []notify.Sink
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
		}

		relay := notify.NewRedisRelay(rdb, cfg.Redis.Channel)
		ready := make(chan struct{})
		go func() {
			if err := relay.Subscribe(ctx, hub, ready); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("Redis relay subscription ended")
			}
		}()
		select {
		case <-ready:
		case <-time.After(10 * time.Second):
			log.Fatal().Msg("Timed out subscribing to Redis relay")
		}
		sinks = append(sinks, relay)
		log.Info().Str("channel", cfg.Redis.Channel).Msg("Redis relay enabled")
	} else {
		sinks = append(sinks, hub)
	}

	if cfg.Kafka.Enabled {
		stream := notify.NewKafkaStream(notify.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		defer func() {
			if err := stream.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Kafka writer")
			}
		}()
		sinks = append(sinks, stream)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka stream enabled")
	}

	dispatcher := notify.NewDispatcher(cfg.Notify.QueueSize, m, sinks...)
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	go dispatcher.Run(dispatchCtx)

	rules := builtin.NewRegistry()
	ledger := service.NewLedger(store, m, service.LedgerOptions{VerifyOnWrite: cfg.Ledger.VerifyOnWrite})
	if err := ledger.Restore(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to restore quarantined wallets")
	}
	svc := server.Services{
		Ledger: ledger,
		Wagers: service.NewWagerService(store, ledger, rules, dispatcher, m, service.WagerLimits{
			Min: cfg.Wager.MinAmount,
			Max: cfg.Wager.MaxAmount,
		}),
		Settlement: service.NewSettlementService(store, ledger, rules, dispatcher, m),
		Approvals:  service.NewApprovalService(store, ledger, dispatcher),
		Catalog:    service.NewCatalogService(store),
		Accounts:   service.NewAccountService(store),
	}

	if cfg.Admin.Username != "" {
		if _, err := svc.Accounts.EnsureAdmin(ctx, cfg.Admin.Username); err != nil {
			log.Fatal().Err(err).Msg("Failed to create bootstrap admin")
		}
	}

	var gameTypes []string
	for _, gt := range rules.Types() {
		gameTypes = append(gameTypes, string(gt))
	}
	log.Info().
		Strs("game_types", gameTypes).
		Bool("verify_on_write", cfg.Ledger.VerifyOnWrite).
		Msg("Services initialized")

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(svc, hub, store.Ping, m, reg).Router(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server is starting...")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	hub.Close()

	stopDispatch()
	select {
	case <-dispatcher.Done():
	case <-shutdownCtx.Done():
		log.Warn().Msg("Notification queue not drained before shutdown deadline")
	}

	log.Info().Msg("Server stopped gracefully")
}

func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		return
	}
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
