package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/boostwatch/boostwatch/internal/alerting"
	"github.com/boostwatch/boostwatch/internal/config"
	"github.com/boostwatch/boostwatch/internal/fingerprint"
	"github.com/boostwatch/boostwatch/internal/heartbeat"
	"github.com/boostwatch/boostwatch/internal/logging"
	"github.com/boostwatch/boostwatch/internal/oddsmath"
	"github.com/boostwatch/boostwatch/internal/opsserver"
	"github.com/boostwatch/boostwatch/internal/scrape"
	"github.com/boostwatch/boostwatch/internal/storage"
	"github.com/boostwatch/boostwatch/internal/stream"
	"github.com/boostwatch/boostwatch/internal/telegram"
	"github.com/boostwatch/boostwatch/internal/watcher"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

const (
	exitOK              = 0
	exitConfigError     = 1
	exitTooManyFailures = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitConfigError
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return exitConfigError
	}

	log := logging.Init(cfg.Logging.Level, cfg.Logging.Format)
	log.Info().Str("path", *configPath).Msg("configuration loaded")

	store, err := storage.New(cfg.Storage.MaxHistory, cfg.Storage.DBPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize storage")
		return exitConfigError
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close storage")
		}
	}()

	index := fingerprint.NewIndex()
	entries, err := store.LoadTrackedEntries()
	if err != nil {
		// Every proposition is treated as new, which risks one duplicate
		// first-notification per live boost; accepted over refusing to start.
		log.Warn().Err(err).Msg("failed to load tracked entries, starting with an empty index")
	} else {
		index.Rehydrate(entries)
		log.Info().Int("entries", len(entries)).Msg("rehydrated fingerprint index")
	}

	source := scrape.NewChromeSource(scrape.Config{
		URL:             cfg.Scrape.URL,
		WaitSelector:    cfg.Scrape.WaitSelector,
		UserAgent:       cfg.Scrape.UserAgent,
		RenderTimeout:   cfg.Scrape.RenderTimeout,
		FetchRetries:    cfg.Scrape.FetchRetries,
		RetryDelay:      cfg.Scrape.RetryDelay,
		MinInterval:     cfg.Scrape.MinRequestInterval,
		BreakerFailures: cfg.Scrape.BreakerFailures,
		BreakerCooldown: cfg.Scrape.BreakerCooldown,
	}, log.With().Str("component", "scrape").Logger())

	machine := alerting.New(index, alerting.Config{
		RenotifyDeltaPct:    cfg.Watcher.RenotifyDeltaPct,
		RenotifyMinInterval: cfg.Watcher.RenotifyMinInterval,
	}, log.With().Str("component", "alerting").Logger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(
			cfg.Telegram.BotToken,
			cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries,
			cfg.Telegram.RetryDelayBase,
			cfg.Telegram.MessagesPerMinute,
		)
		if err != nil {
			log.Error().Err(err).Msg("failed to initialize Telegram client")
			return exitConfigError
		}
		telegramClient.AttachHistory(store)
		telegramClient.ListenForCommands(ctx)
		log.Info().Msg("telegram notifier initialized")
	} else {
		log.Debug().Msg("telegram notifications disabled")
	}

	var publisher *stream.Publisher
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		publisher = stream.NewPublisher(rdb, cfg.Redis.Stream, cfg.Redis.MaxLen)

		pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
		if err := publisher.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).
				Msg("redis unreachable, stream publishing will be retried per alert")
		}
		cancelPing()
		log.Info().Str("stream", cfg.Redis.Stream).Msg("redis stream fan-out enabled")
	}

	pinger := heartbeat.NewPinger(
		cfg.Heartbeat.URL,
		10*time.Second,
		log.With().Str("component", "heartbeat").Logger(),
	)

	registry := prometheus.NewRegistry()
	metrics := opsserver.NewMetrics(registry)

	deps := watcher.Deps{
		Source:    source,
		Evaluator: oddsmath.NewEvaluator(cfg.Watcher.EVThreshold),
		Machine:   machine,
		Index:     index,
		History:   store,
		Heartbeat: pinger,
		Metrics:   metrics,
	}
	// Assign the optional sinks only when constructed: a typed nil pointer
	// inside a non-nil interface would defeat the watcher's nil checks.
	if telegramClient != nil {
		deps.Notifier = telegramClient
	}
	if publisher != nil {
		deps.Stream = publisher
	}

	w := watcher.New(deps, watcher.Config{
		PollInterval:           cfg.Watcher.PollInterval,
		PollJitterPct:          cfg.Watcher.PollJitterPct,
		MaxConsecutiveFailures: cfg.Watcher.MaxConsecutiveFailures,
		Backoff: watcher.Policy{
			Base: cfg.Watcher.BackoffBase,
			Cap:  cfg.Watcher.BackoffCap,
		},
		CheckpointInterval: cfg.Watcher.CheckpointInterval,
	}, log.With().Str("component", "watcher").Logger())

	if cfg.Ops.Enabled {
		ops := opsserver.Start(cfg.Ops.Addr, registry, w.Health, log.With().Str("component", "ops").Logger())
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			if err := ops.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("ops server shutdown failed")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	}()

	if err := w.Run(ctx); err != nil {
		log.Error().Err(err).Msg("watcher terminated")
		if telegramClient != nil {
			if sendErr := telegramClient.SendFatal(err); sendErr != nil {
				log.Warn().Err(sendErr).Msg("failed to send final diagnostic")
			}
		}
		if errors.Is(err, watcher.ErrTooManyFailures) {
			return exitTooManyFailures
		}
		return exitConfigError
	}

	log.Info().Msg("service stopped")
	return exitOK
}
