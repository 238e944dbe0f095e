package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"SignalPulse/internal/budget"
	"SignalPulse/internal/collector"
	"SignalPulse/internal/config"
	"SignalPulse/internal/logging"
	"SignalPulse/internal/model"
	"SignalPulse/internal/notifier"
	"SignalPulse/internal/publisher"
	"SignalPulse/internal/recorder"
	"SignalPulse/internal/scheduler"
	"SignalPulse/internal/server"
	"SignalPulse/internal/state"
	"SignalPulse/internal/stats"
	"SignalPulse/internal/strategy"
	"SignalPulse/internal/throttle"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	log.Info().Msg("SignalPulse starting...")

	// Persisted settings
	store, err := state.NewStore(cfg.Storage.StateFile, state.Snapshot{
		Watchlist:       cfg.Instruments(),
		Timeframe:       cfg.Timeframe(),
		Amount:          cfg.Amount(),
		Threshold:       cfg.Engine.Threshold,
		DurationMinutes: int(cfg.Engine.Duration / time.Minute),
		LossStreakStop:  cfg.Guardrail.LossStreakStop,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init state store")
	}
	snap := store.Get()

	// Market data
	var fetcher collector.Fetcher
	switch cfg.Market.Provider {
	case "yahoo":
		fetcher = collector.NewYahooFetcher(cfg.Proxy)
	case "mock":
		fetcher = mockFetcher(snap.EnabledSymbols(), snap.Timeframe, cfg.Market.BarCount)
	default:
		fetcher = collector.NewRestFetcher(cfg.Market.BaseURL, cfg.Market.APIKey, cfg.Proxy)
	}
	log.Info().Str("provider", fetcher.Name()).Msg("data source ready")

	limiter := budget.NewLimiter(cfg.Market.MaxCallsPerHour, cfg.Market.MaxCallsPerDay)
	col := collector.NewCollector(fetcher, limiter, cfg.CollectorOptions())

	tracker := stats.NewTracker(stats.Limits{
		LossStreakStop: snap.LossStreakStop,
		StopLoss:       cfg.StopLoss(),
		TakeProfit:     cfg.TakeProfit(),
		Payout:         cfg.Payout(),
	}, snap.Stats)

	// Telegram
	var tn *notifier.TelegramNotifier
	var out scheduler.Notifier = scheduler.LogNotifier{}
	if cfg.Telegram.Mode != "off" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIBase, cfg.Proxy)
		out = tn
	}

	// History
	var rec recorder.Recorder
	if cfg.Storage.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Storage.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	// Signal stream
	var pub publisher.Publisher = publisher.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := publisher.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Warn().Err(err).Msg("init kafka publisher failed, signals will not be streamed")
		} else {
			pub = kp
		}
	}
	defer pub.Close()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.NewScheduler(ctx, scheduler.Deps{
		Store:     store,
		Collector: col,
		Evaluator: strategy.NewEvaluator(cfg.StrategyParams()),
		Budget:    limiter,
		Throttle:  throttle.New(cfg.Engine.Cooldown, cfg.Engine.GlobalGap),
		Tracker:   tracker,
		Notifier:  out,
		Recorder:  rec,
		Publisher: pub,
		Grace:     cfg.Engine.CloseGrace,
	})
	if err := sched.RegisterJobs(cfg.Schedule.DailySummaryCron); err != nil {
		log.Fatal().Err(err).Msg("register cron jobs")
	}
	sched.StartJobs()
	defer sched.StopJobs()

	// HTTP surface
	var updates server.UpdateProcessor
	if tn != nil {
		updates = tn
	}
	srv := server.New(server.Options{
		Addr:          ":" + cfg.Server.Port,
		WebhookSecret: cfg.Telegram.WebhookSecret,
		HasBotToken:   cfg.Telegram.BotToken != "",
	}, sched, updates, sched)
	srv.Start()

	if tn != nil && cfg.Telegram.Mode == "polling" {
		go tn.StartPolling(ctx, sched)
		log.Info().Msg("telegram polling started")
	}

	if cfg.Storage.ResumeOnBoot && sched.Resume() {
		log.Info().Msg("resumed interrupted autopoll run")
	}

	log.Info().Msg("SignalPulse is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping...")
	cancel()
	if done := sched.Done(); done != nil {
		select {
		case <-done:
		case <-time.After(30 * time.Second):
			log.Warn().Msg("autopoll loop did not exit in time")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	log.Info().Msg("SignalPulse stopped")
}

// mockFetcher serves a synthetic drifting series per symbol, for dry runs
// without a provider key.
func mockFetcher(symbols []string, tf model.Timeframe, count int) *collector.MockFetcher {
	m := &collector.MockFetcher{Bars: make(map[string][]model.Bar)}
	end := time.Now().UTC().Truncate(tf.Duration())
	for i, sym := range symbols {
		m.Bars[sym] = collector.GenerateMockBars(1.0+float64(i)*0.25, 0.0002, tf, count, end)
	}
	return m
}
