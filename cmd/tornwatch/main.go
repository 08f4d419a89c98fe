package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/tornwatch/tornwatch/internal/activity"
	"github.com/tornwatch/tornwatch/internal/alerts"
	"github.com/tornwatch/tornwatch/internal/config"
	"github.com/tornwatch/tornwatch/internal/logger"
	"github.com/tornwatch/tornwatch/internal/storage"
	"github.com/tornwatch/tornwatch/internal/telegram"
	"github.com/tornwatch/tornwatch/internal/torn"
	"github.com/tornwatch/tornwatch/internal/trade"
	"github.com/tornwatch/tornwatch/internal/watcher"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// .env carries the API keys in development; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	client := torn.NewClient(
		cfg.Torn.APIURL,
		cfg.Torn.StockURL,
		cfg.Torn.Timeout,
		torn.ClientConfig{
			MaxRetries:     cfg.Torn.MaxRetries,
			RetryDelayBase: cfg.Torn.RetryDelayBase,
		},
	)

	var notifier watcher.Notifier
	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		notifier = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	watcherCfg := watcher.Config{
		Activity: activity.Config{
			EnergyThreshold: cfg.Detector.EnergyThreshold,
			NerveThreshold:  cfg.Detector.NerveThreshold,
			CashThreshold:   cfg.Detector.CashThreshold,
			ShortCooldown:   cfg.Detector.ShortCooldown,
			LongCooldown:    cfg.Detector.LongCooldown,
			MaxEvents:       cfg.Detector.MaxEvents,
			EventRetention:  cfg.Detector.EventRetention,
		},
		Trade: trade.DetectorConfig{
			MinBuyThreshold: cfg.Trade.MinBuyThreshold,
			RatioTolerance:  cfg.Trade.RatioTolerance,
			AbsoluteGuard:   cfg.Trade.AbsoluteGuard,
			TypicalCapacity: cfg.Trade.TypicalCapacity,
			DedupWindow:     cfg.Trade.DedupWindow,
			SellRatioMin:    cfg.Trade.SellRatioMin,
			SellRatioMax:    cfg.Trade.SellRatioMax,
			TaxRate:         cfg.Trade.TaxRate,
		},
		Alerts: alerts.Config{
			ApproachWindow: cfg.Alerts.ApproachWindow,
			Cooldown:       cfg.Alerts.Cooldown,
		},
	}

	// One watcher per account: all mutable detection state stays private to
	// its goroutine when a cycle runs the accounts in parallel.
	watchers := make([]*watcher.Watcher, 0, len(cfg.Watcher.Accounts))
	for _, acct := range cfg.Watcher.Accounts {
		watchers = append(watchers, watcher.New(
			watcher.Account{ID: acct.ID, APIKey: acct.APIKey},
			client, store, notifier, watcherCfg,
		))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		for _, w := range watchers {
			w.Shutdown()
		}
		cancel()
	}()

	if cfg.Telegram.Enabled && telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	logger.Info("Starting watch service (interval: %v, accounts: %d)",
		cfg.Watcher.PollInterval, len(watchers))

	ticker := time.NewTicker(cfg.Watcher.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Watch cycle failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	logger.Debug("Running initial watch cycle")
	handleCycleResult(runWatchCycle(ctx, watchers))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled watch cycle")
			handleCycleResult(runWatchCycle(ctx, watchers))
		}
	}
}

// runWatchCycle ticks every account in parallel. Accounts share no mutable
// state, and each watcher runs at most one tick per cycle.
func runWatchCycle(ctx context.Context, watchers []*watcher.Watcher) error {
	startTime := time.Now()
	logger.Info("Starting watch cycle for %d account(s)", len(watchers))

	g, ctx := errgroup.WithContext(ctx)
	for _, w := range watchers {
		w := w
		g.Go(func() error {
			return w.Tick(ctx)
		})
	}
	err := g.Wait()

	logger.Info("Watch cycle completed in %v", time.Since(startTime))
	return err
}
