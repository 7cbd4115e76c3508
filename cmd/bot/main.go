package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"causelist_notification_bot/internal/app"
	"causelist_notification_bot/internal/domain/causelist"
	"causelist_notification_bot/internal/domain/delivery"
	"causelist_notification_bot/internal/domain/schedule"
	"causelist_notification_bot/internal/domain/snapshot"
	"causelist_notification_bot/internal/infra/capture"
	"causelist_notification_bot/internal/infra/config"
	"causelist_notification_bot/internal/infra/logger"
	"causelist_notification_bot/internal/infra/pairing"
	"causelist_notification_bot/internal/infra/scheduler"
	"causelist_notification_bot/internal/infra/statestore"
	"causelist_notification_bot/internal/infra/whatsapp"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var once bool

	root := &cobra.Command{
		Use:   "causelist-bot",
		Short: "Watches a court cause-list page and delivers a snapshot over WhatsApp once a day",
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(once)
		},
		SilenceUsage: true,
	}
	root.Flags().BoolVar(&once, "once", false, "run exactly one cycle, ignoring the time window, then exit")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(once bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("could not load application configuration: %w", err)
	}

	logger.Init(cfg)
	mainLog := logger.Component("main")
	mainLog.Infof("Configuration loaded. Channel: %s, Provider: %s, %d recipient(s).",
		cfg.Channel, cfg.Provider, len(cfg.Recipients))

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	window, err := schedule.ParseTimeWindow(cfg.WindowStart, cfg.WindowEnd)
	if err != nil {
		return fmt.Errorf("invalid send window: %w", err)
	}
	profile, err := snapshot.ProfileByName(cfg.QualityProfile)
	if err != nil {
		return err
	}

	layout := statestore.NewLayout(cfg.CacheDir)
	if err := layout.Ensure(); err != nil {
		return err
	}

	markers := statestore.NewFileMarkerStore(layout.Marker())
	gate := schedule.NewGate(window, markers, loc)

	extractor := causelist.NewExtractor(causelist.Window{
		PastDays:   cfg.PlausiblePastDays,
		FutureDays: cfg.PlausibleFutureDays,
	})

	var provider snapshot.Provider
	switch cfg.Provider {
	case config.ProviderBrowser:
		provider = capture.NewBrowserProvider(layout, extractor, cfg.ChromeHeadless,
			cfg.StepTimeout, logger.Component("capture.browser"))
	default:
		provider = capture.NewMicrolinkProvider(cfg.MicrolinkAPIURL, cfg.CacheTTL,
			layout, extractor, logger.Component("capture.microlink"))
	}

	// The pairing status server only exists for the session channel; it has
	// read-only access to the current pairing artifact.
	var pairingServer *pairing.Server
	var channel delivery.Channel
	switch cfg.Channel {
	case config.ChannelWeb:
		board := pairing.NewBoard()
		pairingServer = pairing.NewServer(cfg.PairingListenAddr, board, logger.Component("pairing"))
		pairingServer.Start()

		channel = whatsapp.NewWebChannel(whatsapp.WebChannelConfig{
			SessionPath:  layout.Session(),
			Controls:     whatsapp.DefaultControls(),
			Headless:     cfg.ChromeHeadless,
			PollAttempts: cfg.PairingPollAttempts,
			PollInterval: cfg.PairingPollInterval,
			StepTimeout:  cfg.StepTimeout,
		}, board, logger.Component("whatsapp.web"))
	default:
		channel = whatsapp.NewCloudClient(whatsapp.DefaultGraphAPIURL,
			cfg.PhoneNumberID, cfg.AccessToken, logger.Component("whatsapp.cloud"))
	}

	dispatcher := delivery.NewDispatcher(cfg.SendDelay, logger.Component("dispatcher"))

	service := app.NewWatcherService(gate, provider, dispatcher, channel,
		cfg.TargetURL, profile, cfg.Recipients, cfg.CaptionTitle,
		logger.Component("watcher"))

	if once {
		err := service.RunOnce(context.Background())
		shutdownPairing(pairingServer, mainLog)
		return err
	}

	watchScheduler := scheduler.NewWatcherScheduler(service, cfg.TickInterval, loc,
		logger.Component("scheduler"))
	if err := watchScheduler.Start(); err != nil {
		return fmt.Errorf("could not start scheduler: %w", err)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLog.Info("Shutting down...")
	watchScheduler.Stop()
	shutdownPairing(pairingServer, mainLog)
	mainLog.Info("Shut down gracefully.")
	return nil
}

func shutdownPairing(srv *pairing.Server, log *logrus.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnf("Pairing server did not shut down cleanly: %v", err)
	}
}
