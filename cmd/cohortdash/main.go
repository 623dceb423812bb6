package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"cohortdash/internal/ai"
	"cohortdash/internal/cache"
	"cohortdash/internal/config"
	"cohortdash/internal/ics"
	appLog "cohortdash/internal/log"
	"cohortdash/internal/newsletter"
	"cohortdash/internal/notify"
	"cohortdash/internal/refresh"
	"cohortdash/internal/sched"
	"cohortdash/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       string
}

func main() {
	appLog.Info("cohortdash starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(conf.LogLevel)

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"cache_refresh", conf.CacheRefreshCron,
		"newsletter_refresh", conf.NewsletterRefreshCron,
		"cache_driver", conf.Cache.Driver,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	store, err := cache.Open(conf.Cache)
	if err != nil {
		appLog.Error("failed to open cache store", err, "driver", conf.Cache.Driver)
		os.Exit(1)
	}
	defer store.Close()

	loc := conf.Location()
	reader := ics.NewReader(conf.Calendar, loc)
	scraper := newsletter.NewScraper(conf.Newsletter.ArchiveURL,
		newsletter.WithRenderFallback(conf.Newsletter.RenderFallback))
	analyzer := ai.NewClient(conf.AI.APIKey,
		ai.WithModel(conf.AI.Model),
		ai.WithBaseURL(conf.AI.BaseURL))

	var notifier notify.Notifier = notify.LogNotifier{}
	if conf.Notify.TelegramToken != "" && conf.Notify.ChatID != 0 {
		tg, err := notify.NewTelegramNotifier(conf.Notify.TelegramToken, conf.Notify.ChatID)
		if err != nil {
			appLog.Error("telegram notifier unavailable, falling back to log", err)
		} else {
			notifier = tg
		}
	}

	cacheJob := &refresh.CacheRefresh{
		Calendar: reader,
		Analyzer: analyzer,
		Store:    store,
		Notifier: notifier,
	}
	newsletterJob := &refresh.NewsletterRefresh{
		Newsletter: scraper,
		Calendar:   reader,
		Analyzer:   analyzer,
		Store:      store,
		Notifier:   notifier,
		Failsafe:   conf.Newsletter,
	}

	// Single-shot mode runs one pipeline and exits.
	switch flags.once {
	case "cache":
		if _, err := cacheJob.Run(ctx); err != nil {
			appLog.Error("cache refresh failed", err)
			os.Exit(1)
		}
		return
	case "newsletter":
		if _, err := newsletterJob.Run(ctx); err != nil {
			appLog.Error("newsletter refresh failed", err)
			os.Exit(1)
		}
		return
	case "":
	default:
		appLog.Error("unknown -once mode", errors.New("expected cache or newsletter"), "mode", flags.once)
		os.Exit(2)
	}

	scheduler := sched.New(loc)
	jobs := []sched.Job{
		{Name: "cache-refresh", Spec: conf.CacheRefreshCron, Run: func(ctx context.Context) error {
			_, err := cacheJob.Run(ctx)
			return err
		}},
		{Name: "newsletter-refresh", Spec: conf.NewsletterRefreshCron, Run: func(ctx context.Context) error {
			_, err := newsletterJob.Run(ctx)
			return err
		}},
	}
	for _, job := range jobs {
		if err := scheduler.Add(ctx, job); err != nil {
			appLog.Error("failed to schedule job", err, "job", job.Name)
			os.Exit(1)
		}
	}
	scheduler.Start(ctx)

	server := web.NewServer(conf.CronSecret, store, cacheJob, newsletterJob)
	if err := server.Serve(ctx, conf.Listen); err != nil {
		appLog.Error("HTTP server stopped", err)
		os.Exit(1)
	}

	appLog.Info("cohortdash exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.once, "once", "", "Run one pipeline (cache|newsletter) and exit")

	flag.Parse()

	return cfg
}
