package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"linkscraper/pkg/browser"
	"linkscraper/pkg/config"
	"linkscraper/pkg/linkedin"
	"linkscraper/pkg/logger"
	"linkscraper/pkg/nav"
	"linkscraper/pkg/pipeline"
	"linkscraper/pkg/proxy"
	"linkscraper/pkg/ratelimit"
	"linkscraper/pkg/scheduler"
	"linkscraper/pkg/session"
	"linkscraper/pkg/store"
	"linkscraper/pkg/store/airtable"
	"linkscraper/pkg/store/sqlitestore"
)

var daemonMode bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scraper once or as a scheduled daemon",
	Long: `Run executes a full scrape: verify proxy egress, acquire a session,
then visit every active source and persist new posts.

With --daemon the process stays up and repeats the run on the configured
cron schedule. Overlapping runs are skipped.`,
	Example: `  # One scrape, then exit
  linkscraper run

  # Stay resident and follow the schedule
  linkscraper run --daemon`,
	RunE: runScraper,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&daemonMode, "daemon", false, "keep running on the configured schedule")
}

func runScraper(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !daemonMode {
		return executeRun(ctx, cfg, st, log)
	}

	sched := scheduler.New(log)
	job := func(ctx context.Context) {
		if err := executeRun(ctx, cfg, st, log); err != nil {
			log.WithError(err).Error("Scheduled run failed")
		}
	}
	if err := sched.Schedule(ctx, cfg.Schedule.Expression, job); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Schedule.RunOnStart {
		sched.RunNow(ctx, job)
	}

	log.WithField("schedule", cfg.Schedule.Expression).Info("Daemon running, waiting for schedule")
	<-ctx.Done()
	log.Info("Shutdown signal received")
	return nil
}

// executeRun performs one complete scrape with a fresh browser.
func executeRun(ctx context.Context, cfg *config.Config, st store.Store, log logger.Logger) error {
	gateway, err := proxy.NewGateway(cfg, log)
	if err != nil {
		return err
	}

	eng, err := openEngine(cfg, gateway, false, log)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() { _ = eng.Close() }()

	var limiter ratelimit.Limiter
	if cfg.Scraper.NavPerMinute > 0 {
		limiter = ratelimit.NewSlidingWindow(cfg.Scraper.NavPerMinute, time.Minute)
	}
	policy := nav.DefaultPolicy(cfg.Scraper.NavMaxAttempts, cfg.Scraper.PageTimeout, cfg.Scraper.NavRetryDelay)
	controller := nav.NewController(eng, policy, limiter, log)

	chain := session.NewChain(cfg.LinkedIn.CookiesJSON, cfg.Session.CookieFile, log)
	advisor := pipeline.NewStoreAdvisor(st, log)
	opts := []session.Option{session.WithAdvisor(advisor)}
	if cfg.Session.ManualLoginEnabled {
		opts = append(opts, session.WithInteractiveEngine(func() (browser.Engine, error) {
			return openEngine(cfg, gateway, true, log)
		}))
	}
	sessions := session.NewManager(cfg.Session, cfg.LinkedIn, eng, controller, chain, log, opts...)

	ingestor := pipeline.NewIngestor(st, cfg.Scraper.BodyMaxLength, log)
	extractor := linkedin.NewFeedExtractor(log)
	orchestrator := pipeline.NewOrchestrator(
		cfg.Scraper, gateway, sessions, controller, eng, extractor, ingestor, st, log)

	_, err = orchestrator.Run(ctx)
	return err
}

// openEngine launches a browser wired through the resolved proxy.
func openEngine(cfg *config.Config, gateway *proxy.Gateway, headful bool, log logger.Logger) (browser.Engine, error) {
	opts := browser.Options{
		UserAgent:      cfg.LinkedIn.UserAgent,
		Headful:        headful,
		BlockResources: []string{"Image", "Media", "Font"},
		Logger:         log,
	}
	if resolved := gateway.Resolved(); resolved != nil {
		opts.ProxyServer = resolved.Server
		opts.ProxyUsername = resolved.Username
		opts.ProxyPassword = resolved.Password
	}
	return browser.NewRodEngine(opts)
}

// openStore picks the persistence backend from configuration.
func openStore(cfg *config.Config, log logger.Logger) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "airtable":
		return airtable.New(cfg.Storage.Airtable, log)
	case "sqlite":
		return sqlitestore.Open(cfg.Storage.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}
