package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"linkscraper/pkg/browser"
	"linkscraper/pkg/config"
	"linkscraper/pkg/linkedin"
	"linkscraper/pkg/logger"
	"linkscraper/pkg/retry"
	"linkscraper/pkg/session"
	"linkscraper/pkg/store"
)

// EgressVerifier proves outbound traffic leaves through the expected
// route before any scraping happens.
type EgressVerifier interface {
	VerifyEgress(ctx context.Context) error
}

// SessionAcquirer produces a verified session or a terminal failure.
type SessionAcquirer interface {
	AcquireSession(ctx context.Context) (session.Result, error)
}

// Orchestrator runs the scrape end to end: egress check, session
// acquisition, then source-by-source extraction and ingestion. A failing
// source degrades the run to partial success; only connectivity and
// authentication failures abort it.
type Orchestrator struct {
	cfg       config.ScraperConfig
	verifier  EgressVerifier
	sessions  SessionAcquirer
	nav       session.Navigator
	engine    browser.Engine
	extractor linkedin.Extractor
	ingestor  *Ingestor
	store     store.Store
	log       logger.Logger
	now       func() time.Time
}

// NewOrchestrator wires a run orchestrator. verifier may be nil when no
// proxy is configured.
func NewOrchestrator(
	cfg config.ScraperConfig,
	verifier EgressVerifier,
	sessions SessionAcquirer,
	nav session.Navigator,
	engine browser.Engine,
	extractor linkedin.Extractor,
	ingestor *Ingestor,
	st store.Store,
	log logger.Logger,
) *Orchestrator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Orchestrator{
		cfg:       cfg,
		verifier:  verifier,
		sessions:  sessions,
		nav:       nav,
		engine:    engine,
		extractor: extractor,
		ingestor:  ingestor,
		store:     st,
		log:       log,
		now:       time.Now,
	}
}

// Run executes one full scrape and always returns a report, even when
// the run aborts early.
func (o *Orchestrator) Run(ctx context.Context) (store.RunReport, error) {
	report := store.RunReport{StartedAt: o.now()}
	o.log.Info("Starting scraper run")

	err := o.run(ctx, &report)
	report.FinishedAt = o.now()
	report.Success = err == nil

	logger.LogRunSummary(report.Success, report.NewRecordCount, report.Duration(), report.ErrorSummary)
	o.appendRunLog(ctx, report)
	return report, err
}

func (o *Orchestrator) run(ctx context.Context, report *store.RunReport) error {
	if o.verifier != nil {
		if err := o.verifier.VerifyEgress(ctx); err != nil {
			report.ErrorSummary = fmt.Sprintf("egress verification: %v", err)
			return err
		}
	}

	if _, err := o.sessions.AcquireSession(ctx); err != nil {
		report.ErrorSummary = fmt.Sprintf("session acquisition: %v", err)
		return err
	}

	sources, err := o.store.ActiveSources(ctx)
	if err != nil {
		report.ErrorSummary = fmt.Sprintf("source listing: %v", err)
		return err
	}
	if len(sources) == 0 {
		o.log.Warn("No active sources configured, nothing to scrape")
		return nil
	}
	o.log.WithField("sources", len(sources)).Info("Scraping active sources")

	var failures []string
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			report.ErrorSummary = joinFailures(append(failures, "run cancelled"))
			return err
		}

		added, err := o.scrapeSource(ctx, src)
		report.NewRecordCount += added
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", src.DisplayName, err))
		} else {
			report.SourcesScraped++
		}
		logger.LogSourceResult(src.DisplayName, added, err)

		if i < len(sources)-1 && o.cfg.SourceDelay > 0 {
			if err := retry.Wait(ctx, o.cfg.SourceDelay); err != nil {
				report.ErrorSummary = joinFailures(append(failures, "run cancelled"))
				return err
			}
		}
	}

	report.ErrorSummary = joinFailures(failures)
	return nil
}

// scrapeSource loads one source's listing page and ingests what it
// yields. Errors here are per-source and never abort the run.
func (o *Orchestrator) scrapeSource(ctx context.Context, src store.Source) (int, error) {
	listing, ok := linkedin.ListingURL(src.TargetURL)
	if !ok {
		o.log.WithFields(map[string]interface{}{
			"source": src.DisplayName,
			"url":    src.TargetURL,
		}).Warn("Unrecognized source URL shape, skipping")
		return 0, fmt.Errorf("unrecognized url shape: %s", src.TargetURL)
	}

	if !o.nav.Goto(ctx, listing) {
		return 0, fmt.Errorf("navigation to %s failed", listing)
	}

	raws, err := o.extractor.Extract(ctx, o.engine, o.cfg.MaxPostsPerSource)
	if err != nil {
		return 0, fmt.Errorf("extraction failed: %w", err)
	}

	var added int
	var lastErr error
	for _, raw := range raws {
		inserted, err := o.ingestor.Ingest(ctx, raw, src.GroupLabel)
		if err != nil {
			lastErr = err
			continue
		}
		if inserted {
			added++
		}
	}
	if lastErr != nil {
		return added, fmt.Errorf("some records failed to persist: %w", lastErr)
	}
	return added, nil
}

// appendRunLog records the run outcome as an advisory entry. Best
// effort only.
func (o *Orchestrator) appendRunLog(ctx context.Context, report store.RunReport) {
	msg := fmt.Sprintf("success=%t new_records=%d sources=%d duration=%s",
		report.Success, report.NewRecordCount, report.SourcesScraped, report.Duration().Round(time.Second))
	if report.ErrorSummary != "" {
		msg += " errors: " + report.ErrorSummary
	}
	entry := store.LogEntry{Kind: store.LogKindRun, Message: msg, Timestamp: report.FinishedAt}
	if err := o.store.AppendLog(ctx, entry); err != nil {
		o.log.WithError(err).Warn("Failed to append run log entry")
	}
}

func joinFailures(failures []string) string {
	return strings.Join(failures, "; ")
}

// StoreAdvisor forwards session advisories into the record store's log
// table.
type StoreAdvisor struct {
	store store.Store
	log   logger.Logger
}

// NewStoreAdvisor creates an advisor writing to st.
func NewStoreAdvisor(st store.Store, log logger.Logger) *StoreAdvisor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &StoreAdvisor{store: st, log: log}
}

// CookieExpiryWarning records an approaching session cookie expiry.
func (a *StoreAdvisor) CookieExpiryWarning(daysLeft int, expiresAt time.Time) {
	entry := store.LogEntry{
		Kind:      store.LogKindCookieWarning,
		Message:   fmt.Sprintf("session cookie expires in %d days (%s)", daysLeft, expiresAt.Format("2006-01-02")),
		Timestamp: time.Now(),
	}
	if err := a.store.AppendLog(context.Background(), entry); err != nil {
		a.log.WithError(err).Warn("Failed to record cookie expiry warning")
	}
}
