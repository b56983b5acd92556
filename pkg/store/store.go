// Package store defines the persistence contract for scraped records.
// Backends answer existence checks before inserts so the pipeline can
// deduplicate against everything persisted in earlier runs.
package store

import (
	"context"
	"time"
)

// Source is one configured scrape target.
type Source struct {
	// ID is the backend's identifier for the source row.
	ID string
	// DisplayName labels the source in logs and reports.
	DisplayName string
	// TargetURL is the public profile or company page to scrape.
	TargetURL string
	// GroupLabel tags every record scraped from this source.
	GroupLabel string
	// Priority orders sources within a run; higher runs first.
	Priority int
}

// Record is a normalized post ready for persistence.
type Record struct {
	// ExternalID is the canonical post URL, unique across the dataset.
	ExternalID    string
	AuthorName    string
	AuthorURL     string
	Body          string
	PublishedAt   time.Time
	ReactionCount int
	CommentCount  int
	ShareCount    int
	HasMedia      bool
	MediaURL      string
	GroupLabel    string
}

// Log entry kinds written by the scraper.
const (
	LogKindRun           = "Scraper Run"
	LogKindCookieWarning = "Cookie Warning"
)

// LogEntry is an advisory row describing a run outcome or warning.
type LogEntry struct {
	Kind      string
	Message   string
	Timestamp time.Time
}

// RunReport summarizes one scraper run.
type RunReport struct {
	StartedAt      time.Time
	FinishedAt     time.Time
	Success        bool
	SourcesScraped int
	NewRecordCount int
	ErrorSummary   string
}

// Duration returns the wall time of the run.
func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store is the persistence backend.
type Store interface {
	// ActiveSources returns the sources marked active, ordered by
	// priority descending.
	ActiveSources(ctx context.Context) ([]Source, error)

	// Exists reports whether a record with the external ID is already
	// persisted.
	Exists(ctx context.Context, externalID string) (bool, error)

	// Insert persists a new record. The caller checks existence first;
	// backends are not required to enforce uniqueness themselves.
	Insert(ctx context.Context, rec Record) error

	// AppendLog writes an advisory entry. Failures should be surfaced
	// but are never fatal to a run.
	AppendLog(ctx context.Context, entry LogEntry) error

	// Close releases backend resources.
	Close() error
}
