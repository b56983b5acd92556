// Package pipeline connects extraction to persistence: each raw record
// is normalized, deduplicated against the store and inserted at most
// once. The orchestrator in this package drives whole runs.
package pipeline

import (
	"context"
	"strings"

	"linkscraper/pkg/linkedin"
	"linkscraper/pkg/logger"
	"linkscraper/pkg/store"
)

// Ingestor normalizes and persists raw records.
type Ingestor struct {
	store   store.Store
	bodyMax int
	log     logger.Logger
}

// NewIngestor creates an ingestor. bodyMax caps the persisted body
// length; zero disables truncation.
func NewIngestor(st store.Store, bodyMax int, log logger.Logger) *Ingestor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Ingestor{store: st, bodyMax: bodyMax, log: log}
}

// Ingest persists one record unless it already exists. It reports
// whether an insert happened. A record without an external ID is
// dropped without touching the store. When the existence check fails the
// record is skipped rather than risked as a duplicate.
func (i *Ingestor) Ingest(ctx context.Context, raw linkedin.RawRecord, groupLabel string) (bool, error) {
	externalID := strings.TrimSpace(raw.ExternalID)
	if externalID == "" {
		i.log.Debug("Dropping record without external ID")
		return false, nil
	}

	exists, err := i.store.Exists(ctx, externalID)
	if err != nil {
		i.log.WithError(err).WithField("external_id", externalID).
			Warn("Existence check failed, skipping record")
		return false, err
	}
	if exists {
		return false, nil
	}

	rec := i.normalize(raw, externalID, groupLabel)
	if err := i.store.Insert(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

// normalize maps a raw extraction to the persistence shape.
func (i *Ingestor) normalize(raw linkedin.RawRecord, externalID, groupLabel string) store.Record {
	body := strings.TrimSpace(raw.Body)
	if i.bodyMax > 0 {
		if r := []rune(body); len(r) > i.bodyMax {
			body = string(r[:i.bodyMax])
		}
	}
	return store.Record{
		ExternalID:    externalID,
		AuthorName:    strings.TrimSpace(raw.AuthorName),
		AuthorURL:     strings.TrimSpace(raw.AuthorURL),
		Body:          body,
		PublishedAt:   raw.PublishedAt,
		ReactionCount: raw.ReactionCount,
		CommentCount:  raw.CommentCount,
		ShareCount:    raw.ShareCount,
		HasMedia:      raw.HasMedia,
		MediaURL:      strings.TrimSpace(raw.MediaURL),
		GroupLabel:    groupLabel,
	}
}
