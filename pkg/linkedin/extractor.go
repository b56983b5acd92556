package linkedin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"linkscraper/pkg/browser"
	errs "linkscraper/pkg/errors"
	"linkscraper/pkg/logger"
)

// Extractor is the extraction adapter contract. Given a loaded listing
// page it returns raw records, up to the limit. Implementations must be
// deterministic for a loaded page and must not mutate session state.
type Extractor interface {
	Extract(ctx context.Context, engine browser.Engine, limit int) ([]RawRecord, error)
}

// rawPost is the fixed-shape result of the extraction JS. Counters stay
// textual here; parsing happens in Go where it is testable.
type rawPost struct {
	PostURL     string `json:"postUrl"`
	URN         string `json:"urn"`
	AuthorName  string `json:"authorName"`
	AuthorURL   string `json:"authorUrl"`
	Body        string `json:"body"`
	PublishedAt string `json:"publishedAt"`
	Reactions   string `json:"reactions"`
	Comments    string `json:"comments"`
	Shares      string `json:"shares"`
	MediaURL    string `json:"mediaUrl"`
	HasMedia    bool   `json:"hasMedia"`
}

// FeedExtractor reads post cards from a profile's listing page.
type FeedExtractor struct {
	log logger.Logger

	// ScrollPasses is how many times the page is scrolled to trigger the
	// lazy feed loader before reading. Two passes load well past the
	// per-source cap without lingering on the page.
	ScrollPasses int
}

// NewFeedExtractor creates the default extraction adapter.
func NewFeedExtractor(log logger.Logger) *FeedExtractor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &FeedExtractor{log: log, ScrollPasses: 2}
}

const scrollJS = `() => { window.scrollTo(0, document.body.scrollHeight); return true; }`

const extractJS = `() => {
	const text = (el, sel) => {
		const n = el.querySelector(sel);
		return n ? n.textContent.trim() : '';
	};
	const attr = (el, sel, name) => {
		const n = el.querySelector(sel);
		return n ? (n.getAttribute(name) || '') : '';
	};
	const cards = document.querySelectorAll('div.feed-shared-update-v2, div[data-urn*="activity"]');
	const posts = [];
	for (const card of cards) {
		const urn = card.getAttribute('data-urn') || attr(card, '[data-urn]', 'data-urn');
		const media = card.querySelector('.update-components-image img, .update-components-linkedin-video video, .update-components-article img');
		posts.push({
			urn: urn,
			postUrl: urn ? ('https://www.linkedin.com/feed/update/' + urn + '/') : '',
			authorName: text(card, '.update-components-actor__name, .update-components-actor__title'),
			authorUrl: attr(card, 'a.update-components-actor__meta-link, a.update-components-actor__image', 'href'),
			body: text(card, '.update-components-text, .feed-shared-inline-show-more-text'),
			publishedAt: '',
			reactions: text(card, '.social-details-social-counts__reactions-count'),
			comments: text(card, '.social-details-social-counts__comments button, .social-details-social-counts__comments'),
			shares: text(card, 'button[aria-label*="repost"], .social-details-social-counts__item--right-aligned'),
			mediaUrl: media ? (media.getAttribute('src') || '') : '',
			hasMedia: media !== null,
		});
	}
	return posts;
}`

// Extract implements Extractor.
func (f *FeedExtractor) Extract(ctx context.Context, engine browser.Engine, limit int) ([]RawRecord, error) {
	// Nudge the lazy loader; listing pages render a handful of posts
	// until scrolled.
	for i := 0; i < f.ScrollPasses; i++ {
		var ok bool
		if err := engine.Evaluate(ctx, scrollJS, &ok); err != nil {
			f.log.WithError(err).Debug("Scroll pass failed")
			break
		}
		if err := engine.WaitStable(ctx, time.Second); err != nil {
			break
		}
	}

	var posts []rawPost
	if err := engine.Evaluate(ctx, extractJS, &posts); err != nil {
		return nil, errs.Newf(errs.ErrorTypeExtraction, "feed extraction failed: %v", err)
	}

	records := make([]RawRecord, 0, len(posts))
	seen := make(map[string]bool, len(posts))
	for _, p := range posts {
		if limit > 0 && len(records) >= limit {
			break
		}
		rec := f.toRecord(p)
		if rec.ExternalID == "" || seen[rec.ExternalID] {
			continue
		}
		seen[rec.ExternalID] = true
		records = append(records, rec)
	}

	f.log.WithFields(map[string]interface{}{
		"cards":   len(posts),
		"records": len(records),
	}).Debug("Feed extraction completed")

	return records, nil
}

func (f *FeedExtractor) toRecord(p rawPost) RawRecord {
	rec := RawRecord{
		ExternalID:    canonicalPostID(p),
		AuthorName:    p.AuthorName,
		AuthorURL:     stripQuery(p.AuthorURL),
		Body:          p.Body,
		ReactionCount: ParseCount(p.Reactions),
		CommentCount:  ParseCount(p.Comments),
		ShareCount:    ParseCount(p.Shares),
		HasMedia:      p.HasMedia,
		MediaURL:      p.MediaURL,
	}
	if t, err := time.Parse(time.RFC3339, p.PublishedAt); err == nil {
		rec.PublishedAt = t
	} else if ts, ok := urnTimestamp(p.URN); ok {
		rec.PublishedAt = ts
	}
	return rec
}

// canonicalPostID prefers the activity URN, falling back to the post URL.
// Both are stable platform-issued identifiers for the item.
func canonicalPostID(p rawPost) string {
	if p.URN != "" {
		return fmt.Sprintf("%s/feed/update/%s/", BaseURL, p.URN)
	}
	return stripQuery(p.PostURL)
}

func stripQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}

// urnTimestamp recovers the post creation time embedded in an activity
// URN: the top 41 bits of the activity id are a millisecond epoch.
func urnTimestamp(urn string) (time.Time, bool) {
	i := strings.LastIndexByte(urn, ':')
	if i < 0 {
		return time.Time{}, false
	}
	var id uint64
	for _, r := range urn[i+1:] {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
		id = id*10 + uint64(r-'0')
	}
	if id == 0 {
		return time.Time{}, false
	}
	ms := int64(id >> 22)
	t := time.UnixMilli(ms)
	if t.Year() < 2000 || t.Year() > 2100 {
		return time.Time{}, false
	}
	return t, true
}
