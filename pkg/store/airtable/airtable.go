// Package airtable implements the persistence backend over the Airtable
// REST API. Field names mirror the base schema the dataset already uses,
// so the scraper can be pointed at an existing base without migration.
package airtable

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"linkscraper/pkg/config"
	errs "linkscraper/pkg/errors"
	"linkscraper/pkg/logger"
	"linkscraper/pkg/store"
)

const apiBaseURL = "https://api.airtable.com/v0"

// Store talks to one Airtable base.
type Store struct {
	http         *resty.Client
	baseID       string
	postsTable   string
	sourcesTable string
	logTable     string
	log          logger.Logger
}

// New builds an Airtable store from configuration.
func New(cfg config.AirtableConfig, log logger.Logger) (*Store, error) {
	return newWithBaseURL(cfg, apiBaseURL, log)
}

func newWithBaseURL(cfg config.AirtableConfig, baseURL string, log logger.Logger) (*Store, error) {
	if cfg.APIKey == "" || cfg.BaseID == "" {
		return nil, errs.New(errs.ErrorTypeConfig, "airtable api key and base id are required")
	}
	if log == nil {
		log = logger.GetLogger()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(cfg.APIKey).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return errs.IsRetryableStatusCode(r.StatusCode())
		})

	return &Store{
		http:         client,
		baseID:       cfg.BaseID,
		postsTable:   cfg.PostsTable,
		sourcesTable: cfg.SourcesTable,
		logTable:     cfg.LogTable,
		log:          log,
	}, nil
}

type recordPage struct {
	Records []apiRecord `json:"records"`
	Offset  string      `json:"offset"`
}

type apiRecord struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

type createRequest struct {
	Records  []createRecord `json:"records"`
	Typecast bool           `json:"typecast"`
}

type createRecord struct {
	Fields map[string]interface{} `json:"fields"`
}

// ActiveSources lists the sources marked Active, highest priority first.
func (s *Store) ActiveSources(ctx context.Context) ([]store.Source, error) {
	var sources []store.Source
	offset := ""
	for {
		var page recordPage
		req := s.http.R().
			SetContext(ctx).
			SetResult(&page).
			SetQueryParam("filterByFormula", `{Status} = "Active"`).
			SetQueryParam("sort[0][field]", "Priority").
			SetQueryParam("sort[0][direction]", "desc").
			SetQueryParamsFromValues(map[string][]string{
				"fields[]": {"Name", "Profile URL", "Group", "Priority"},
			})
		if offset != "" {
			req.SetQueryParam("offset", offset)
		}

		resp, err := req.Get(fmt.Sprintf("/%s/%s", s.baseID, s.sourcesTable))
		if err != nil {
			return nil, errs.Newf(errs.ErrorTypeConnectivity, "airtable source listing failed: %v", err)
		}
		if resp.IsError() {
			return nil, errs.Newf(errs.ErrorTypePersistence, "airtable source listing returned %d", resp.StatusCode()).
				WithCode(resp.StatusCode())
		}

		for _, rec := range page.Records {
			src := store.Source{
				ID:          rec.ID,
				DisplayName: stringField(rec.Fields, "Name"),
				TargetURL:   stringField(rec.Fields, "Profile URL"),
				GroupLabel:  stringField(rec.Fields, "Group"),
				Priority:    intField(rec.Fields, "Priority"),
			}
			if src.TargetURL == "" {
				continue
			}
			sources = append(sources, src)
		}

		if page.Offset == "" {
			break
		}
		offset = page.Offset
	}
	return sources, nil
}

// Exists checks for a persisted record by its canonical URL.
func (s *Store) Exists(ctx context.Context, externalID string) (bool, error) {
	var page recordPage
	resp, err := s.http.R().
		SetContext(ctx).
		SetResult(&page).
		SetQueryParam("filterByFormula", fmt.Sprintf(`{Post URL} = "%s"`, escapeFormula(externalID))).
		SetQueryParam("maxRecords", "1").
		Get(fmt.Sprintf("/%s/%s", s.baseID, s.postsTable))
	if err != nil {
		return false, errs.Newf(errs.ErrorTypeConnectivity, "airtable existence check failed: %v", err)
	}
	if resp.IsError() {
		return false, errs.Newf(errs.ErrorTypePersistence, "airtable existence check returned %d", resp.StatusCode()).
			WithCode(resp.StatusCode())
	}
	return len(page.Records) > 0, nil
}

// Insert creates a new post row.
func (s *Store) Insert(ctx context.Context, rec store.Record) error {
	published := rec.PublishedAt
	if published.IsZero() {
		published = time.Now()
	}
	body := createRequest{
		Typecast: true,
		Records: []createRecord{{
			Fields: map[string]interface{}{
				"Author Name":        rec.AuthorName,
				"Author Profile URL": rec.AuthorURL,
				"Group":              rec.GroupLabel,
				"Post Content":       rec.Body,
				"Post Date":          published.Format(time.RFC3339),
				"Post URL":           rec.ExternalID,
				"Likes":              rec.ReactionCount,
				"Comments":           rec.CommentCount,
				"Shares":             rec.ShareCount,
				"Has Media":          rec.HasMedia,
				"Media URL":          rec.MediaURL,
			},
		}},
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(fmt.Sprintf("/%s/%s", s.baseID, s.postsTable))
	if err != nil {
		return errs.Newf(errs.ErrorTypeConnectivity, "airtable insert failed: %v", err)
	}
	if resp.IsError() {
		return errs.Newf(errs.ErrorTypePersistence, "airtable insert returned %d: %s", resp.StatusCode(), resp.String()).
			WithCode(resp.StatusCode())
	}
	return nil
}

// AppendLog writes an advisory entry to the log table.
func (s *Store) AppendLog(ctx context.Context, entry store.LogEntry) error {
	if s.logTable == "" {
		return nil
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	body := createRequest{
		Typecast: true,
		Records: []createRecord{{
			Fields: map[string]interface{}{
				"Type":      entry.Kind,
				"Message":   entry.Message,
				"Timestamp": ts.Format(time.RFC3339),
			},
		}},
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(fmt.Sprintf("/%s/%s", s.baseID, s.logTable))
	if err != nil {
		return errs.Newf(errs.ErrorTypeConnectivity, "airtable log append failed: %v", err)
	}
	if resp.IsError() {
		return errs.Newf(errs.ErrorTypePersistence, "airtable log append returned %d", resp.StatusCode()).
			WithCode(resp.StatusCode())
	}
	return nil
}

// Close is a no-op; the REST client holds no persistent resources.
func (s *Store) Close() error { return nil }

// escapeFormula escapes a string for interpolation into an Airtable
// formula literal.
func escapeFormula(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func stringField(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func intField(fields map[string]interface{}, name string) int {
	switch v := fields[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
