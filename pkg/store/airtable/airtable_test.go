package airtable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkscraper/pkg/config"
	"linkscraper/pkg/logger"
	"linkscraper/pkg/store"
)

func testConfig() config.AirtableConfig {
	return config.AirtableConfig{
		APIKey:       "key_test",
		BaseID:       "app_test",
		PostsTable:   "LinkedIn Posts",
		SourcesTable: "Sources",
		LogTable:     "Scraper Log",
	}
}

func newTestStore(t *testing.T, handler http.HandlerFunc) *Store {
	t.Helper()
	// resty only unmarshals into SetResult targets when the response
	// declares a JSON content type, so every mock reply must carry it.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	s, err := newWithBaseURL(testConfig(), srv.URL, logger.NewNopLogger())
	require.NoError(t, err)
	return s
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(config.AirtableConfig{}, logger.NewNopLogger())
	assert.Error(t, err)
}

func TestActiveSources(t *testing.T) {
	var gotFormula string
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/app_test/Sources", r.URL.Path)
		assert.Equal(t, "Bearer key_test", r.Header.Get("Authorization"))
		assert.Equal(t, "Priority", r.URL.Query().Get("sort[0][field]"))
		assert.Equal(t, "desc", r.URL.Query().Get("sort[0][direction]"))
		gotFormula = r.URL.Query().Get("filterByFormula")

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"records": []map[string]interface{}{
				{
					"id": "rec1",
					"fields": map[string]interface{}{
						"Name":        "Acme Corp",
						"Profile URL": "https://www.linkedin.com/company/acme/",
						"Group":       "Competitors",
						"Priority":    float64(2),
					},
				},
				{
					// Rows without a target URL are skipped.
					"id":     "rec2",
					"fields": map[string]interface{}{"Name": "Empty"},
				},
			},
		})
	})

	sources, err := s.ActiveSources(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, `{Status} = "Active"`, gotFormula)
	assert.Equal(t, "rec1", sources[0].ID)
	assert.Equal(t, "Acme Corp", sources[0].DisplayName)
	assert.Equal(t, "Competitors", sources[0].GroupLabel)
	assert.Equal(t, 2, sources[0].Priority)
}

func TestActiveSourcesPagination(t *testing.T) {
	calls := 0
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			assert.Empty(t, r.URL.Query().Get("offset"))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"records": []map[string]interface{}{
					{"id": "rec1", "fields": map[string]interface{}{"Profile URL": "https://x/1"}},
				},
				"offset": "page2",
			})
			return
		}
		assert.Equal(t, "page2", r.URL.Query().Get("offset"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"records": []map[string]interface{}{
				{"id": "rec2", "fields": map[string]interface{}{"Profile URL": "https://x/2"}},
			},
		})
	})

	sources, err := s.ActiveSources(context.Background())
	require.NoError(t, err)
	assert.Len(t, sources, 2)
	assert.Equal(t, 2, calls)
}

func TestExists(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		formula := r.URL.Query().Get("filterByFormula")
		if formula == `{Post URL} = "https://www.linkedin.com/feed/update/urn:1/"` {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"records": []map[string]interface{}{{"id": "rec1"}},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"records": []interface{}{}})
	})

	found, err := s.Exists(context.Background(), "https://www.linkedin.com/feed/update/urn:1/")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = s.Exists(context.Background(), "https://www.linkedin.com/feed/update/urn:2/")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInsert(t *testing.T) {
	var payload createRequest
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/app_test/LinkedIn Posts", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"records":[{"id":"recNew"}]}`))
	})

	rec := store.Record{
		ExternalID:    "https://www.linkedin.com/feed/update/urn:3/",
		AuthorName:    "Jane Doe",
		AuthorURL:     "https://www.linkedin.com/in/janedoe/",
		Body:          "hello",
		PublishedAt:   time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		ReactionCount: 12,
		CommentCount:  3,
		HasMedia:      true,
		MediaURL:      "https://media/1.jpg",
		GroupLabel:    "Competitors",
	}
	require.NoError(t, s.Insert(context.Background(), rec))

	require.Len(t, payload.Records, 1)
	fields := payload.Records[0].Fields
	assert.Equal(t, "Jane Doe", fields["Author Name"])
	assert.Equal(t, rec.ExternalID, fields["Post URL"])
	assert.Equal(t, "2026-01-05T10:00:00Z", fields["Post Date"])
	assert.Equal(t, float64(12), fields["Likes"])
	assert.Equal(t, true, fields["Has Media"])
	assert.True(t, payload.Typecast)
}

func TestInsertServerError(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"INVALID_VALUE"}`))
	})

	err := s.Insert(context.Background(), store.Record{ExternalID: "https://x"})
	assert.Error(t, err)
}

func TestAppendLog(t *testing.T) {
	var payload createRequest
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/app_test/Scraper Log", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`{"records":[{"id":"recLog"}]}`))
	})

	entry := store.LogEntry{Kind: store.LogKindCookieWarning, Message: "3 days left"}
	require.NoError(t, s.AppendLog(context.Background(), entry))
	assert.Equal(t, store.LogKindCookieWarning, payload.Records[0].Fields["Type"])
}

func TestEscapeFormula(t *testing.T) {
	assert.Equal(t, `a\"b`, escapeFormula(`a"b`))
	assert.Equal(t, `a\\b`, escapeFormula(`a\b`))
}
