package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkscraper/pkg/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestExistsAndInsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const id = "https://www.linkedin.com/feed/update/urn:li:activity:1/"

	found, err := s.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)

	rec := store.Record{
		ExternalID:    id,
		AuthorName:    "Jane Doe",
		Body:          "hello world",
		PublishedAt:   time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		ReactionCount: 7,
		HasMedia:      true,
		MediaURL:      "https://media/1.jpg",
		GroupLabel:    "Competitors",
	}
	require.NoError(t, s.Insert(ctx, rec))

	found, err = s.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, found)

	// A second insert of the same external ID violates uniqueness.
	assert.Error(t, s.Insert(ctx, rec))
}

func TestActiveSourcesOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddSource(ctx, store.Source{
		DisplayName: "Low", TargetURL: "https://x/low", Priority: 1,
	}))
	require.NoError(t, s.AddSource(ctx, store.Source{
		DisplayName: "High", TargetURL: "https://x/high", Priority: 5,
	}))

	sources, err := s.ActiveSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "High", sources[0].DisplayName)
	assert.Equal(t, "Low", sources[1].DisplayName)
}

func TestAddSourceUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddSource(ctx, store.Source{
		DisplayName: "Acme", TargetURL: "https://x/acme", GroupLabel: "old",
	}))
	require.NoError(t, s.AddSource(ctx, store.Source{
		DisplayName: "Acme Corp", TargetURL: "https://x/acme", GroupLabel: "new", Priority: 3,
	}))

	sources, err := s.ActiveSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "Acme Corp", sources[0].DisplayName)
	assert.Equal(t, "new", sources[0].GroupLabel)
	assert.Equal(t, 3, sources[0].Priority)
}

func TestAppendLog(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.AppendLog(ctx, store.LogEntry{
		Kind:    store.LogKindRun,
		Message: "run finished: 4 new records",
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM run_log`).Scan(&count))
	assert.Equal(t, 1, count)
}
