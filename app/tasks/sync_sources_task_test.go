package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sourcesYAML = `
feeds:
  - region: KR
    url: https://news.example.kr/rss
  - region: US
    url: https://blog.example.com/atom.xml
    active: false
keywords:
  - en: Kubernetes
    ko: 쿠버네티스
  - en: Go
`

func TestSyncSourcesTask(t *testing.T) {
	ctx := context.Background()
	r := openRepos(t)

	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sourcesYAML), 0o644))

	factory := &Factory{FeedRepo: r.feeds, KeywordRepo: r.keywords}
	task := factory.NewSyncSourcesTask(path)
	assert.Equal(t, TaskTypeSyncSources, task.GetType())

	// Syncing twice must not duplicate anything.
	require.NoError(t, task.Execute(ctx))
	require.NoError(t, task.Execute(ctx))

	count, err := r.feeds.GetFeedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	active, err := r.feeds.GetActiveFeeds(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "https://news.example.kr/rss", active[0].URL)
	assert.Equal(t, "KR", active[0].Region)

	keywords, err := r.keywords.GetActiveKeywords(ctx)
	require.NoError(t, err)
	require.Len(t, keywords, 2)
}

func TestSyncSourcesTaskMissingFile(t *testing.T) {
	r := openRepos(t)

	task := NewSyncSourcesTask(filepath.Join(t.TempDir(), "missing.yaml"), r.feeds, r.keywords)
	assert.Error(t, task.Execute(context.Background()))
}
