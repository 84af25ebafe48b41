package database

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type matchFunc func(title, body string) []int64

func (f matchFunc) Match(title, body string) []int64 { return f(title, body) }

func matchAll(ids ...int64) KeywordMatcher {
	return matchFunc(func(string, string) []int64 { return ids })
}

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	version, dirty, err := RunMigrations(db)
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)

	return db
}

func mustKeyword(t *testing.T, db *DB, en string, active bool) int64 {
	t.Helper()
	id, err := NewKeywordRepository(db).UpsertKeyword(context.Background(), en, "", active)
	require.NoError(t, err)
	return id
}

func at(hours int) *time.Time {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(hours) * time.Hour)
	return &ts
}

func TestMigrationsAreRepeatable(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := RunMigrations(db)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}

func TestFeedRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewFeedRepository(db)

	kr, err := repo.UpsertFeed(ctx, "KR", "https://example.com/kr.xml", true)
	require.NoError(t, err)
	_, err = repo.UpsertFeed(ctx, "US", "https://example.com/us.xml", false)
	require.NoError(t, err)

	again, err := repo.UpsertFeed(ctx, "KR-2", "https://example.com/kr.xml", true)
	require.NoError(t, err)
	assert.Equal(t, kr, again)

	feeds, err := repo.GetActiveFeeds(ctx)
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	assert.Equal(t, "KR-2", feeds[0].Region)
	assert.Nil(t, feeds[0].LastCrawledAt)

	crawled := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, repo.TouchLastCrawled(ctx, kr, crawled))

	feeds, err = repo.GetActiveFeeds(ctx)
	require.NoError(t, err)
	require.NotNil(t, feeds[0].LastCrawledAt)
	assert.True(t, crawled.Equal(*feeds[0].LastCrawledAt))

	assert.ErrorIs(t, repo.TouchLastCrawled(ctx, 9999, crawled), ErrNotFound)

	count, err := repo.GetFeedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestKeywordRepositoryActiveOnly(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewKeywordRepository(db)

	active := mustKeyword(t, db, "Kubernetes", true)
	mustKeyword(t, db, "Perl", false)
	deleted := mustKeyword(t, db, "Flash", true)
	_, err := db.Exec(`UPDATE keywords SET deleted_at = CURRENT_TIMESTAMP WHERE keyword_id = ?`, deleted)
	require.NoError(t, err)

	keywords, err := repo.GetActiveKeywords(ctx)
	require.NoError(t, err)
	require.Len(t, keywords, 1)
	assert.Equal(t, active, keywords[0].ID)

	// Re-registering revives a soft-deleted keyword.
	revived, err := repo.UpsertKeyword(ctx, "Flash", "", true)
	require.NoError(t, err)
	assert.Equal(t, deleted, revived)

	keywords, err = repo.GetActiveKeywords(ctx)
	require.NoError(t, err)
	assert.Len(t, keywords, 2)
}

func TestSaveBatchCountsAndIdempotence(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewPostRepository(db)
	kw := mustKeyword(t, db, "Rust", true)

	posts := []NewPost{
		{Title: "one", Link: "http://a", Summary: "first", PublishedAt: at(1)},
		{Title: "two", Link: "http://b", Summary: "second", PublishedAt: at(2)},
		{Title: "three", Link: "", Summary: "no link", PublishedAt: at(3)},
	}

	result, err := repo.SaveBatch(ctx, posts, "KR", matchAll(kw))
	require.NoError(t, err)
	assert.Equal(t, 3, result.New)
	assert.Equal(t, 0, result.Duplicates)
	assert.Equal(t, 3, result.Mappings)

	result, err = repo.SaveBatch(ctx, posts, "KR", matchAll(kw))
	require.NoError(t, err)
	assert.Equal(t, 0, result.New)
	assert.Equal(t, 3, result.Duplicates)
	assert.Equal(t, 0, result.Mappings)

	count, err := repo.GetPostCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	post, err := repo.GetPost(ctx, LinkHash("http://a"))
	require.NoError(t, err)
	assert.Equal(t, "one", post.Title)
	assert.Equal(t, "KR", post.Region)
	assert.True(t, at(1).Equal(post.PublishedAt))
}

func TestSaveBatchDuplicateWithinBatch(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewPostRepository(db)

	posts := []NewPost{
		{Title: "first", Link: "http://a", PublishedAt: at(1)},
		{Title: "second", Link: "http://a", PublishedAt: at(2)},
	}

	result, err := repo.SaveBatch(ctx, posts, "KR", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.New)
	assert.Equal(t, 1, result.Duplicates)

	count, err := repo.GetPostCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	post, err := repo.GetPost(ctx, LinkHash("http://a"))
	require.NoError(t, err)
	assert.Equal(t, "first", post.Title)
}

func TestSaveBatchMatchesOnlyNewPosts(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewPostRepository(db)
	first := mustKeyword(t, db, "Docker", true)
	second := mustKeyword(t, db, "Podman", true)

	_, err := repo.SaveBatch(ctx, []NewPost{{Title: "old", Link: "http://old", PublishedAt: at(1)}}, "KR", matchAll(first))
	require.NoError(t, err)

	var matched []string
	matcher := matchFunc(func(title, body string) []int64 {
		matched = append(matched, title)
		return []int64{second}
	})

	result, err := repo.SaveBatch(ctx, []NewPost{
		{Title: "old", Link: "http://old", PublishedAt: at(1)},
		{Title: "new", Link: "http://new", PublishedAt: at(2)},
	}, "KR", matcher)
	require.NoError(t, err)
	assert.Equal(t, 1, result.New)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, []string{"new"}, matched)

	old, err := repo.GetPost(ctx, LinkHash("http://old"))
	require.NoError(t, err)
	ids, err := repo.GetPostKeywordIDs(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{first}, ids)
}

func TestSaveBatchDefaultsMissingPublishedTime(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	now := time.Date(2024, 5, 5, 5, 5, 5, 0, time.UTC)
	repo := &postRepository{db: db, now: func() time.Time { return now }}

	_, err := repo.SaveBatch(ctx, []NewPost{{Title: "undated", Link: "http://undated"}}, "KR", nil)
	require.NoError(t, err)

	post, err := repo.GetPost(ctx, LinkHash("http://undated"))
	require.NoError(t, err)
	assert.True(t, now.Equal(post.PublishedAt))
}

func TestSaveBatchRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewPostRepository(db)

	// Unknown keyword id violates the association foreign key.
	_, err := repo.SaveBatch(ctx, []NewPost{
		{Title: "a", Link: "http://a", PublishedAt: at(1)},
		{Title: "b", Link: "http://b", PublishedAt: at(2)},
	}, "KR", matchAll(9999))
	require.Error(t, err)

	count, err := repo.GetPostCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = repo.GetPost(ctx, LinkHash("http://a"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveBatchLargeBatch(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewPostRepository(db)
	kw := mustKeyword(t, db, "Batch", true)

	var posts []NewPost
	for i := 0; i < 250; i++ {
		posts = append(posts, NewPost{Title: fmt.Sprintf("post %d", i), Link: fmt.Sprintf("http://example.com/%d", i%200), PublishedAt: at(i)})
	}

	result, err := repo.SaveBatch(ctx, posts, "KR", matchAll(kw))
	require.NoError(t, err)
	assert.Equal(t, 200, result.New)
	assert.Equal(t, 50, result.Duplicates)
	assert.Equal(t, 200, result.Mappings)
	assert.Equal(t, len(posts), result.New+result.Duplicates)
}

func TestCapKeywordPosts(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	posts := NewPostRepository(db)
	retention := NewRetentionRepository(db)

	capped := mustKeyword(t, db, "Capped", true)
	other := mustKeyword(t, db, "Other", true)

	// Posts 0 and 1 are among the five oldest but are also held by another keyword.
	var batch []NewPost
	for i := 0; i < 35; i++ {
		batch = append(batch, NewPost{Title: fmt.Sprintf("post-%02d", i), Link: fmt.Sprintf("http://p/%d", i), PublishedAt: at(i)})
	}
	_, err := posts.SaveBatch(ctx, batch, "KR", matchFunc(func(title, body string) []int64 {
		if title == "post-00" || title == "post-01" {
			return []int64{capped, other}
		}
		return []int64{capped}
	}))
	require.NoError(t, err)

	result, err := retention.CapKeywordPosts(ctx, capped, 30)
	require.NoError(t, err)
	assert.Equal(t, 5, result.DeletedMappings)
	assert.Equal(t, 3, result.DeletedPosts)

	for i := 0; i < 35; i++ {
		post, err := posts.GetPost(ctx, LinkHash(fmt.Sprintf("http://p/%d", i)))
		switch {
		case i == 0 || i == 1:
			require.NoError(t, err)
			ids, err := posts.GetPostKeywordIDs(ctx, post.ID)
			require.NoError(t, err)
			assert.Equal(t, []int64{other}, ids)
		case i < 5:
			assert.ErrorIs(t, err, ErrNotFound, "post %d", i)
		default:
			require.NoError(t, err, "post %d", i)
		}
	}

	result, err = retention.CapKeywordPosts(ctx, capped, 30)
	require.NoError(t, err)
	assert.Equal(t, PruneResult{}, result)
}

func TestCapKeywordPostsTieBreak(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	posts := NewPostRepository(db)
	retention := NewRetentionRepository(db)
	kw := mustKeyword(t, db, "Ties", true)

	_, err := posts.SaveBatch(ctx, []NewPost{
		{Title: "a", Link: "http://a", PublishedAt: at(1)},
		{Title: "b", Link: "http://b", PublishedAt: at(1)},
		{Title: "c", Link: "http://c", PublishedAt: at(1)},
	}, "KR", matchAll(kw))
	require.NoError(t, err)

	result, err := retention.CapKeywordPosts(ctx, kw, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeletedPosts)

	// Lowest id loses when timestamps tie.
	_, err = posts.GetPost(ctx, LinkHash("http://a"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteZombiePosts(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	posts := NewPostRepository(db)
	retention := NewRetentionRepository(db)
	kw := mustKeyword(t, db, "Tagged", true)

	_, err := posts.SaveBatch(ctx, []NewPost{{Title: "zombie", Link: "http://zombie", PublishedAt: at(1)}}, "KR", nil)
	require.NoError(t, err)
	_, err = posts.SaveBatch(ctx, []NewPost{{Title: "tagged", Link: "http://tagged", PublishedAt: at(1)}}, "KR", matchAll(kw))
	require.NoError(t, err)

	deleted, err := retention.DeleteZombiePosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = posts.GetPost(ctx, LinkHash("http://zombie"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = posts.GetPost(ctx, LinkHash("http://tagged"))
	assert.NoError(t, err)
}

func TestDeleteInactiveOnlyPosts(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	posts := NewPostRepository(db)
	retention := NewRetentionRepository(db)

	active := mustKeyword(t, db, "Active", true)
	inactive := mustKeyword(t, db, "Inactive", false)
	deleted := mustKeyword(t, db, "Deleted", true)
	_, err := db.Exec(`UPDATE keywords SET deleted_at = CURRENT_TIMESTAMP WHERE keyword_id = ?`, deleted)
	require.NoError(t, err)

	save := func(link string, ids ...int64) {
		_, err := posts.SaveBatch(ctx, []NewPost{{Title: link, Link: link, PublishedAt: at(1)}}, "KR", matchAll(ids...))
		require.NoError(t, err)
	}
	save("http://inactive-only", inactive)
	save("http://mixed", active, inactive)
	save("http://deleted-only", deleted)

	ids, err := retention.GetActiveKeywordIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{active}, ids)

	result, err := retention.DeleteInactiveOnlyPosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, PruneResult{DeletedMappings: 2, DeletedPosts: 2}, result)

	_, err = posts.GetPost(ctx, LinkHash("http://inactive-only"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = posts.GetPost(ctx, LinkHash("http://deleted-only"))
	assert.ErrorIs(t, err, ErrNotFound)

	mixed, err := posts.GetPost(ctx, LinkHash("http://mixed"))
	require.NoError(t, err)
	kept, err := posts.GetPostKeywordIDs(ctx, mixed.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{active, inactive}, kept)
}

func TestRunLogRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewRunLogRepository(db)

	long := strings.Repeat("가", 1500)
	require.NoError(t, repo.Insert(ctx, RunLog{
		JobType: "RSS_CRAWLER", Level: LevelError, Status: StatusFailed,
		Detail: `{"feed_id":1}`, ErrorMessage: &long,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, repo.Insert(ctx, RunLog{
		JobType: "CLEANUP_OLD_POSTS", Level: LevelInfo, Status: StatusSuccess, AffectedCount: 4,
		CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}))

	all, err := repo.ListRecent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "CLEANUP_OLD_POSTS", all[0].JobType)
	assert.Equal(t, "{}", all[0].Detail)
	assert.Nil(t, all[0].ErrorMessage)

	crawls, err := repo.ListRecent(ctx, "RSS_CRAWLER", 10)
	require.NoError(t, err)
	require.Len(t, crawls, 1)
	require.NotNil(t, crawls[0].ErrorMessage)
	assert.Equal(t, 1000, len([]rune(*crawls[0].ErrorMessage)))
	assert.Equal(t, StatusFailed, crawls[0].Status)
}

func TestChunk(t *testing.T) {
	assert.Nil(t, chunk([]int{}, 2))
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunk([]int{1, 2, 3, 4, 5}, 2))
	assert.Equal(t, [][]int{{1, 2}}, chunk([]int{1, 2}, 2))
}
