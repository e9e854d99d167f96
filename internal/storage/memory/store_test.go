package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/huanews/newsingest/internal/ingest"
)

func TestSessionStagingIsInvisibleUntilCommit(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.AddSource(ingest.Source{ID: 1, Name: "wire", URL: "https://wire.example/rss", IsActive: true})

	sess, err := store.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, sess.StageArticle(ctx, ingest.Article{
		Title:        "first",
		CanonicalURL: "https://wire.example/a/1",
		URLHash:      "h1",
	}))

	// Staged rows are visible inside the session but not outside it.
	exists, err := sess.ArticleExists(ctx, "https://wire.example/a/1")
	require.NoError(t, err)
	require.True(t, exists)
	require.Empty(t, store.Articles())

	require.NoError(t, sess.Commit(ctx))
	sess.Close(ctx)

	got := store.Articles()
	require.Len(t, got, 1)
	require.Equal(t, int64(1), got[0].ID)
	require.Equal(t, "first", got[0].Title)
}

func TestSessionRollbackDiscardsEverything(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.AddSource(ingest.Source{ID: 1, Name: "wire", URL: "https://wire.example/rss", IsActive: true})

	sess, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.StageArticle(ctx, ingest.Article{CanonicalURL: "https://wire.example/a/1"}))
	require.NoError(t, sess.TouchSourceFetched(ctx, 1, time.Now()))
	require.NoError(t, sess.InsertRunRecord(ctx, ingest.RunRecord{ID: "r1", SourceID: 1}))
	require.NoError(t, sess.Rollback(ctx))
	sess.Close(ctx)

	require.Empty(t, store.Articles())
	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, runs)
	src, ok := store.Source(1)
	require.True(t, ok)
	require.Nil(t, src.LastFetchAt)
}

func TestCommitRejectsDuplicateCanonicalURL(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	sess, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.StageArticle(ctx, ingest.Article{CanonicalURL: "https://wire.example/a/1"}))
	require.NoError(t, sess.Commit(ctx))
	sess.Close(ctx)

	sess, err = store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.StageArticle(ctx, ingest.Article{CanonicalURL: "https://wire.example/a/1"}))
	err = sess.Commit(ctx)
	require.Error(t, err)
	sess.Close(ctx)

	require.Len(t, store.Articles(), 1)
}

func TestGetSourceMissing(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	sess, err := store.Begin(ctx)
	require.NoError(t, err)
	defer sess.Close(ctx)

	_, err = sess.GetSource(ctx, 99)
	require.ErrorIs(t, err, ingest.ErrSourceNotFound)
}

func TestTouchSourceFetchedAppliesOnCommit(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.AddSource(ingest.Source{ID: 7, Name: "local", URL: "https://local.example/rss", IsActive: true})

	at := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	sess, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.TouchSourceFetched(ctx, 7, at))
	require.NoError(t, sess.Commit(ctx))
	sess.Close(ctx)

	src, ok := store.Source(7)
	require.True(t, ok)
	require.NotNil(t, src.LastFetchAt)
	require.Equal(t, at, *src.LastFetchAt)
}

func TestListRunsNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	for i := 1; i <= 3; i++ {
		sess, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, sess.InsertRunRecord(ctx, ingest.RunRecord{
			ID:       string(rune('a' + i - 1)),
			SourceID: int64(i),
			Status:   ingest.RunSuccess,
		}))
		require.NoError(t, sess.Commit(ctx))
		sess.Close(ctx)
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, int64(3), runs[0].SourceID)
	require.Equal(t, int64(2), runs[1].SourceID)
}

func TestListActiveSourceIDsSkipsInactive(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.AddSource(ingest.Source{ID: 2, IsActive: true})
	store.AddSource(ingest.Source{ID: 1, IsActive: true})
	store.AddSource(ingest.Source{ID: 3, IsActive: false})

	ids, err := store.ListActiveSourceIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, ids)
}

func TestRecentFingerprintsIncludesStaged(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	sess, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.StageArticle(ctx, ingest.Article{CanonicalURL: "u1", Simhash: 10}))
	require.NoError(t, sess.Commit(ctx))
	sess.Close(ctx)

	sess, err = store.Begin(ctx)
	require.NoError(t, err)
	defer sess.Close(ctx)
	require.NoError(t, sess.StageArticle(ctx, ingest.Article{CanonicalURL: "u2", Simhash: 20}))

	prints, err := sess.RecentFingerprints(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []uint64{20, 10}, prints)
}
