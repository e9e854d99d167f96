package ingest

import (
	"context"
	"time"
)

// Fetcher retrieves the raw payload of a feed URL, honoring site politeness.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Normalizer converts a raw feed payload into ordered article drafts.
type Normalizer interface {
	Normalize(payload []byte, source Source) ([]ArticleDraft, error)
}

// Fingerprinter computes and compares dedup fingerprints.
type Fingerprinter interface {
	URLHash(url string) string
	Simhash(text string) uint64
	NearDuplicate(a, b uint64) bool
}

// Enricher supplies summary and keyword text for a draft. Implementations
// must be side-effect-free and tolerant of empty input.
type Enricher interface {
	Summarize(text string, maxChars int) string
	Keywords(text string, topK int) []string
}

// Notifier delivers new-article notifications. Best-effort: failures are
// logged by the caller and never affect run results.
type Notifier interface {
	Notify(ctx context.Context, articles []NewArticle) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Store opens per-run persistence sessions and serves read-only surfaces.
type Store interface {
	Begin(ctx context.Context) (Session, error)
	ListActiveSourceIDs(ctx context.Context) ([]int64, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// Session is one run's unit of work. All mutations are staged inside the
// session and become visible only on Commit; Rollback or Close without
// Commit discards them. A session is never shared across runs.
type Session interface {
	GetSource(ctx context.Context, id int64) (Source, error)
	ArticleExists(ctx context.Context, canonicalURL string) (bool, error)
	RecentFingerprints(ctx context.Context, limit int) ([]uint64, error)
	StageArticle(ctx context.Context, article Article) error
	TouchSourceFetched(ctx context.Context, id int64, at time.Time) error
	InsertRunRecord(ctx context.Context, record RunRecord) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context)
}
