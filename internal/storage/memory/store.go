// Package memory provides an in-memory store for development and testing.
// It mirrors the transactional staging semantics of the Postgres store:
// session mutations become visible only on Commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/huanews/newsingest/internal/ingest"
)

// Store is a mutex-guarded in-memory implementation of ingest.Store.
type Store struct {
	mu            sync.RWMutex
	sources       map[int64]ingest.Source
	articles      []ingest.Article
	articleURLs   map[string]struct{}
	runs          []ingest.RunRecord
	nextArticleID int64
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		sources:       make(map[int64]ingest.Source),
		articleURLs:   make(map[string]struct{}),
		nextArticleID: 1,
	}
}

// AddSource seeds a source record.
func (s *Store) AddSource(src ingest.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[src.ID] = src
}

// Source returns a seeded source by id (test helper).
func (s *Store) Source(id int64) (ingest.Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[id]
	return src, ok
}

// Articles returns a copy of all committed articles in insertion order.
func (s *Store) Articles() []ingest.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ingest.Article, len(s.articles))
	copy(out, s.articles)
	return out
}

// Begin opens a new staging session.
func (s *Store) Begin(_ context.Context) (ingest.Session, error) {
	return &session{store: s}, nil
}

// ListActiveSourceIDs returns the ids of active sources in ascending order.
func (s *Store) ListActiveSourceIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.sources))
	for id, src := range s.sources {
		if src.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ListRuns returns run records newest first, up to limit.
func (s *Store) ListRuns(_ context.Context, limit int) ([]ingest.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ingest.RunRecord, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}

type touch struct {
	sourceID int64
	at       time.Time
}

type session struct {
	store   *Store
	staged  []ingest.Article
	touches []touch
	records []ingest.RunRecord
	done    bool
}

func (se *session) GetSource(_ context.Context, id int64) (ingest.Source, error) {
	se.store.mu.RLock()
	defer se.store.mu.RUnlock()
	src, ok := se.store.sources[id]
	if !ok {
		return ingest.Source{}, ingest.ErrSourceNotFound
	}
	return src, nil
}

func (se *session) ArticleExists(_ context.Context, canonicalURL string) (bool, error) {
	se.store.mu.RLock()
	_, committed := se.store.articleURLs[canonicalURL]
	se.store.mu.RUnlock()
	if committed {
		return true, nil
	}
	for _, a := range se.staged {
		if a.CanonicalURL == canonicalURL {
			return true, nil
		}
	}
	return false, nil
}

func (se *session) RecentFingerprints(_ context.Context, limit int) ([]uint64, error) {
	out := make([]uint64, 0, limit)
	for i := len(se.staged) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, se.staged[i].Simhash)
	}
	se.store.mu.RLock()
	defer se.store.mu.RUnlock()
	for i := len(se.store.articles) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, se.store.articles[i].Simhash)
	}
	return out, nil
}

func (se *session) StageArticle(_ context.Context, article ingest.Article) error {
	se.staged = append(se.staged, article)
	return nil
}

func (se *session) TouchSourceFetched(_ context.Context, id int64, at time.Time) error {
	se.touches = append(se.touches, touch{sourceID: id, at: at})
	return nil
}

func (se *session) InsertRunRecord(_ context.Context, record ingest.RunRecord) error {
	se.records = append(se.records, record)
	return nil
}

func (se *session) Commit(_ context.Context) error {
	se.store.mu.Lock()
	defer se.store.mu.Unlock()
	for _, a := range se.staged {
		if _, dup := se.store.articleURLs[a.CanonicalURL]; dup {
			se.discard()
			return fmt.Errorf("unique violation on canonical_url %q", a.CanonicalURL)
		}
	}
	for _, a := range se.staged {
		a.ID = se.store.nextArticleID
		se.store.nextArticleID++
		se.store.articles = append(se.store.articles, a)
		se.store.articleURLs[a.CanonicalURL] = struct{}{}
	}
	for _, tc := range se.touches {
		if src, ok := se.store.sources[tc.sourceID]; ok {
			at := tc.at
			src.LastFetchAt = &at
			se.store.sources[tc.sourceID] = src
		}
	}
	se.store.runs = append(se.store.runs, se.records...)
	se.discard()
	return nil
}

func (se *session) Rollback(_ context.Context) error {
	se.discard()
	return nil
}

func (se *session) Close(_ context.Context) {
	if !se.done {
		se.discard()
	}
}

func (se *session) discard() {
	se.staged = nil
	se.touches = nil
	se.records = nil
	se.done = true
}
