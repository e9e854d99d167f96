// Package ingest defines core types shared across subsystems and implements
// the per-source ingestion orchestrator.
package ingest

import "time"

// RunStatus represents the outcome recorded for an ingestion run.
type RunStatus string

// Run status values persisted in the run log.
const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// Source is a configured feed source. Sources are created and edited by the
// administrative surface; the orchestrator only reads them and stamps
// LastFetchAt after a run.
type Source struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	Category      string     `json:"category"`
	IsActive      bool       `json:"is_active"`
	LastFetchAt   *time.Time `json:"last_fetch_at,omitempty"`
	FetchInterval int        `json:"fetch_interval_seconds"`
}

// ArticleDraft is the per-run, ephemeral form of a feed entry produced by the
// normalizer. Drafts are never persisted directly.
type ArticleDraft struct {
	Title        string
	Body         string
	CanonicalURL string
	SourceName   string
	PublishedAt  *time.Time
	Category     string
}

// Article is the persisted form of a draft, extended with dedup fingerprints
// and enrichment output.
type Article struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	CanonicalURL string     `json:"canonical_url"`
	SourceName   string     `json:"source_name"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	Category     string     `json:"category"`
	URLHash      string     `json:"url_hash"`
	Simhash      uint64     `json:"simhash"`
	Summary      string     `json:"summary"`
	Keywords     []string   `json:"keywords"`
	CreatedAt    time.Time  `json:"created_at"`
}

// RunRecord is the audit row written for every orchestrator run once a
// persistence session exists. Exactly one record per run.
type RunRecord struct {
	ID           string    `json:"id"`
	SourceID     int64     `json:"source_id"`
	URL          string    `json:"url"`
	Status       RunStatus `json:"status"`
	Created      int       `json:"created_count"`
	Skipped      int       `json:"skipped_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RunSummary is the structured result returned to manual-trigger callers.
type RunSummary struct {
	RunID    string    `json:"run_id"`
	SourceID int64     `json:"source_id"`
	Status   RunStatus `json:"status"`
	Created  int       `json:"created_count"`
	Skipped  int       `json:"skipped_count"`
	Message  string    `json:"message,omitempty"`
}

// NewArticle is the notification payload for a freshly persisted article.
type NewArticle struct {
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}
