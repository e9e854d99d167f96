package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/huanews/newsingest/internal/telemetry"
)

// OrchestratorConfig carries the tunable pipeline policy.
type OrchestratorConfig struct {
	// NearDuplicateCheck enables the simhash gate against recent fingerprints.
	NearDuplicateCheck bool
	// FingerprintWindow is how many recent fingerprints the gate compares.
	FingerprintWindow int
	// EnrichEnabled toggles summary and keyword generation.
	EnrichEnabled bool
	// SummaryMaxChars bounds the generated summary, in runes.
	SummaryMaxChars int
	// KeywordsTopK bounds the generated keyword list.
	KeywordsTopK int
	// EnrichTimeout bounds enrichment per article. Timeouts leave the
	// article unenriched; they never fail the run.
	EnrichTimeout time.Duration
	// NotifyTimeout bounds the post-commit notification call.
	NotifyTimeout time.Duration
}

// OrchestratorParams collects the orchestrator's collaborators.
type OrchestratorParams struct {
	Store      Store
	Fetcher    Fetcher
	Normalizer Normalizer
	Prints     Fingerprinter
	Enricher   Enricher
	Notifier   Notifier
	Clock      Clock
	Logger     *zap.Logger
}

// Orchestrator runs the per-source ingestion pipeline: fetch, normalize,
// dedup, enrich, and persist, all inside one storage session per run.
type Orchestrator struct {
	store      Store
	fetcher    Fetcher
	normalizer Normalizer
	prints     Fingerprinter
	enricher   Enricher
	notifier   Notifier
	clock      Clock
	logger     *zap.Logger
	cfg        OrchestratorConfig
}

// NewOrchestrator wires an orchestrator from its collaborators and policy.
func NewOrchestrator(p OrchestratorParams, cfg OrchestratorConfig) (*Orchestrator, error) {
	if p.Store == nil || p.Fetcher == nil || p.Normalizer == nil || p.Prints == nil {
		return nil, fmt.Errorf("store, fetcher, normalizer, and fingerprinter are required")
	}
	if p.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if cfg.FingerprintWindow <= 0 {
		cfg.FingerprintWindow = 200
	}
	if cfg.EnrichTimeout <= 0 {
		cfg.EnrichTimeout = 5 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	return &Orchestrator{
		store:      p.Store,
		fetcher:    p.Fetcher,
		normalizer: p.Normalizer,
		prints:     p.Prints,
		enricher:   p.Enricher,
		notifier:   p.Notifier,
		clock:      p.Clock,
		logger:     p.Logger,
		cfg:        cfg,
	}, nil
}

// IngestSource runs the full pipeline for one source. A non-nil error means
// the run failed; the returned summary is populated either way. Missing or
// inactive sources return ErrSourceNotFound and write no run record.
func (o *Orchestrator) IngestSource(ctx context.Context, sourceID int64) (RunSummary, error) {
	runID := uuid.NewString()
	summary := RunSummary{RunID: runID, SourceID: sourceID, Status: RunFailed}
	logger := o.logger.With(zap.String("run_id", runID), zap.Int64("source_id", sourceID))

	sess, err := o.store.Begin(ctx)
	if err != nil {
		summary.Message = err.Error()
		return summary, fmt.Errorf("begin run: %w", err)
	}
	defer sess.Close(ctx)

	src, err := sess.GetSource(ctx, sourceID)
	if errors.Is(err, ErrSessionClosed) {
		// The pooled connection died underneath us. Close the stale
		// session and retry exactly once on a fresh one.
		logger.Warn("session closed during source load, retrying once", zap.Error(err))
		sess.Close(ctx)
		sess, err = o.store.Begin(ctx)
		if err != nil {
			summary.Message = err.Error()
			return summary, fmt.Errorf("reopen run session: %w", err)
		}
		defer sess.Close(ctx)
		src, err = sess.GetSource(ctx, sourceID)
	}
	if err != nil {
		if errors.Is(err, ErrSourceNotFound) {
			summary.Message = err.Error()
			return summary, err
		}
		summary.Message = err.Error()
		return summary, fmt.Errorf("load source: %w", err)
	}
	if !src.IsActive {
		summary.Message = ErrSourceNotFound.Error()
		return summary, fmt.Errorf("source %d: %w", sourceID, ErrSourceNotFound)
	}
	logger = logger.With(zap.String("source", src.Name))

	payload, err := o.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return o.finishFailed(ctx, sess, summary, src, logger, err)
	}

	drafts, err := o.normalizer.Normalize(payload, src)
	if err != nil {
		return o.finishFailed(ctx, sess, summary, src, logger, err)
	}

	now := o.clock.Now().UTC()
	var (
		created  int
		skipped  int
		notified []NewArticle
	)
	for _, draft := range drafts {
		keep, err := o.admit(ctx, sess, draft)
		if err != nil {
			return o.finishFailed(ctx, sess, summary, src, logger, err)
		}
		if !keep {
			skipped++
			continue
		}
		article := o.buildArticle(ctx, draft, now, logger)
		if err := sess.StageArticle(ctx, article); err != nil {
			return o.finishFailed(ctx, sess, summary, src, logger, err)
		}
		created++
		notified = append(notified, NewArticle{
			Title:     article.Title,
			Summary:   article.Summary,
			Source:    article.SourceName,
			URL:       article.CanonicalURL,
			Category:  article.Category,
			CreatedAt: article.CreatedAt,
		})
	}

	if err := sess.TouchSourceFetched(ctx, src.ID, now); err != nil {
		return o.finishFailed(ctx, sess, summary, src, logger, err)
	}
	record := RunRecord{
		ID:        runID,
		SourceID:  src.ID,
		URL:       src.URL,
		Status:    RunSuccess,
		Created:   created,
		Skipped:   skipped,
		CreatedAt: now,
	}
	if err := sess.InsertRunRecord(ctx, record); err != nil {
		return o.finishFailed(ctx, sess, summary, src, logger, err)
	}
	if err := sess.Commit(ctx); err != nil {
		_ = sess.Rollback(ctx)
		summary.Message = err.Error()
		telemetry.ObserveRunCompleted(string(RunFailed), src.Name, 0, 0)
		return summary, &CommitError{Err: err}
	}

	summary.Status = RunSuccess
	summary.Created = created
	summary.Skipped = skipped
	telemetry.ObserveRunCompleted(string(RunSuccess), src.Name, created, skipped)
	logger.Info("ingestion run complete",
		zap.Int("created", created), zap.Int("skipped", skipped))

	if o.notifier != nil && len(notified) > 0 {
		o.notify(notified, logger)
	}
	return summary, nil
}

// RunAll ingests every active source sequentially. Per-source failures are
// logged and reflected in that source's summary; they never abort the sweep.
func (o *Orchestrator) RunAll(ctx context.Context) ([]RunSummary, error) {
	ids, err := o.store.ListActiveSourceIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}
	summaries := make([]RunSummary, 0, len(ids))
	for _, id := range ids {
		if ctx.Err() != nil {
			return summaries, ctx.Err()
		}
		summary, err := o.IngestSource(ctx, id)
		if err != nil {
			o.logger.Warn("source ingestion failed",
				zap.Int64("source_id", id), zap.Error(err))
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ListRuns exposes the audit trail, newest first.
func (o *Orchestrator) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	return o.store.ListRuns(ctx, limit)
}

// admit decides whether a draft survives validation and dedup.
func (o *Orchestrator) admit(ctx context.Context, sess Session, draft ArticleDraft) (bool, error) {
	if strings.TrimSpace(draft.Title) == "" || strings.TrimSpace(draft.Body) == "" ||
		draft.CanonicalURL == "" {
		return false, nil
	}
	exists, err := sess.ArticleExists(ctx, draft.CanonicalURL)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if !o.cfg.NearDuplicateCheck {
		return true, nil
	}
	print := o.prints.Simhash(draft.Title + " " + draft.Body)
	recent, err := sess.RecentFingerprints(ctx, o.cfg.FingerprintWindow)
	if err != nil {
		return false, err
	}
	for _, other := range recent {
		if o.prints.NearDuplicate(print, other) {
			return false, nil
		}
	}
	return true, nil
}

// buildArticle fingerprints and enriches one admitted draft.
func (o *Orchestrator) buildArticle(ctx context.Context, draft ArticleDraft, now time.Time, logger *zap.Logger) Article {
	article := Article{
		Title:        draft.Title,
		Body:         draft.Body,
		CanonicalURL: draft.CanonicalURL,
		SourceName:   draft.SourceName,
		PublishedAt:  draft.PublishedAt,
		Category:     draft.Category,
		URLHash:      o.prints.URLHash(draft.CanonicalURL),
		Simhash:      o.prints.Simhash(draft.Title + " " + draft.Body),
		CreatedAt:    now,
	}
	if !o.cfg.EnrichEnabled || o.enricher == nil {
		return article
	}
	summary, keywords, ok := o.enrich(ctx, draft)
	if !ok {
		logger.Warn("enrichment timed out, persisting unenriched",
			zap.String("url", draft.CanonicalURL))
		return article
	}
	article.Summary = summary
	article.Keywords = keywords
	return article
}

type enrichResult struct {
	summary  string
	keywords []string
}

// enrich runs the enricher under its own deadline. The enricher interface is
// pure, so on timeout the stray goroutine finishes harmlessly and its result
// is dropped.
func (o *Orchestrator) enrich(ctx context.Context, draft ArticleDraft) (string, []string, bool) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.EnrichTimeout)
	defer cancel()

	done := make(chan enrichResult, 1)
	go func() {
		text := draft.Body
		if text == "" {
			text = draft.Title
		}
		done <- enrichResult{
			summary:  o.enricher.Summarize(text, o.cfg.SummaryMaxChars),
			keywords: o.enricher.Keywords(text, o.cfg.KeywordsTopK),
		}
	}()
	select {
	case res := <-done:
		return res.summary, res.keywords, true
	case <-ctx.Done():
		return "", nil, false
	}
}

// finishFailed records a failed run inside the open session and commits only
// that record. The source's last-fetch stamp is left untouched.
func (o *Orchestrator) finishFailed(ctx context.Context, sess Session, summary RunSummary, src Source, logger *zap.Logger, cause error) (RunSummary, error) {
	summary.Message = cause.Error()
	record := RunRecord{
		ID:           summary.RunID,
		SourceID:     src.ID,
		URL:          src.URL,
		Status:       RunFailed,
		ErrorMessage: cause.Error(),
		CreatedAt:    o.clock.Now().UTC(),
	}
	if err := sess.InsertRunRecord(ctx, record); err != nil {
		logger.Error("failed to record failed run", zap.Error(err))
	} else if err := sess.Commit(ctx); err != nil {
		logger.Error("failed to commit failed-run record", zap.Error(err))
	}
	telemetry.ObserveRunCompleted(string(RunFailed), src.Name, 0, 0)
	logger.Warn("ingestion run failed", zap.Error(cause))
	return summary, cause
}

// notify fires the notification hook in the background with its own deadline
// so a slow receiver cannot stall or fail the caller.
func (o *Orchestrator) notify(articles []NewArticle, logger *zap.Logger) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.NotifyTimeout)
		defer cancel()
		if err := o.notifier.Notify(ctx, articles); err != nil {
			logger.Warn("notification delivery failed",
				zap.Int("articles", len(articles)), zap.Error(err))
		}
	}()
}
