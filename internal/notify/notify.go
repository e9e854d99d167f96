// Package notify delivers best-effort notifications about newly ingested
// articles. Delivery failures never affect ingestion results.
package notify

import (
	"context"

	"github.com/huanews/newsingest/internal/ingest"
)

// Noop discards all notifications.
type Noop struct{}

// NewNoop constructs a Noop notifier.
func NewNoop() *Noop { return &Noop{} }

// Notify implements ingest.Notifier.
func (*Noop) Notify(_ context.Context, _ []ingest.NewArticle) error { return nil }
