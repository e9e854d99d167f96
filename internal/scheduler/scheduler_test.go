package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/huanews/newsingest/internal/ingest"
)

type countingTrigger struct {
	calls atomic.Int32
}

func (t *countingTrigger) RunAll(_ context.Context) ([]ingest.RunSummary, error) {
	t.calls.Add(1)
	return []ingest.RunSummary{{Status: ingest.RunSuccess, Created: 1}}, nil
}

func TestSchedulerSweepsOnInterval(t *testing.T) {
	trigger := &countingTrigger{}
	s := New(trigger, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	require.Eventually(t, func() bool {
		return trigger.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	s.Wait()
	after := trigger.calls.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, after, trigger.calls.Load())
}

func TestSchedulerStopsWhenContextCancelled(t *testing.T) {
	trigger := &countingTrigger{}
	s := New(trigger, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
