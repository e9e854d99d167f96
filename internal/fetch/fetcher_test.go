package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/huanews/newsingest/internal/clock/system"
	"github.com/huanews/newsingest/internal/ingest"
)

// recordingPauser skips real sleeps and remembers requested delays.
type recordingPauser struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (p *recordingPauser) Pause(_ context.Context, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delays = append(p.delays, delay)
}

func newTestFetcher(t *testing.T, retries int) (*PoliteFetcher, *recordingPauser) {
	t.Helper()
	f := New(Config{
		UserAgent: "newsingest-test/0.1",
		Timeout:   2 * time.Second,
		Retries:   retries,
		DomainQPS: 100,
		RobotsTTL: time.Hour,
	}, system.New(), zap.NewNop())
	p := &recordingPauser{}
	f.pauser = p
	return f, p
}

func TestFetchReturnsBody(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nAllow: /\n"))
	})
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<rss/>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f, _ := newTestFetcher(t, 0)
	body, err := f.Fetch(context.Background(), srv.URL+"/feed.xml")
	require.NoError(t, err)
	require.Equal(t, []byte("<rss/>"), body)
}

func TestFetchRobotsDisallowed(t *testing.T) {
	t.Parallel()

	var feedHits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/private/feed.xml", func(w http.ResponseWriter, _ *http.Request) {
		feedHits.Add(1)
		_, _ = w.Write([]byte("<rss/>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f, _ := newTestFetcher(t, 2)
	_, err := f.Fetch(context.Background(), srv.URL+"/private/feed.xml")

	var robotsErr *ingest.RobotsDisallowedError
	require.ErrorAs(t, err, &robotsErr)
	require.Zero(t, feedHits.Load(), "disallowed URL must never be requested")
}

func TestFetchMissingRobotsAllowsAll(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<rss/>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f, _ := newTestFetcher(t, 0)
	body, err := f.Fetch(context.Background(), srv.URL+"/feed.xml")
	require.NoError(t, err, "a 404 robots.txt fails open")
	require.Equal(t, []byte("<rss/>"), body)
}

func TestFetchNonSuccessStatusIsFatal(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f, _ := newTestFetcher(t, 3)
	_, err := f.Fetch(context.Background(), srv.URL+"/feed.xml")

	var fetchErr *ingest.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	require.Equal(t, int64(1), hits.Load(), "4xx responses are not retried")
}

func TestFetchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("<rss/>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f, _ := newTestFetcher(t, 2)
	body, err := f.Fetch(context.Background(), srv.URL+"/feed.xml")
	require.NoError(t, err)
	require.Equal(t, []byte("<rss/>"), body)
	require.Equal(t, int64(3), hits.Load())
}

func TestFetchExhaustedRetriesReportLastError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f, _ := newTestFetcher(t, 1)
	_, err := f.Fetch(context.Background(), srv.URL+"/feed.xml")

	var fetchErr *ingest.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, http.StatusBadGateway, fetchErr.StatusCode)
}

func TestFetchInvalidURL(t *testing.T) {
	t.Parallel()

	f, _ := newTestFetcher(t, 0)
	_, err := f.Fetch(context.Background(), "not-a-url")

	var fetchErr *ingest.FetchError
	require.ErrorAs(t, err, &fetchErr)
}
