package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/huanews/newsingest/internal/ingest"
	"github.com/huanews/newsingest/internal/telemetry"
)

const defaultMaxBodyBytes = 5 << 20

// Config controls PoliteFetcher behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	Retries      int
	DomainQPS    float64
	RobotsTTL    time.Duration
	MaxBodyBytes int64
}

// PoliteFetcher performs single HTTP GETs while honoring robots.txt and a
// minimum inter-request interval per domain. Safe for concurrent use; all
// callers share one DomainRegistry.
type PoliteFetcher struct {
	cfg          Config
	client       *http.Client
	robotsClient *http.Client
	registry     *DomainRegistry
	retry        *retryPolicy
	pauser       pauser
	logger       *zap.Logger
}

// New builds a PoliteFetcher with its own domain registry.
func New(cfg Config, clock ingest.Clock, logger *zap.Logger) *PoliteFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &PoliteFetcher{
		cfg:          cfg,
		client:       &http.Client{Timeout: cfg.Timeout},
		robotsClient: &http.Client{Timeout: 10 * time.Second},
		registry:     NewDomainRegistry(cfg.DomainQPS, cfg.RobotsTTL, clock),
		retry:        newRetryPolicy(cfg.Retries),
		pauser:       &timerPauser{},
		logger:       logger,
	}
}

// Fetch retrieves rawURL, returning a typed error when the robots policy
// forbids the URL or the request fails after retries.
func (f *PoliteFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, &ingest.FetchError{URL: rawURL, Err: fmt.Errorf("invalid url: %q", rawURL)}
	}
	domain := strings.ToLower(parsed.Host)

	if !f.allowed(ctx, parsed, domain) {
		telemetry.ObserveRobotsDenied(domain)
		return nil, &ingest.RobotsDisallowedError{URL: rawURL}
	}

	for attempt := 0; ; attempt++ {
		delay := f.registry.Reserve(domain)
		telemetry.ObserveRateLimitDelay(domain, delay)
		f.pauser.Pause(ctx, delay)
		if ctx.Err() != nil {
			return nil, &ingest.FetchError{URL: rawURL, Err: ctx.Err()}
		}

		body, err := f.get(ctx, rawURL, domain)
		if err == nil {
			return body, nil
		}
		if !f.retry.ShouldRetry(err, attempt) {
			return nil, err
		}
		backoff := f.retry.Backoff(attempt)
		f.logger.Warn("fetch failed, retrying",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		f.pauser.Pause(ctx, backoff)
	}
}

func (f *PoliteFetcher) get(ctx context.Context, rawURL, domain string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &ingest.FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		telemetry.ObserveFetch(domain, 0)
		return nil, &ingest.FetchError{URL: rawURL, Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.Debug("close response body", zap.Error(cerr))
		}
	}()

	telemetry.ObserveFetch(domain, resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ingest.FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return nil, &ingest.FetchError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

// allowed evaluates the cached robots policy against the configured user
// agent. Robots fetch or parse failures fail open.
func (f *PoliteFetcher) allowed(ctx context.Context, parsed *url.URL, domain string) bool {
	data, fresh := f.registry.Robots(domain)
	if !fresh {
		loaded, err := f.loadRobots(ctx, parsed)
		if err != nil {
			f.logger.Warn("robots fetch failed, allowing access",
				zap.String("domain", domain), zap.Error(err))
			loaded = allowAllRobots()
		}
		f.registry.StoreRobots(domain, loaded)
		data = loaded
	}
	group := data.FindGroup(f.cfg.UserAgent)
	if group == nil {
		return true
	}
	p := parsed.Path
	if p == "" {
		p = "/"
	}
	return group.Test(p)
}

func (f *PoliteFetcher) loadRobots(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	robotsURL := *parsed
	robotsURL.Path = path.Join("/", "robots.txt")
	robotsURL.RawQuery = ""
	robotsURL.Fragment = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.robotsClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.Debug("close robots body", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	return data, nil
}

func allowAllRobots() *robotstxt.RobotsData {
	data, err := robotstxt.FromStatusAndBytes(http.StatusOK, nil)
	if err != nil {
		return &robotstxt.RobotsData{}
	}
	return data
}
