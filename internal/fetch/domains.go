// Package fetch implements the domain-aware, rate-limited, robots-compliant
// feed fetcher.
package fetch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"

	"github.com/huanews/newsingest/internal/ingest"
)

// domainState holds everything the fetcher tracks per domain: the cached
// robots policy and the request pacing state. Never persisted.
type domainState struct {
	robots          *robotstxt.RobotsData
	robotsFetchedAt time.Time
	lastRequestAt   time.Time
	limiter         *rate.Limiter
	qps             float64
}

// DomainRegistry is the injectable per-domain state map shared by all
// concurrent callers of one fetcher instance. The mutex covers only the
// read-modify-write of each reservation; waiting happens outside the lock,
// so fetches to distinct domains never serialize against each other.
type DomainRegistry struct {
	mu        sync.Mutex
	domains   map[string]*domainState
	qps       float64
	robotsTTL time.Duration
	clock     ingest.Clock
}

// NewDomainRegistry builds a registry with the default per-domain QPS and
// robots cache TTL. QPS below 0.1 is clamped to 0.1.
func NewDomainRegistry(qps float64, robotsTTL time.Duration, clock ingest.Clock) *DomainRegistry {
	if qps < 0.1 {
		qps = 0.1
	}
	if robotsTTL <= 0 {
		robotsTTL = time.Hour
	}
	return &DomainRegistry{
		domains:   make(map[string]*domainState),
		qps:       qps,
		robotsTTL: robotsTTL,
		clock:     clock,
	}
}

// state returns the entry for domain, creating it on first use.
// Caller must hold r.mu.
func (r *DomainRegistry) state(domain string) *domainState {
	key := strings.ToLower(domain)
	st, ok := r.domains[key]
	if !ok {
		st = &domainState{
			qps:     r.qps,
			limiter: rate.NewLimiter(rate.Limit(r.qps), 1),
		}
		r.domains[key] = st
	}
	return st
}

// Reserve stamps the next request slot for domain and returns how long the
// caller must wait before issuing it. The check-and-stamp is atomic per
// domain; the caller sleeps outside the lock.
func (r *DomainRegistry) Reserve(domain string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.state(domain)
	now := r.clock.Now()
	delay := st.limiter.ReserveN(now, 1).DelayFrom(now)
	st.lastRequestAt = now.Add(delay)
	return delay
}

// Robots returns the cached robots policy for domain and whether the cache
// entry is still fresh.
func (r *DomainRegistry) Robots(domain string) (*robotstxt.RobotsData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.state(domain)
	if st.robots == nil {
		return nil, false
	}
	fresh := r.clock.Now().Sub(st.robotsFetchedAt) < r.robotsTTL
	return st.robots, fresh
}

// StoreRobots caches a freshly loaded robots policy for domain.
func (r *DomainRegistry) StoreRobots(domain string, data *robotstxt.RobotsData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.state(domain)
	st.robots = data
	st.robotsFetchedAt = r.clock.Now()
}

// pauser abstracts how the fetcher waits out rate-limit and backoff delays.
type pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauser struct{}

func (p *timerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
