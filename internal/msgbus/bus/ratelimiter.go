package bus

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// senderRateLimiter hands out one token-bucket limiter per sender,
// created lazily on first use and reaped if idle past ttl — the same
// lazy-map-plus-periodic-cleanup shape as the teacher's per-IP
// connection limiter, scoped here to one sender key instead of IP and
// with no separate global bucket, since the spec only calls for
// per-sender limiting.
type senderRateLimiter struct {
	mu     sync.Mutex
	limit  rate.Limit
	burst  int
	ttl    time.Duration
	byKey  map[string]*limiterEntry
	ticker *time.Ticker
	stop   chan struct{}
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func newSenderRateLimiter(limit rate.Limit, burst int, ttl time.Duration) *senderRateLimiter {
	l := &senderRateLimiter{
		limit: limit,
		burst: burst,
		ttl:   ttl,
		byKey: make(map[string]*limiterEntry),
		stop:  make(chan struct{}),
	}
	if ttl > 0 {
		l.ticker = time.NewTicker(ttl)
		go l.cleanupLoop()
	}
	return l
}

func (l *senderRateLimiter) allow(sender string) bool {
	return l.limiterFor(sender).Allow()
}

func (l *senderRateLimiter) limiterFor(sender string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.byKey[sender]
	if ok {
		entry.lastAccess = time.Now()
		return entry.limiter
	}

	entry = &limiterEntry{
		limiter:    rate.NewLimiter(l.limit, l.burst),
		lastAccess: time.Now(),
	}
	l.byKey[sender] = entry
	return entry.limiter
}

func (l *senderRateLimiter) cleanupLoop() {
	for {
		select {
		case <-l.ticker.C:
			l.cleanup()
		case <-l.stop:
			l.ticker.Stop()
			return
		}
	}
}

func (l *senderRateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for sender, entry := range l.byKey {
		if now.Sub(entry.lastAccess) > l.ttl {
			delete(l.byKey, sender)
		}
	}
}

func (l *senderRateLimiter) Close() {
	if l.ticker != nil {
		close(l.stop)
	}
}
