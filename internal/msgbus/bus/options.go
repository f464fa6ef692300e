package bus

import (
	"time"

	"github.com/adred-codev/messagebus/internal/busmetrics"
	"github.com/adred-codev/messagebus/internal/msgbus/routing"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Option configures a Bus at construction time.
type Option func(*Bus)

// WithRoutingPolicy sets the policy used to resolve recipients when a
// sender leaves them unspecified. Defaults to Broadcast.
func WithRoutingPolicy(p routing.Policy) Option {
	return func(b *Bus) { b.policy = p }
}

// WithLogger attaches a zerolog.Logger; the zero value is a no-op
// logger, matching zerolog's own convention, so this option can be
// omitted entirely in tests.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Bus) { b.logger = logger.With().Str("component", "bus").Logger() }
}

// WithMetrics attaches a busmetrics.Collector the bus reports counters
// to. Omitted by default, leaving metrics calls as no-ops.
func WithMetrics(c *busmetrics.Collector) Option {
	return func(b *Bus) { b.metrics = c }
}

// WithMachineID sets the machine id the bus's id generator packs into
// every id it issues. Defaults to 0.
func WithMachineID(machineID uint64) Option {
	return func(b *Bus) { b.machineID = machineID }
}

// WithRateLimit caps each sender to limit messages/sec with the given
// burst, reusing one token bucket per sender across calls. Idle sender
// buckets are reaped after ttl (5 minutes if ttl is 0). Unset, Send
// performs no rate limiting.
func WithRateLimit(limit rate.Limit, burst int, ttl time.Duration) Option {
	return func(b *Bus) {
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		b.rateLimiter = newSenderRateLimiter(limit, burst, ttl)
	}
}
