package gcache

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cachekit/gcache/metrics"
	"github.com/cachekit/gcache/serializer"
	"github.com/cachekit/gcache/sharedtier"
)

// Config is the assembled configuration for one Facade. Build it with
// New's functional options rather than constructing it directly.
type Config struct {
	Prefix string

	RedisURL            string
	RedisClient         *redis.Client
	RemoteClient        sharedtier.RemoteClient
	RemoteClientFactory sharedtier.ClientFactory

	RateLimitRPS   float64
	RateLimitBurst int

	LocalCapacity int
	BridgeWorkers int
	WatermarkTTL  time.Duration
	LocalOnly     bool

	Serializer serializer.Serializer
	Sink       metrics.Sink
	Logger     *slog.Logger
}

// Option configures a Facade at construction time.
type Option func(*Config)

// WithPrefix sets the URN prefix segment every canonical key carries.
func WithPrefix(p string) Option { return func(c *Config) { c.Prefix = p } }

// WithRedisURL configures the shared tier's RemoteClient from a
// redis:// connection string. Mutually exclusive with WithRedisClient
// and WithRemoteClient.
func WithRedisURL(url string) Option { return func(c *Config) { c.RedisURL = url } }

// WithRedisClient configures the shared tier's RemoteClient from an
// already-constructed go-redis client. Mutually exclusive with
// WithRedisURL and WithRemoteClient.
func WithRedisClient(rdb *redis.Client) Option { return func(c *Config) { c.RedisClient = rdb } }

// WithRemoteClient installs a custom shared-tier transport directly,
// bypassing the Redis-specific options entirely. Mutually exclusive with
// WithRedisURL and WithRedisClient.
func WithRemoteClient(rc sharedtier.RemoteClient) Option {
	return func(c *Config) { c.RemoteClient = rc }
}

// WithRemoteClientFactory gives every bridge worker its own shared-tier
// client instead of sharing the facade's single RemoteClient across
// worker goroutines — required for a clustered client whose connection
// pool is not safe to share that way. The main chain also uses one client
// built from this factory. Combining it with WithRedisURL,
// WithRedisClient or WithRemoteClient fails with
// ErrConflictingRedisConfig. See bridge.WithClientFactory for how each
// worker uses it.
func WithRemoteClientFactory(f sharedtier.ClientFactory) Option {
	return func(c *Config) { c.RemoteClientFactory = f }
}

// WithRateLimit caps outbound shared-tier traffic to at most rps
// requests per second, allowing bursts up to burst, by wrapping
// whichever RemoteClient is resolved (including one built per bridge
// worker via WithRemoteClientFactory) in a sharedtier.RateLimitedClient.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Config) { c.RateLimitRPS = rps; c.RateLimitBurst = burst }
}

// WithLocalOnly runs the facade with no shared store: the shared tier is
// backed by sharedtier.NoopClient, so a configured REMOTE layer always
// misses and discards its writes, Invalidate changes no cached value
// (the local tier is not watermark-checked), and Flushall clears only
// the local tier. Useful for single-process deployments and for tests
// that want to avoid a Redis dependency.
func WithLocalOnly() Option { return func(c *Config) { c.LocalOnly = true } }

// WithLocalCapacity bounds the local tier's entry count.
func WithLocalCapacity(n int) Option { return func(c *Config) { c.LocalCapacity = n } }

// WithBridgeWorkers sizes the sync call path's worker pool.
func WithBridgeWorkers(n int) Option { return func(c *Config) { c.BridgeWorkers = n } }

// WithWatermarkTTL sets the TTL applied to invalidation watermark keys
// (default sharedtier.MinWatermarkTTL); the value is used as given.
func WithWatermarkTTL(d time.Duration) Option { return func(c *Config) { c.WatermarkTTL = d } }

// WithSerializer overrides the shared tier's value codec. The default is
// encoding/gob.
func WithSerializer(s serializer.Serializer) Option { return func(c *Config) { c.Serializer = s } }

// WithSink installs a metrics backend. The default discards every
// observation.
func WithSink(s metrics.Sink) Option { return func(c *Config) { c.Sink = s } }

// WithLogger overrides the structured logger used for fail-open warnings
// and invalidation records.
func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.Logger = l } }

func defaultConfig() Config {
	return Config{
		Prefix:        "gcache",
		LocalCapacity: 10_000,
		BridgeWorkers: 16,
		WatermarkTTL:  sharedtier.MinWatermarkTTL,
		Serializer:    serializer.NewGob(),
		Sink:          metrics.Noop{},
		Logger:        slog.Default(),
	}
}

// ErrConflictingRedisConfig is returned when more than one of
// WithRedisURL, WithRedisClient, WithRemoteClient, and
// WithRemoteClientFactory is supplied: the caller must pick exactly one
// shared-tier transport.
var ErrConflictingRedisConfig = fmt.Errorf("gcache: conflicting shared-tier transport options")

func (c Config) remoteClientCount() int {
	n := 0
	if c.RedisURL != "" {
		n++
	}
	if c.RedisClient != nil {
		n++
	}
	if c.RemoteClient != nil {
		n++
	}
	if c.RemoteClientFactory != nil {
		n++
	}
	return n
}

func (c Config) validate() error {
	if c.remoteClientCount() > 1 {
		return ErrConflictingRedisConfig
	}
	return nil
}
