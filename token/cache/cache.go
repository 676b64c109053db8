// Package cache stores access tokens obtained by the broker so repeated requests with the
// same credentials skip the token endpoint.
//
// Entries live for a fixed TTL from insertion and a store never holds more than its
// configured number of entries. Stores never fail: a backend problem is a miss.
package cache

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/jrsteele09/go-token-broker/internal/config"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverNone   = "none"

	DefaultTTL        = 15 * time.Minute
	DefaultMaxEntries = 100
)

// Key identifies a cached token. It is a fingerprint of the credentials, never the raw secret.
type Key string

// NewKey fingerprints the tenant, grant and credentials with BLAKE2b-256.
// Different secrets for the same identity give different keys, so a changed password misses.
func NewKey(subdomain, grantType, identity, secret string) Key {
	h, _ := blake2b.New256(nil)
	for _, part := range []string{subdomain, grantType, identity, secret} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return Key(hex.EncodeToString(h.Sum(nil)))
}

// Store is a bounded, TTL-expiring map from Key to access token.
// Implementations are safe for concurrent use.
type Store interface {
	// Get returns the token for key, or false when absent or expired.
	Get(ctx context.Context, key Key) (string, bool)
	// Add inserts or replaces the token for key and restarts its TTL.
	Add(ctx context.Context, key Key, token string)
	Remove(ctx context.Context, key Key)
	Len(ctx context.Context) int
	Purge(ctx context.Context)
}

// New builds the store selected by cfg. An unknown driver falls back to memory; a
// non-positive TTL or size disables caching.
func New(cfg config.CacheConfig, opts ...Option) (Store, error) {
	ttl, maxEntries := cfg.GetCacheTTL(), cfg.GetCacheMaxEntries()
	driver := strings.ToLower(strings.TrimSpace(cfg.GetCacheDriver()))
	if driver == DriverNone || ttl <= 0 || maxEntries <= 0 {
		log.Info().Str("driver", driver).Msg("Token cache disabled")
		return DisabledStore{}, nil
	}

	switch driver {
	case DriverRedis:
		return NewRedisStore(RedisOptions{
			Addr:   cfg.GetRedisAddr(),
			DB:     cfg.GetRedisDB(),
			Prefix: cfg.GetRedisPrefix(),
		}, ttl, maxEntries, opts...)
	case DriverMemory, "":
	default:
		log.Warn().Str("driver", driver).Msg("Unknown cache driver, using memory")
	}
	return NewLRUStore(ttl, maxEntries, opts...)
}

type options struct {
	nowFunc func() time.Time
}

type Option func(*options)

// WithNowFunc replaces the clock used for expiry.
func WithNowFunc(now func() time.Time) Option {
	return func(o *options) {
		o.nowFunc = now
	}
}

func buildOptions(opts []Option) options {
	o := options{nowFunc: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.nowFunc == nil {
		o.nowFunc = time.Now
	}
	return o
}

// DisabledStore caches nothing.
type DisabledStore struct{}

var _ Store = DisabledStore{}

func (DisabledStore) Get(context.Context, Key) (string, bool) { return "", false }
func (DisabledStore) Add(context.Context, Key, string)        {}
func (DisabledStore) Remove(context.Context, Key)             {}
func (DisabledStore) Len(context.Context) int                 { return 0 }
func (DisabledStore) Purge(context.Context)                   {}
