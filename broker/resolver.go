// Package broker turns the credentials of an inbound request into a bearer token.
//
// HTTP Basic credentials are exchanged for an access token with the password grant and the
// result is cached, so a client repeating the same credentials costs one token endpoint call
// per cache TTL. Concurrent misses for the same credentials share a single exchange.
package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-token-broker/internal/metrics"
	"github.com/jrsteele09/go-token-broker/oauth2"
	"github.com/jrsteele09/go-token-broker/token"
	"github.com/jrsteele09/go-token-broker/token/cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const bearerPrefix = "bearer "

// TokenResolver resolves the bearer token for an inbound request.
type TokenResolver interface {
	// Resolve returns false when the request carries no usable credentials.
	Resolve(ctx context.Context, r *http.Request) (string, bool, error)
}

// Exchanger is the part of the token service the resolver needs.
type Exchanger interface {
	RetrieveAccessTokenViaPasswordGrant(ctx context.Context, tokenEndpoint *url.URL, creds oauth2.ClientCredentials, username, password, subdomain string, optional map[string]string) (*oauth2.TokenResponse, error)
}

var _ Exchanger = (token.OAuth2TokenService)(nil)

// SubdomainFunc picks the tenant subdomain for a request. Empty means the endpoint host as configured.
type SubdomainFunc func(r *http.Request) string

type Resolver struct {
	exchanger     Exchanger
	tokenEndpoint *url.URL
	client        oauth2.ClientCredentials
	store         cache.Store
	subdomainFunc SubdomainFunc
	metrics       *metrics.Metrics
	inflight      singleflight.Group
}

var _ TokenResolver = (*Resolver)(nil)

type Option func(*Resolver)

// WithStore sets the token cache. The default is an in-memory store with a 15 minute TTL
// and at most 100 entries.
func WithStore(store cache.Store) Option {
	return func(r *Resolver) {
		r.store = store
	}
}

func WithSubdomainFunc(f SubdomainFunc) Option {
	return func(r *Resolver) {
		r.subdomainFunc = f
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// NewResolver exchanges Basic credentials at tokenEndpoint on behalf of client.
func NewResolver(exchanger Exchanger, tokenEndpoint *url.URL, client oauth2.ClientCredentials, options ...Option) (*Resolver, error) {
	if exchanger == nil {
		return nil, fmt.Errorf("%w: token exchanger is required", oauth2.ErrInvalidArgument)
	}
	if tokenEndpoint == nil || tokenEndpoint.Host == "" {
		return nil, fmt.Errorf("%w: token endpoint must be an absolute uri", oauth2.ErrInvalidArgument)
	}
	if err := client.Validate(true); err != nil {
		return nil, err
	}

	r := &Resolver{
		exchanger:     exchanger,
		tokenEndpoint: tokenEndpoint,
		client:        client,
	}
	for _, opt := range options {
		opt(r)
	}
	if r.store == nil {
		store, err := cache.NewLRUStore(cache.DefaultTTL, cache.DefaultMaxEntries)
		if err != nil {
			return nil, err
		}
		r.store = store
	}
	if r.subdomainFunc == nil {
		r.subdomainFunc = func(*http.Request) string { return "" }
	}
	return r, nil
}

// Resolve extracts the credentials from the Authorization header. A bearer token is returned
// as is. Basic credentials are answered from the cache, or exchanged with the password grant
// and cached. Any other scheme, or no header, resolves to nothing.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (string, bool, error) {
	header := strings.TrimSpace(req.Header.Get("Authorization"))
	if header == "" {
		return "", false, nil
	}
	if len(header) > len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):]), true, nil
	}

	username, password, ok := req.BasicAuth()
	if !ok {
		log.Debug().Msg("Unsupported authorization scheme")
		return "", false, nil
	}

	accessToken, err := r.ResolveBasic(ctx, username, password, r.subdomainFunc(req))
	if err != nil {
		return "", false, err
	}
	return accessToken, true, nil
}

// ResolveBasic returns the cached access token for the credentials, exchanging them on a miss.
func (r *Resolver) ResolveBasic(ctx context.Context, username, password, subdomain string) (string, error) {
	key := cache.NewKey(subdomain, string(oauth2.PasswordGrant), username, password)
	if accessToken, ok := r.lookup(ctx, key); ok {
		return accessToken, nil
	}

	leader := false
	v, err, shared := r.inflight.Do(string(key), func() (interface{}, error) {
		leader = true
		// Callers sharing this exchange must not fail because the first one went away.
		detached := context.WithoutCancel(ctx)

		// Another exchange for this key may have completed between the lookup and Do.
		if accessToken, ok := r.lookup(detached, key); ok {
			return accessToken, nil
		}

		resp, err := r.exchanger.RetrieveAccessTokenViaPasswordGrant(detached, r.tokenEndpoint, r.client, username, password, subdomain, nil)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, &oauth2.ServiceError{Kind: oauth2.ResponseError, URI: r.tokenEndpoint.String(), Err: errors.New("no token issued")}
		}
		r.insert(detached, key, resp.AccessToken)
		return resp.AccessToken, nil
	})
	if shared && !leader {
		r.metrics.ObserveCoalesced()
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// lookup never fails: a panicking store counts as a miss.
func (r *Resolver) lookup(ctx context.Context, key cache.Key) (accessToken string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("Token cache lookup failed")
			r.metrics.ObserveCacheLookup(metrics.CacheError)
			accessToken, ok = "", false
		}
	}()

	accessToken, ok = r.store.Get(ctx, key)
	if ok {
		r.metrics.ObserveCacheLookup(metrics.CacheHit)
	} else {
		r.metrics.ObserveCacheLookup(metrics.CacheMiss)
	}
	return accessToken, ok
}

func (r *Resolver) insert(ctx context.Context, key cache.Key, accessToken string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("Token cache insert failed")
		}
	}()
	r.store.Add(ctx, key, accessToken)
}
