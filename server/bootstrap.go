package server

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-token-broker/broker"
	"github.com/jrsteele09/go-token-broker/internal/config"
	"github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/internal/metrics"
	"github.com/jrsteele09/go-token-broker/oauth2"
	"github.com/jrsteele09/go-token-broker/security"
	"github.com/jrsteele09/go-token-broker/tenants"
	"github.com/jrsteele09/go-token-broker/token"
	"github.com/jrsteele09/go-token-broker/token/cache"
	"github.com/jrsteele09/go-token-broker/token/jwt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// NewTokenService builds the token exchange client described by cfg.
func NewTokenService(cfg config.BrokerConfig, m *metrics.Metrics) (*token.TokenService, error) {
	requester := token.NewHTTPRequester(&http.Client{Transport: http.DefaultTransport})
	options := []token.ServiceOption{
		token.WithExchangeTimeout(cfg.GetExchangeTimeout()),
		token.WithMetrics(m),
	}
	if probeURL := cfg.GetCertificateProbeURL(); probeURL != "" {
		options = append(options, token.WithCertificateProbe(token.NewCertificateProbe(requester, probeURL, 0)))
	}
	return token.NewTokenService(requester, options...)
}

// NewDecoder prefers OIDC discovery and falls back to a static verification key.
func NewDecoder(ctx context.Context, cfg config.SecurityConfig) (security.Decoder, error) {
	if issuer := cfg.GetOIDCIssuer(); issuer != "" {
		return jwt.NewOIDCDecoder(ctx, issuer, cfg.GetOIDCClientID())
	}
	if key := cfg.GetJWTVerificationKey(); key != "" {
		return jwt.NewDecoderFromKeyMaterial(key)
	}
	return nil, errors.Wrapf(errors.ErrMisconfigured, "either OIDC_ISSUER or JWT_VERIFICATION_KEY must be set")
}

// Bootstrap wires the broker, the token cache and the identity holder from cfg.
func Bootstrap(ctx context.Context, cfg config.Config, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*Server, error) {
	m, err := metrics.New(reg)
	if err != nil {
		return nil, errors.Wrapf(err, "[Server Bootstrap] failed to register metrics")
	}

	service, err := NewTokenService(cfg, m)
	if err != nil {
		return nil, errors.Wrapf(err, "[Server Bootstrap] failed to create token service")
	}

	endpoint, err := url.Parse(cfg.GetTokenEndpoint())
	if err != nil {
		return nil, errors.Wrapf(err, "[Server Bootstrap] invalid token endpoint")
	}

	store, err := cache.New(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "[Server Bootstrap] failed to create token cache")
	}

	resolverOptions := []broker.Option{broker.WithStore(store), broker.WithMetrics(m)}
	if baseHost := cfg.GetBaseHost(); baseHost != "" {
		resolverOptions = append(resolverOptions, broker.WithSubdomainFunc(func(r *http.Request) string {
			return tenants.SubdomainFromHost(r.Host, baseHost)
		}))
	}
	resolver, err := broker.NewResolver(service, endpoint, oauth2.NewClientCredentials(cfg.GetClientID(), cfg.GetClientSecret()), resolverOptions...)
	if err != nil {
		return nil, errors.Wrapf(err, "[Server Bootstrap] failed to create resolver")
	}

	decoder, err := NewDecoder(ctx, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "[Server Bootstrap] failed to create token decoder")
	}

	log.Info().
		Str("token_endpoint", endpoint.String()).
		Str("cache_driver", cfg.GetCacheDriver()).
		Dur("cache_ttl", cfg.GetCacheTTL()).
		Int("cache_max_entries", cfg.GetCacheMaxEntries()).
		Msg("Token broker configured")

	return New(cfg, resolver, security.NewHolder(), decoder, security.ScopeAuthoritiesExtractor{AppID: cfg.GetAppID()},
		WithMetrics(m, gatherer), WithRequiredAuthority(security.Authority(cfg.GetRequiredAuthority())))
}
