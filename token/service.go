package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-token-broker/internal/metrics"
	"github.com/jrsteele09/go-token-broker/oauth2"
	"github.com/jrsteele09/go-token-broker/oauthmodel"
	"github.com/jrsteele09/go-token-broker/tenants"
	"github.com/rs/zerolog/log"
)

const defaultExchangeTimeout = 10 * time.Second

// OAuth2TokenService retrieves access tokens from a tenant's authorization server.
type OAuth2TokenService interface {
	Exchange(ctx context.Context, grant *oauthmodel.GrantRequest) (*oauth2.TokenResponse, error)
	RetrieveAccessTokenViaClientCredentialsGrant(ctx context.Context, tokenEndpoint *url.URL, creds oauth2.ClientCredentials, subdomain string, optional map[string]string) (*oauth2.TokenResponse, error)
	RetrieveAccessTokenViaUserTokenGrant(ctx context.Context, tokenEndpoint *url.URL, creds oauth2.ClientCredentials, token, subdomain string, optional map[string]string) (*oauth2.TokenResponse, error)
	RetrieveAccessTokenViaRefreshToken(ctx context.Context, tokenEndpoint *url.URL, creds oauth2.ClientCredentials, refreshToken, subdomain string) (*oauth2.TokenResponse, error)
	RetrieveAccessTokenViaPasswordGrant(ctx context.Context, tokenEndpoint *url.URL, creds oauth2.ClientCredentials, username, password, subdomain string, optional map[string]string) (*oauth2.TokenResponse, error)
	RetrieveDelegationAccessTokenViaJwtBearerTokenGrant(ctx context.Context, tokenEndpoint *url.URL, creds oauth2.ClientCredentials, oidcToken, pemCloneCertificate, subdomain string, optional map[string]string) (*oauth2.TokenResponse, error)
}

// TokenService executes grant requests against the token endpoint.
type TokenService struct {
	requester Requester
	probe     *CertificateProbe
	timeout   time.Duration
	nowFunc   func() time.Time
	metrics   *metrics.Metrics
}

var _ OAuth2TokenService = (*TokenService)(nil)

type ServiceOption func(*TokenService)

// WithExchangeTimeout bounds every exchange. Zero or negative disables the bound.
func WithExchangeTimeout(timeout time.Duration) ServiceOption {
	return func(s *TokenService) {
		s.timeout = timeout
	}
}

// WithCertificateProbe sets the probe consulted before certificate delegation.
// Without a probe the delegation grant always yields no result.
func WithCertificateProbe(probe *CertificateProbe) ServiceOption {
	return func(s *TokenService) {
		s.probe = probe
	}
}

func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *TokenService) {
		s.nowFunc = now
	}
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *TokenService) {
		s.metrics = m
	}
}

func NewTokenService(requester Requester, options ...ServiceOption) (*TokenService, error) {
	if requester == nil {
		return nil, fmt.Errorf("%w: requester is required", oauth2.ErrInvalidArgument)
	}
	s := &TokenService{
		requester: requester,
		timeout:   defaultExchangeTimeout,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.nowFunc == nil {
		s.nowFunc = time.Now
	}
	return s, nil
}

// Exchange posts the grant to its (tenant rewritten) token endpoint and parses the token response.
// For the certificate delegation grant it returns (nil, nil) when the environment does not forward
// client certificates. Exchanges are attempted exactly once.
func (s *TokenService) Exchange(ctx context.Context, grant *oauthmodel.GrantRequest) (*oauth2.TokenResponse, error) {
	if grant == nil {
		return nil, fmt.Errorf("%w: grant request is required", oauth2.ErrInvalidArgument)
	}

	endpoint := grant.TokenEndpoint()
	uri, err := tenants.RewriteHost(endpoint, grant.Subdomain())
	if err != nil {
		return nil, err
	}
	if grant.Subdomain() != "" && !tenants.CanRewrite(endpoint, grant.Subdomain()) {
		log.Warn().Str("uri", endpoint.String()).Str("subdomain", grant.Subdomain()).Msg("The subdomain of the token endpoint is not replaced")
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if grant.RequiresCertificateProbe() && !s.probe.Supported(ctx) {
		return nil, nil
	}

	started := s.nowFunc()
	resp, err := s.requestAccessToken(ctx, uri.String(), grant)
	s.metrics.ObserveExchange(string(grant.GrantType()), exchangeResult(err), s.nowFunc().Sub(started))
	return resp, err
}

func (s *TokenService) requestAccessToken(ctx context.Context, uri string, grant *oauthmodel.GrantRequest) (*oauth2.TokenResponse, error) {
	resp, err := s.requester.PostForm(ctx, uri, grant.Headers(), grant.EncodeForm())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &oauth2.ServiceError{Kind: oauth2.Timeout, URI: uri, Err: err}
		}
		return nil, &oauth2.ServiceError{Kind: oauth2.TransportError, URI: uri, Err: err}
	}

	body := strings.TrimSpace(string(resp.Body))
	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		serviceErr := &oauth2.ServiceError{Kind: oauth2.ServerError, StatusCode: resp.StatusCode, Body: body, URI: uri}
		log.Err(serviceErr).Str("grant_type", string(grant.GrantType())).Msg("Server error while obtaining access token")
		return nil, serviceErr
	case resp.StatusCode >= http.StatusBadRequest:
		log.Debug().Int("status", resp.StatusCode).Str("grant_type", string(grant.GrantType())).Msg("Token request rejected")
		return nil, &oauth2.ServiceError{Kind: oauth2.ClientError, StatusCode: resp.StatusCode, Body: body, URI: uri}
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, &oauth2.ServiceError{Kind: oauth2.ResponseError, StatusCode: resp.StatusCode, Body: body, URI: uri,
			Err: fmt.Errorf("unexpected status code %d", resp.StatusCode)}
	}

	var tokenResponse oauth2.TokenResponse
	if err := json.Unmarshal(resp.Body, &tokenResponse); err != nil {
		return nil, &oauth2.ServiceError{Kind: oauth2.ResponseError, StatusCode: resp.StatusCode, URI: uri,
			Err: fmt.Errorf("failed to parse token response: %w", err)}
	}
	if tokenResponse.AccessToken == "" {
		return nil, &oauth2.ServiceError{Kind: oauth2.ResponseError, StatusCode: resp.StatusCode, URI: uri,
			Err: errors.New("token response has no access_token")}
	}

	log.Debug().
		Str("grant_type", string(grant.GrantType())).
		Int64("expires_in", tokenResponse.ExpiresIn).
		Bool("refresh_token", tokenResponse.HasRefreshToken()).
		Msg("Access token retrieved")
	return &tokenResponse, nil
}

func exchangeResult(err error) string {
	var serviceErr *oauth2.ServiceError
	if errors.As(err, &serviceErr) {
		return strings.ReplaceAll(serviceErr.Kind.String(), " ", "_")
	}
	if err != nil {
		return "error"
	}
	return "success"
}

func (s *TokenService) RetrieveAccessTokenViaClientCredentialsGrant(ctx context.Context, tokenEndpoint *url.URL, creds oauth2.ClientCredentials, subdomain string, optional map[string]string) (*oauth2.TokenResponse, error) {
	grant, err := oauthmodel.NewClientCredentialsGrant(tokenEndpoint, creds, subdomain, optional)
	if err != nil {
		return nil, err
	}
	return s.Exchange(ctx, grant)
}

func (s *TokenService) RetrieveAccessTokenViaUserTokenGrant(ctx context.Context, tokenEndpoint *url.URL, creds oauth2.ClientCredentials, token, subdomain string, optional map[string]string) (*oauth2.TokenResponse, error) {
	grant, err := oauthmodel.NewUserTokenGrant(tokenEndpoint, creds, token, subdomain, optional)
	if err != nil {
		return nil, err
	}
	return s.Exchange(ctx, grant)
}

func (s *TokenService) RetrieveAccessTokenViaRefreshToken(ctx context.Context, tokenEndpoint *url.URL, creds oauth2.ClientCredentials, refreshToken, subdomain string) (*oauth2.TokenResponse, error) {
	grant, err := oauthmodel.NewRefreshTokenGrant(tokenEndpoint, creds, refreshToken, subdomain, nil)
	if err != nil {
		return nil, err
	}
	return s.Exchange(ctx, grant)
}

func (s *TokenService) RetrieveAccessTokenViaPasswordGrant(ctx context.Context, tokenEndpoint *url.URL, creds oauth2.ClientCredentials, username, password, subdomain string, optional map[string]string) (*oauth2.TokenResponse, error) {
	grant, err := oauthmodel.NewPasswordGrant(tokenEndpoint, creds, username, password, subdomain, optional)
	if err != nil {
		return nil, err
	}
	return s.Exchange(ctx, grant)
}

// RetrieveDelegationAccessTokenViaJwtBearerTokenGrant returns (nil, nil) when the
// certificate probe finds no forwarded client certificate.
func (s *TokenService) RetrieveDelegationAccessTokenViaJwtBearerTokenGrant(ctx context.Context, tokenEndpoint *url.URL, creds oauth2.ClientCredentials, oidcToken, pemCloneCertificate, subdomain string, optional map[string]string) (*oauth2.TokenResponse, error) {
	grant, err := oauthmodel.NewJwtBearerGrant(tokenEndpoint, creds, oidcToken, pemCloneCertificate, subdomain, optional)
	if err != nil {
		return nil, err
	}
	return s.Exchange(ctx, grant)
}
