package oauthmodel

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-token-broker/oauth2"
)

// NewClientCredentialsGrant builds a client_credentials request.
// Client id and secret travel in the form body, no Authorization header is sent.
func NewClientCredentialsGrant(tokenEndpoint *url.URL, creds oauth2.ClientCredentials, subdomain string, optional map[string]string) (*GrantRequest, error) {
	if err := validateEndpoint(tokenEndpoint); err != nil {
		return nil, err
	}
	if err := creds.Validate(true); err != nil {
		return nil, err
	}

	p := newParameters()
	p.put(oauth2.ParamGrantType, string(oauth2.ClientCredentialsGrant))
	addClientCredentials(&p, creds)
	p.putAllIfAbsent(optional)

	return newGrantRequest(oauth2.ClientCredentialsGrant, p, headersWithoutAuthorization(), tokenEndpoint, subdomain), nil
}

// NewUserTokenGrant builds a user_token request that exchanges an existing bearer token.
func NewUserTokenGrant(tokenEndpoint *url.URL, creds oauth2.ClientCredentials, token, subdomain string, optional map[string]string) (*GrantRequest, error) {
	if err := validateEndpoint(tokenEndpoint); err != nil {
		return nil, err
	}
	if err := creds.Validate(false); err != nil {
		return nil, err
	}
	if err := requireText(token, "token"); err != nil {
		return nil, err
	}

	p := newParameters()
	p.put(oauth2.ParamGrantType, string(oauth2.UserTokenGrant))
	p.put(oauth2.ParamClientID, creds.ID)
	p.putAllIfAbsent(optional)

	return newGrantRequest(oauth2.UserTokenGrant, p, headersWithAuthorization(token), tokenEndpoint, subdomain), nil
}

// NewRefreshTokenGrant builds a refresh_token request.
func NewRefreshTokenGrant(tokenEndpoint *url.URL, creds oauth2.ClientCredentials, refreshToken, subdomain string, optional map[string]string) (*GrantRequest, error) {
	if err := validateEndpoint(tokenEndpoint); err != nil {
		return nil, err
	}
	if err := creds.Validate(true); err != nil {
		return nil, err
	}
	if err := requireText(refreshToken, "refresh token"); err != nil {
		return nil, err
	}

	p := newParameters()
	p.put(oauth2.ParamGrantType, string(oauth2.RefreshTokenGrant))
	p.put(oauth2.ParamRefreshToken, refreshToken)
	addClientCredentials(&p, creds)
	p.putAllIfAbsent(optional)

	return newGrantRequest(oauth2.RefreshTokenGrant, p, headersWithoutAuthorization(), tokenEndpoint, subdomain), nil
}

// NewPasswordGrant builds a resource owner password credentials request.
func NewPasswordGrant(tokenEndpoint *url.URL, creds oauth2.ClientCredentials, username, password, subdomain string, optional map[string]string) (*GrantRequest, error) {
	if err := validateEndpoint(tokenEndpoint); err != nil {
		return nil, err
	}
	if err := creds.Validate(true); err != nil {
		return nil, err
	}
	if err := requireText(username, "username"); err != nil {
		return nil, err
	}
	if err := requireText(password, "password"); err != nil {
		return nil, err
	}

	p := newParameters()
	p.put(oauth2.ParamGrantType, string(oauth2.PasswordGrant))
	p.put(oauth2.ParamUsername, username)
	p.put(oauth2.ParamPassword, password)
	addClientCredentials(&p, creds)
	p.putAllIfAbsent(optional)

	return newGrantRequest(oauth2.PasswordGrant, p, headersWithoutAuthorization(), tokenEndpoint, subdomain), nil
}

// NewJwtBearerGrant builds the certificate delegation request. The creds identify the master client;
// pemCloneCertificate is the PEM body of the clone's certificate without the BEGIN/END lines.
// The oidc token must be present but is not sent; the server authenticates via the forwarded certificate.
func NewJwtBearerGrant(tokenEndpoint *url.URL, creds oauth2.ClientCredentials, oidcToken, pemCloneCertificate, subdomain string, optional map[string]string) (*GrantRequest, error) {
	if err := validateEndpoint(tokenEndpoint); err != nil {
		return nil, err
	}
	if err := creds.Validate(false); err != nil {
		return nil, err
	}
	if err := requireText(oidcToken, "oidc token"); err != nil {
		return nil, err
	}
	if err := requireText(pemCloneCertificate, "pem encoded certificate"); err != nil {
		return nil, err
	}

	p := newParameters()
	p.put(oauth2.ParamMasterClientID, creds.ID)
	p.put(oauth2.ParamCloneCertificate, pemCloneCertificate)
	p.putAllIfAbsent(optional)

	return newGrantRequest(oauth2.JwtBearerGrant, p, headersWithoutAuthorization(), tokenEndpoint, subdomain), nil
}

func newGrantRequest(grantType oauth2.GrantType, p parameters, headers http.Header, tokenEndpoint *url.URL, subdomain string) *GrantRequest {
	endpoint := *tokenEndpoint
	return &GrantRequest{
		grantType:     grantType,
		params:        p,
		headers:       headers,
		tokenEndpoint: &endpoint,
		subdomain:     strings.TrimSpace(subdomain),
	}
}

func addClientCredentials(p *parameters, creds oauth2.ClientCredentials) {
	p.put(oauth2.ParamClientID, creds.ID)
	p.put(oauth2.ParamClientSecret, creds.Secret)
}

func validateEndpoint(tokenEndpoint *url.URL) error {
	if tokenEndpoint == nil {
		return fmt.Errorf("%w: token endpoint is required", oauth2.ErrInvalidArgument)
	}
	if tokenEndpoint.Host == "" {
		return fmt.Errorf("%w: token endpoint %q has no host", oauth2.ErrInvalidArgument, tokenEndpoint.String())
	}
	return nil
}

func requireText(value, name string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", oauth2.ErrInvalidArgument, name)
	}
	return nil
}
