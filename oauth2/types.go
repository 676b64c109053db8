package oauth2

import (
	"fmt"
	"strings"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
// Determines what credentials are required to obtain tokens.
type GrantType string

const (
	// ClientCredentialsGrant allows machine-to-machine authentication.
	// Token request includes: client_id, client_secret
	// Returns: access_token (no refresh_token)
	ClientCredentialsGrant GrantType = "client_credentials"

	// UserTokenGrant exchanges an existing user bearer token for a token issued to this client.
	// Token request includes: client_id, Authorization: Bearer <token>
	UserTokenGrant GrantType = "user_token"

	// RefreshTokenGrant exchanges a refresh token for new tokens.
	// Token request includes: refresh_token, client_id, client_secret
	RefreshTokenGrant GrantType = "refresh_token"

	// PasswordGrant exchanges a username/password pair for tokens (resource owner password credentials).
	// Token request includes: username, password, client_id, client_secret
	PasswordGrant GrantType = "password"

	// JwtBearerGrant is the certificate delegation grant.
	// Token request includes: master_client_id, clone_certificate
	// Only attempted when the environment forwards client certificates.
	JwtBearerGrant GrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// Form parameter and response field names.
const (
	ParamGrantType        = "grant_type"
	ParamClientID         = "client_id"
	ParamClientSecret     = "client_secret"
	ParamUsername         = "username"
	ParamPassword         = "password"
	ParamRefreshToken     = "refresh_token"
	ParamMasterClientID   = "master_client_id"
	ParamCloneCertificate = "clone_certificate"
)

// ClientCredentials identifies the confidential client registered with the authorization server.
type ClientCredentials struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

// NewClientCredentials returns client credentials for the given id and secret.
func NewClientCredentials(id, secret string) ClientCredentials {
	return ClientCredentials{ID: id, Secret: secret}
}

// Validate checks that the client id is present and, when requireSecret is set, the secret too.
func (c ClientCredentials) Validate(requireSecret bool) error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: client id is required", ErrInvalidArgument)
	}
	if requireSecret && strings.TrimSpace(c.Secret) == "" {
		return fmt.Errorf("%w: client secret is required", ErrInvalidArgument)
	}
	return nil
}

// String never prints the secret.
func (c ClientCredentials) String() string {
	return fmt.Sprintf("ClientCredentials{id=%s}", c.ID)
}
