package config

import "os"

const (
	requiredAuthorityEnvVar  = "REQUIRED_AUTHORITY"
	defaultRequiredAuthority = "openid"
)

type SecurityConfig interface {
	GetJWTVerificationKey() string
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetAppID() string
	GetRequiredAuthority() string
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetJWTVerificationKey is either an HMAC secret or a PEM encoded RSA public key.
func (Security) GetJWTVerificationKey() string {
	return GetEnv("JWT_VERIFICATION_KEY", "")
}

// GetOIDCIssuer enables OIDC discovery based token verification when set.
func (Security) GetOIDCIssuer() string {
	return GetEnv("OIDC_ISSUER", "")
}

func (Security) GetOIDCClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "")
}

// GetAppID is the prefix stripped from scopes when mapping them to local authorities.
func (Security) GetAppID() string {
	return GetEnv("APP_ID", "")
}

// GetRequiredAuthority is the authority /hello-token demands. Setting REQUIRED_AUTHORITY to an
// empty value disables the check.
func (Security) GetRequiredAuthority() string {
	value, ok := os.LookupEnv(requiredAuthorityEnvVar)
	if !ok {
		return defaultRequiredAuthority
	}
	return value
}
