package oauth2

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-token-broker/internal/utils"
	xoauth2 "golang.org/x/oauth2"
)

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard OAuth2 token endpoint response format as defined in RFC 6749.
// It is never mutated after construction.
type TokenResponse struct {
	// AccessToken is the token used to access protected resources.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// The authorization server may send it as a number or as a numeric string.
	ExpiresIn int64 `json:"expires_in"`

	// RefreshToken is only present for grants that issue one.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// TokenType is typically "bearer".
	TokenType string `json:"token_type,omitempty"`

	// Scope is the space-separated list of granted scopes.
	Scope string `json:"scope,omitempty"`
}

type tokenResponseJSON struct {
	AccessToken  string          `json:"access_token"`
	ExpiresIn    json.RawMessage `json:"expires_in"`
	RefreshToken *string         `json:"refresh_token"`
	TokenType    string          `json:"token_type"`
	Scope        string          `json:"scope"`
}

// UnmarshalJSON accepts expires_in as a JSON number or a numeric string.
func (t *TokenResponse) UnmarshalJSON(data []byte) error {
	var raw tokenResponseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	expiresIn, err := parseExpiresIn(raw.ExpiresIn)
	if err != nil {
		return err
	}
	*t = TokenResponse{
		AccessToken:  raw.AccessToken,
		ExpiresIn:    expiresIn,
		RefreshToken: raw.RefreshToken,
		TokenType:    raw.TokenType,
		Scope:        raw.Scope,
	}
	return nil
}

func parseExpiresIn(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, nil
	}
	s = strings.Trim(s, `"`)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("expires_in %q is not numeric: %w", s, err)
	}
	return int64(f), nil
}

// HasRefreshToken reports whether the server issued a refresh token.
func (t TokenResponse) HasRefreshToken() bool {
	return utils.Value(t.RefreshToken) != ""
}

// Token converts the response to a golang.org/x/oauth2 token, computing the expiry from now.
func (t TokenResponse) Token(now time.Time) *xoauth2.Token {
	tok := &xoauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: utils.Value(t.RefreshToken),
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	if t.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return tok
}
