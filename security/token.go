// Package security holds the decoded identity of the request being served.
package security

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jrsteele09/go-token-broker/internal/utils"
)

// Claims are the decoded claims of an access token.
type Claims map[string]any

func (c Claims) String(name string) string {
	s, _ := c[name].(string)
	return s
}

// Strings reads a claim that may be a JSON array or a space separated string.
func (c Claims) Strings(name string) []string {
	switch v := c[name].(type) {
	case string:
		return strings.Fields(v)
	case []string:
		return append([]string(nil), v...)
	case []any:
		return utils.ToStringSlice(v)
	}
	return nil
}

// Time reads a NumericDate claim such as exp or iat.
func (c Claims) Time(name string) (time.Time, bool) {
	switch v := c[name].(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	case int:
		return time.Unix(int64(v), 0), true
	}
	return time.Time{}, false
}

// Authority is a permission granted to the identity, typically a scope.
type Authority string

// Token is the decoded identity of a request: the raw token, its claims and its authorities.
type Token struct {
	Value       string
	Claims      Claims
	Authorities []Authority
}

func (t *Token) Subject() string {
	return t.Claims.String("sub")
}

func (t *Token) ClientID() string {
	if id := t.Claims.String("client_id"); id != "" {
		return id
	}
	return t.Claims.String("azp")
}

func (t *Token) HasAuthority(a Authority) bool {
	for _, have := range t.Authorities {
		if have == a {
			return true
		}
	}
	return false
}

// Decoder verifies an encoded token and returns its claims.
type Decoder interface {
	Decode(ctx context.Context, encodedToken string) (Claims, error)
}

// AuthoritiesExtractor derives the authorities of an identity from its claims.
type AuthoritiesExtractor interface {
	Extract(claims Claims) []Authority
}

// AuthoritiesExtractorFunc adapts a function to AuthoritiesExtractor.
type AuthoritiesExtractorFunc func(Claims) []Authority

func (f AuthoritiesExtractorFunc) Extract(claims Claims) []Authority {
	return f(claims)
}

// ScopeAuthoritiesExtractor maps the scope claim to authorities.
//
// With an AppID set, only the application's local scopes are kept and the "<appid>." prefix
// is removed, so "my-app!t1.Read" becomes "Read".
type ScopeAuthoritiesExtractor struct {
	AppID string
}

var _ AuthoritiesExtractor = ScopeAuthoritiesExtractor{}

func (e ScopeAuthoritiesExtractor) Extract(claims Claims) []Authority {
	prefix := ""
	if e.AppID != "" {
		prefix = e.AppID + "."
	}

	seen := make(map[Authority]struct{})
	for _, scope := range claims.Strings("scope") {
		if prefix != "" {
			if !strings.HasPrefix(scope, prefix) {
				continue
			}
			scope = strings.TrimPrefix(scope, prefix)
		}
		if scope == "" {
			continue
		}
		seen[Authority(scope)] = struct{}{}
	}

	authorities := make([]Authority, 0, len(seen))
	for a := range seen {
		authorities = append(authorities, a)
	}
	sort.Slice(authorities, func(i, j int) bool { return authorities[i] < authorities[j] })
	return authorities
}

// Converter builds the request identity from decoded claims.
type Converter struct {
	extractor AuthoritiesExtractor
}

// NewConverter uses extractor for authorities; nil grants none.
func NewConverter(extractor AuthoritiesExtractor) *Converter {
	return &Converter{extractor: extractor}
}

func (c *Converter) Convert(encodedToken string, claims Claims) *Token {
	t := &Token{Value: encodedToken, Claims: claims}
	if c.extractor != nil {
		t.Authorities = c.extractor.Extract(claims)
	}
	if t.Authorities == nil {
		t.Authorities = []Authority{}
	}
	return t
}
