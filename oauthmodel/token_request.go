package oauthmodel

import (
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/jrsteele09/go-token-broker/oauth2"
)

const (
	contentTypeForm = "application/x-www-form-urlencoded"
	contentTypeJSON = "application/json"
)

// GrantRequest holds everything needed to call the token endpoint for one grant.
// It is built by one of the grant constructors and is read-only afterwards.
type GrantRequest struct {
	grantType     oauth2.GrantType
	params        parameters
	headers       http.Header
	tokenEndpoint *url.URL
	subdomain     string
}

// GrantType returns the OAuth2 grant this request represents.
func (g *GrantRequest) GrantType() oauth2.GrantType {
	return g.grantType
}

// TokenEndpoint returns a copy of the configured token endpoint, before subdomain rewriting.
func (g *GrantRequest) TokenEndpoint() *url.URL {
	u := *g.tokenEndpoint
	return &u
}

// Subdomain is the tenant subdomain, empty when the endpoint host is used as is.
func (g *GrantRequest) Subdomain() string {
	return g.subdomain
}

// Parameters returns a copy of the form parameters.
func (g *GrantRequest) Parameters() map[string]string {
	out := make(map[string]string, len(g.params.keys))
	for _, k := range g.params.keys {
		out[k] = g.params.values[k]
	}
	return out
}

// Headers returns a copy of the request headers.
func (g *GrantRequest) Headers() http.Header {
	return g.headers.Clone()
}

// EncodeForm returns the x-www-form-urlencoded body. Required parameters come first,
// in the order the grant defines them, followed by optional parameters sorted by name.
func (g *GrantRequest) EncodeForm() string {
	var b strings.Builder
	for i, k := range g.params.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(g.params.values[k]))
	}
	return b.String()
}

// RequiresCertificateProbe is true for grants that depend on forwarded client certificates.
func (g *GrantRequest) RequiresCertificateProbe() bool {
	return g.grantType == oauth2.JwtBearerGrant
}

// parameters keeps insertion order so the encoded body is deterministic.
type parameters struct {
	keys   []string
	values map[string]string
}

func newParameters() parameters {
	return parameters{values: make(map[string]string)}
}

func (p *parameters) put(key, value string) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// putAllIfAbsent merges optional parameters without overriding the grant's own.
func (p *parameters) putAllIfAbsent(optional map[string]string) {
	keys := make([]string, 0, len(optional))
	for k := range optional {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := p.values[k]; ok {
			continue
		}
		p.put(k, optional[k])
	}
}

func headersWithoutAuthorization() http.Header {
	h := make(http.Header)
	h.Set("Accept", contentTypeJSON)
	h.Set("Content-Type", contentTypeForm)
	return h
}

func headersWithAuthorization(token string) http.Header {
	h := headersWithoutAuthorization()
	h.Set("Authorization", "Bearer "+token)
	return h
}
