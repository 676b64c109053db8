package token

import (
	"context"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

const (
	// forwardedClientCertMarker is echoed by the probe endpoint when the platform
	// forwards the caller's client certificate.
	forwardedClientCertMarker = "x-forwarded-client-cert"

	defaultProbeResultTTL = 5 * time.Minute
)

// CertificateProbe checks whether this environment forwards client certificates,
// which the certificate delegation grant depends on.
type CertificateProbe struct {
	requester Requester
	uri       string
	results   *gocache.Cache
}

// NewCertificateProbe probes uri through requester. Outcomes are remembered for ttl
// (5 minutes when ttl is zero); transport failures are not remembered.
func NewCertificateProbe(requester Requester, uri string, ttl time.Duration) *CertificateProbe {
	if ttl <= 0 {
		ttl = defaultProbeResultTTL
	}
	return &CertificateProbe{
		requester: requester,
		uri:       uri,
		results:   gocache.New(ttl, 2*ttl),
	}
}

// Supported reports whether the probe endpoint saw a forwarded client certificate.
// Any failure means "not supported"; it is never an error.
func (p *CertificateProbe) Supported(ctx context.Context) bool {
	if p == nil || p.requester == nil || p.uri == "" {
		return false
	}
	if v, ok := p.results.Get(p.uri); ok {
		return v.(bool)
	}

	resp, err := p.requester.Get(ctx, p.uri, http.Header{"Accept": []string{"text/plain, application/json"}})
	if err != nil {
		log.Debug().Err(err).Str("uri", p.uri).Msg("Certificate probe failed")
		return false
	}

	supported := resp.StatusCode < http.StatusBadRequest &&
		strings.Contains(strings.ToLower(string(resp.Body)), forwardedClientCertMarker)
	p.results.SetDefault(p.uri, supported)
	if !supported {
		log.Debug().Int("status", resp.StatusCode).Str("uri", p.uri).Msg("Client certificate is not forwarded, delegation unavailable")
	}
	return supported
}
