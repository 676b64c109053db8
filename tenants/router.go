// Package tenants resolves which virtual host serves a tenant.
//
// Every tenant's authorization server lives on its own subdomain of a shared
// base domain, e.g. https://tenantA.auth.example.com for the base
// https://auth.example.com, so routing a request to a tenant is a host rewrite.
package tenants

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/jrsteele09/go-token-broker/oauth2"
)

const domainSeparator = "."

// dnsLabel is a single RFC 1123 host label.
var dnsLabel = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)

// RewriteHost replaces the first label of the URI host with subdomain.
// Scheme, user info, port, path, query and fragment are preserved.
// When subdomain is blank, or the host has a single label (or is an IP literal),
// a copy of the original URI is returned unchanged. A subdomain that is not a single
// DNS label is rejected.
func RewriteHost(u *url.URL, subdomain string) (*url.URL, error) {
	if u == nil {
		return nil, fmt.Errorf("%w: the uri must not be nil", oauth2.ErrInvalidArgument)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: the uri %q has no host", oauth2.ErrInvalidArgument, u.String())
	}

	out := *u
	if u.User != nil {
		user := *u.User
		out.User = &user
	}

	subdomain = strings.TrimSpace(subdomain)
	if subdomain != "" && !dnsLabel.MatchString(subdomain) {
		return nil, fmt.Errorf("%w: subdomain %q is not a single dns label", oauth2.ErrInvalidArgument, subdomain)
	}
	if !CanRewrite(u, subdomain) {
		return &out, nil
	}

	hostname := u.Hostname()
	rewritten := subdomain + hostname[strings.Index(hostname, domainSeparator):]
	if port := u.Port(); port != "" {
		rewritten = net.JoinHostPort(rewritten, port)
	}
	out.Host = rewritten
	return &out, nil
}

// CanRewrite reports whether RewriteHost would change the host of u.
func CanRewrite(u *url.URL, subdomain string) bool {
	if u == nil || !dnsLabel.MatchString(strings.TrimSpace(subdomain)) {
		return false
	}
	hostname := u.Hostname()
	if net.ParseIP(hostname) != nil {
		return false
	}
	return strings.Contains(hostname, domainSeparator)
}
