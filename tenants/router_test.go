package tenants_test

import (
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/go-token-broker/oauth2"
	"github.com/jrsteele09/go-token-broker/tenants"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestRewriteHost(t *testing.T) {
	tests := []struct {
		name      string
		uri       string
		subdomain string
		expected  string
	}{
		{
			name:      "replaces first label",
			uri:       "https://auth.example.com/oauth/token",
			subdomain: "tenantA",
			expected:  "https://tenantA.example.com/oauth/token",
		},
		{
			name:      "preserves port query and fragment",
			uri:       "https://auth.eu10.example.com:8443/oauth/token?x=1&y=2#frag",
			subdomain: "tenantB",
			expected:  "https://tenantB.eu10.example.com:8443/oauth/token?x=1&y=2#frag",
		},
		{
			name:      "preserves user info",
			uri:       "http://user:pw@auth.example.com/token",
			subdomain: "t",
			expected:  "http://user:pw@t.example.com/token",
		},
		{
			name:      "empty subdomain is a no-op",
			uri:       "https://auth.example.com/oauth/token",
			subdomain: "",
			expected:  "https://auth.example.com/oauth/token",
		},
		{
			name:      "blank subdomain is a no-op",
			uri:       "https://auth.example.com/oauth/token",
			subdomain: "   ",
			expected:  "https://auth.example.com/oauth/token",
		},
		{
			name:      "single label host is a no-op",
			uri:       "http://localhost:8080/oauth/token",
			subdomain: "tenantA",
			expected:  "http://localhost:8080/oauth/token",
		},
		{
			name:      "ip literal is a no-op",
			uri:       "http://127.0.0.1:8080/oauth/token",
			subdomain: "tenantA",
			expected:  "http://127.0.0.1:8080/oauth/token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := mustParse(t, tt.uri)
			out, err := tenants.RewriteHost(in, tt.subdomain)
			require.NoError(t, err)
			require.Equal(t, tt.expected, out.String())
			// input untouched
			require.Equal(t, tt.uri, in.String())
		})
	}
}

func TestRewriteHostKeepsEverythingButFirstLabel(t *testing.T) {
	hosts := []string{"a.b", "auth.example.com", "x.y.z.example.org", "auth.example.com:443"}
	subdomains := []string{"t", "tenant-1", "zz"}

	for _, host := range hosts {
		for _, sub := range subdomains {
			in := mustParse(t, "https://"+host+"/p/q?k=v")
			out, err := tenants.RewriteHost(in, sub)
			require.NoError(t, err)

			require.Equal(t, sub, firstLabel(out.Hostname()))
			require.Equal(t, restLabels(in.Hostname()), restLabels(out.Hostname()))
			require.Equal(t, in.Scheme, out.Scheme)
			require.Equal(t, in.Port(), out.Port())
			require.Equal(t, in.Path, out.Path)
			require.Equal(t, in.RawQuery, out.RawQuery)
		}
	}
}

func TestRewriteHostInvalidURI(t *testing.T) {
	_, err := tenants.RewriteHost(nil, "t")
	require.ErrorIs(t, err, oauth2.ErrInvalidArgument)

	_, err = tenants.RewriteHost(&url.URL{Path: "/oauth/token"}, "t")
	require.ErrorIs(t, err, oauth2.ErrInvalidArgument)
}

func TestRewriteHostRejectsNonLabelSubdomain(t *testing.T) {
	endpoint := mustParse(t, "https://auth.example.com/oauth/token")
	for _, subdomain := range []string{"evil.com/#", "a.b", "tenant:8080", "ten ant", "-tenant", "tenant-", strings.Repeat("a", 64)} {
		t.Run(subdomain, func(t *testing.T) {
			_, err := tenants.RewriteHost(endpoint, subdomain)
			require.ErrorIs(t, err, oauth2.ErrInvalidArgument)
			require.False(t, tenants.CanRewrite(endpoint, subdomain))
		})
	}

	out, err := tenants.RewriteHost(endpoint, strings.Repeat("a", 63))
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("a", 63)+".example.com", out.Hostname())
}

func TestSubdomainFromHost(t *testing.T) {
	require.Equal(t, "tenanta", tenants.SubdomainFromHost("tenantA.api.example.com:8443", "api.example.com"))
	require.Equal(t, "b", tenants.SubdomainFromHost("a.b.api.example.com", "api.example.com:80"))
	require.Equal(t, "", tenants.SubdomainFromHost("api.example.com", "api.example.com"))
	require.Equal(t, "", tenants.SubdomainFromHost("other.org", "api.example.com"))
	require.Equal(t, "", tenants.SubdomainFromHost("tenant.api.example.com", ""))
}

func firstLabel(host string) string {
	for i := 0; i < len(host); i++ {
		if host[i] == '.' {
			return host[:i]
		}
	}
	return host
}

func restLabels(host string) string {
	return host[len(firstLabel(host)):]
}
