package tenants

import (
	"net"
	"strings"
)

// SubdomainFromHost extracts the tenant subdomain from an inbound request host.
// baseHost is the host name shared by all tenants (e.g. "api.example.com").
// For "tenantA.api.example.com:8443" it returns "tenanta"; a host equal to or
// unrelated to baseHost yields "".
func SubdomainFromHost(host, baseHost string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if h, _, err := net.SplitHostPort(baseHost); err == nil {
		baseHost = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	baseHost = strings.ToLower(strings.Trim(baseHost, "."))
	if baseHost == "" || host == baseHost {
		return ""
	}

	suffix := domainSeparator + baseHost
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	sub := strings.TrimSuffix(host, suffix)
	// Only the label directly in front of the base host identifies the tenant.
	if i := strings.LastIndex(sub, domainSeparator); i >= 0 {
		sub = sub[i+1:]
	}
	return sub
}
