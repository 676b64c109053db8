package security_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-token-broker/security"
	"github.com/stretchr/testify/require"
)

func TestScopeAuthoritiesExtractor(t *testing.T) {
	tests := []struct {
		name   string
		appID  string
		claims security.Claims
		want   []security.Authority
	}{
		{
			name:   "space separated",
			claims: security.Claims{"scope": "write openid read openid"},
			want:   []security.Authority{"openid", "read", "write"},
		},
		{
			name:   "json array",
			claims: security.Claims{"scope": []any{"openid", 42, "uaa.user"}},
			want:   []security.Authority{"openid", "uaa.user"},
		},
		{
			name:   "local scopes",
			appID:  "my-app!t1",
			claims: security.Claims{"scope": []any{"openid", "my-app!t1.Read", "my-app!t1.Write", "other!t2.Read"}},
			want:   []security.Authority{"Read", "Write"},
		},
		{
			name:   "no scope",
			claims: security.Claims{"sub": "john"},
			want:   []security.Authority{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := security.ScopeAuthoritiesExtractor{AppID: tt.appID}.Extract(tt.claims)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestConverter(t *testing.T) {
	claims := security.Claims{"sub": "john", "azp": "c9", "scope": "openid", "exp": float64(1700000000)}

	token := security.NewConverter(security.AuthoritiesExtractorFunc(func(c security.Claims) []security.Authority {
		return []security.Authority{security.Authority("user:" + c.String("sub"))}
	})).Convert("raw", claims)
	require.Equal(t, "raw", token.Value)
	require.Equal(t, "c9", token.ClientID())
	require.True(t, token.HasAuthority("user:john"))
	require.False(t, token.HasAuthority("openid"))

	exp, ok := token.Claims.Time("exp")
	require.True(t, ok)
	require.Equal(t, time.Unix(1700000000, 0), exp)

	require.Empty(t, security.NewConverter(nil).Convert("raw", claims).Authorities)
}
