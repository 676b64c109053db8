package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-token-broker/oauth2"
	"github.com/jrsteele09/go-token-broker/security"
)

// OIDCDecoder verifies tokens issued by an OpenID Connect provider, using the keys the
// provider publishes.
type OIDCDecoder struct {
	verifier *oidc.IDTokenVerifier
}

var _ security.Decoder = (*OIDCDecoder)(nil)

// NewOIDCDecoder discovers issuer's configuration. Tokens must be addressed to clientID
// unless clientID is empty.
func NewOIDCDecoder(ctx context.Context, issuer, clientID string) (*OIDCDecoder, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider %s: %w", issuer, err)
	}
	return NewOIDCDecoderFromVerifier(provider.Verifier(&oidc.Config{
		ClientID:          clientID,
		SkipClientIDCheck: clientID == "",
	})), nil
}

func NewOIDCDecoderFromVerifier(verifier *oidc.IDTokenVerifier) *OIDCDecoder {
	return &OIDCDecoder{verifier: verifier}
}

func (d *OIDCDecoder) Decode(ctx context.Context, encodedToken string) (security.Claims, error) {
	if strings.TrimSpace(encodedToken) == "" {
		return nil, oauth2.NewDecodeError(errors.New("empty token"))
	}
	idToken, err := d.verifier.Verify(ctx, encodedToken)
	if err != nil {
		return nil, oauth2.NewDecodeError(err)
	}

	var claims security.Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, oauth2.NewDecodeError(err)
	}
	return claims, nil
}
