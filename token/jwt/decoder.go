// Package jwt verifies access tokens and exposes their claims to the security package.
package jwt

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-token-broker/oauth2"
	"github.com/jrsteele09/go-token-broker/security"
)

// Decoder verifies signed JWTs with a single key.
type Decoder struct {
	key     any
	methods []string
	options []jwtlib.ParserOption
	nowFunc func() time.Time
}

var _ security.Decoder = (*Decoder)(nil)

type DecoderOption func(*Decoder)

// WithIssuer requires the iss claim to equal issuer.
func WithIssuer(issuer string) DecoderOption {
	return func(d *Decoder) {
		d.options = append(d.options, jwtlib.WithIssuer(issuer))
	}
}

// WithAudience requires aud to contain audience.
func WithAudience(audience string) DecoderOption {
	return func(d *Decoder) {
		d.options = append(d.options, jwtlib.WithAudience(audience))
	}
}

func WithNowFunc(now func() time.Time) DecoderOption {
	return func(d *Decoder) {
		d.nowFunc = now
	}
}

// NewHMACDecoder verifies HS256/384/512 tokens with a shared secret.
func NewHMACDecoder(secret []byte, options ...DecoderOption) (*Decoder, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: verification secret is empty", oauth2.ErrInvalidArgument)
	}
	return newDecoder(secret, []string{"HS256", "HS384", "HS512"}, options), nil
}

// NewRSADecoder verifies RS256/384/512 tokens with a PEM encoded public key.
func NewRSADecoder(pemPublicKey []byte, options ...DecoderOption) (*Decoder, error) {
	key, err := jwtlib.ParseRSAPublicKeyFromPEM(pemPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid RSA public key: %v", oauth2.ErrInvalidArgument, err)
	}
	return NewRSADecoderFromKey(key, options...), nil
}

func NewRSADecoderFromKey(key *rsa.PublicKey, options ...DecoderOption) *Decoder {
	return newDecoder(key, []string{"RS256", "RS384", "RS512"}, options)
}

// NewDecoderFromKeyMaterial picks HMAC or RSA from the shape of material: a PEM block is an
// RSA public key, anything else is a shared secret.
func NewDecoderFromKeyMaterial(material string, options ...DecoderOption) (*Decoder, error) {
	if strings.Contains(material, "-----BEGIN") {
		return NewRSADecoder([]byte(material), options...)
	}
	return NewHMACDecoder([]byte(material), options...)
}

func newDecoder(key any, methods []string, options []DecoderOption) *Decoder {
	d := &Decoder{key: key, methods: methods, nowFunc: time.Now}
	for _, opt := range options {
		opt(d)
	}
	return d
}

func (d *Decoder) Decode(_ context.Context, encodedToken string) (security.Claims, error) {
	if strings.TrimSpace(encodedToken) == "" {
		return nil, oauth2.NewDecodeError(errors.New("empty token"))
	}

	options := append([]jwtlib.ParserOption{
		jwtlib.WithValidMethods(d.methods),
		jwtlib.WithTimeFunc(d.nowFunc),
		jwtlib.WithExpirationRequired(),
	}, d.options...)

	token, err := jwtlib.NewParser(options...).ParseWithClaims(encodedToken, jwtlib.MapClaims{}, func(*jwtlib.Token) (any, error) {
		return d.key, nil
	})
	if err != nil || !token.Valid {
		return nil, oauth2.NewDecodeError(err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, oauth2.NewDecodeError(errors.New("error extracting claims from token"))
	}
	return security.Claims(claims), nil
}
