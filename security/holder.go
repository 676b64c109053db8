package security

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jrsteele09/go-token-broker/oauth2"
	"github.com/rs/zerolog/log"
)

// LegacyBridge mirrors the request identity into an older identity store.
type LegacyBridge interface {
	Init(tokenValue string) error
	Clear() error
}

// NoopBridge is used when there is no legacy identity store.
type NoopBridge struct{}

func (NoopBridge) Init(string) error { return nil }
func (NoopBridge) Clear() error      { return nil }

type scopeKey struct{}

// scope is the identity slot of one request. It is EMPTY until Init and again after Clear.
type scope struct {
	mu    sync.RWMutex
	token *Token
}

// Holder manages the identity of the request in flight. The identity lives in a scope
// attached to the request context, so concurrent requests never see each other's identity.
type Holder struct {
	bridge LegacyBridge
}

type HolderOption func(*Holder)

func WithLegacyBridge(bridge LegacyBridge) HolderOption {
	return func(h *Holder) {
		h.bridge = bridge
	}
}

func NewHolder(options ...HolderOption) *Holder {
	h := &Holder{}
	for _, opt := range options {
		opt(h)
	}
	if h.bridge == nil {
		h.bridge = NoopBridge{}
	}
	return h
}

// NewScope returns a context carrying a new, empty identity scope.
// Every request gets its own scope before Init is called.
func (h *Holder) NewScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey{}, &scope{})
}

func scopeFrom(ctx context.Context) *scope {
	s, _ := ctx.Value(scopeKey{}).(*scope)
	return s
}

// Init decodes encodedToken, converts its claims with extractor and makes the result the
// identity of the scope in ctx. It replaces any identity already present.
// Decoding failures are reported as access denied.
func (h *Holder) Init(ctx context.Context, encodedToken string, decoder Decoder, extractor AuthoritiesExtractor) error {
	s := scopeFrom(ctx)
	if s == nil {
		return fmt.Errorf("%w: no identity scope in context", oauth2.ErrAccessDenied)
	}
	if decoder == nil {
		return fmt.Errorf("%w: no token decoder configured", oauth2.ErrAccessDenied)
	}
	if strings.TrimSpace(encodedToken) == "" {
		return fmt.Errorf("%w: empty token", oauth2.ErrAccessDenied)
	}

	claims, err := decoder.Decode(ctx, encodedToken)
	if err != nil {
		log.Debug().Err(err).Msg("Token could not be decoded")
		if errors.Is(err, oauth2.ErrDecode) {
			return err
		}
		return oauth2.NewDecodeError(err)
	}

	token := NewConverter(extractor).Convert(encodedToken, claims)
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if err := h.bridge.Init(encodedToken); err != nil {
		log.Err(err).Msg("Could not initialise legacy identity store")
	}
	return nil
}

// Get returns the identity of the scope in ctx, or ErrAccessDenied when there is none.
func (h *Holder) Get(ctx context.Context) (*Token, error) {
	s := scopeFrom(ctx)
	if s == nil {
		return nil, fmt.Errorf("%w: not authenticated", oauth2.ErrAccessDenied)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil, fmt.Errorf("%w: not authenticated", oauth2.ErrAccessDenied)
	}
	return s.token, nil
}

// Clear empties the scope in ctx and the legacy store. It is safe to call more than once
// and on a context without a scope.
func (h *Holder) Clear(ctx context.Context) {
	if s := scopeFrom(ctx); s != nil {
		s.mu.Lock()
		s.token = nil
		s.mu.Unlock()
	}
	if err := h.bridge.Clear(); err != nil {
		log.Err(err).Msg("Could not clear legacy identity store")
	}
}
