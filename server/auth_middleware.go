package server

import (
	"errors"
	"net/http"

	"github.com/jrsteele09/go-token-broker/oauth2"
	"github.com/jrsteele09/go-token-broker/security"
	"github.com/rs/zerolog/log"
)

// RequireAuth resolves the caller's bearer token, decodes it into the request identity and
// clears the identity when the handler returns, whether or not it succeeded.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token, ok, err := s.resolver.Resolve(r.Context(), r)
			if err != nil {
				writeResolveError(w, r, err)
				return
			}
			if !ok || token == "" {
				w.Header().Set("WWW-Authenticate", `Basic realm="token-broker", Bearer`)
				writeError(w, http.StatusUnauthorized, "unauthorized", "Missing or unsupported Authorization header")
				return
			}

			ctx := s.holder.NewScope(r.Context())
			defer s.holder.Clear(ctx)

			if err := s.holder.Init(ctx, token, s.decoder, s.extractor); err != nil {
				log.Ctx(ctx).Debug().Err(err).Msg("Access denied")
				writeError(w, http.StatusUnauthorized, "invalid_token", "Access denied")
				return
			}
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireAuthority rejects identities without authority. It must run inside RequireAuth.
func (s *Server) RequireAuthority(authority security.Authority) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token, err := s.holder.Get(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Access denied")
				return
			}
			if !token.HasAuthority(authority) {
				writeError(w, http.StatusForbidden, "insufficient_scope", "Missing authority "+string(authority))
				return
			}
			next(w, r)
		}
	}
}

// writeResolveError maps broker failures to responses. Rejected credentials are the caller's
// problem; anything else is the authorization server's.
func writeResolveError(w http.ResponseWriter, r *http.Request, err error) {
	var serviceErr *oauth2.ServiceError
	switch {
	case errors.Is(err, oauth2.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "temporarily_unavailable", "Token endpoint timed out")
	case errors.As(err, &serviceErr) && serviceErr.Kind == oauth2.ClientError:
		writeError(w, http.StatusUnauthorized, "invalid_grant", "Credentials were rejected")
	case errors.Is(err, oauth2.ErrTokenExchange):
		log.Ctx(r.Context()).Warn().Err(err).Msg("Token exchange failed")
		writeError(w, http.StatusBadGateway, "server_error", "Token exchange failed")
	case errors.Is(err, oauth2.ErrInvalidArgument), errors.Is(err, oauth2.ErrAccessDenied):
		writeError(w, http.StatusUnauthorized, "unauthorized", "Access denied")
	default:
		log.Ctx(r.Context()).Error().Err(err).Msg("Token resolution failed")
		writeError(w, http.StatusInternalServerError, "server_error", "internal server error")
	}
}
