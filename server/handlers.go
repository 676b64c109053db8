package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type helloTokenResponse struct {
	Subject     string         `json:"sub,omitempty"`
	ClientID    string         `json:"client_id,omitempty"`
	Authorities []string       `json:"authorities"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	Claims      map[string]any `json:"claims"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, errorResponse{Error: code, ErrorDescription: description})
}

// HelloTokenHandler describes the identity of the caller.
func (s *Server) HelloTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := s.holder.Get(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Access denied")
			return
		}

		resp := helloTokenResponse{
			Subject:     token.Subject(),
			ClientID:    token.ClientID(),
			Authorities: make([]string, 0, len(token.Authorities)),
			Claims:      token.Claims,
		}
		for _, a := range token.Authorities {
			resp.Authorities = append(resp.Authorities, string(a))
		}
		if exp, ok := token.Claims.Time("exp"); ok {
			resp.ExpiresAt = &exp
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// TokenHandler hands the caller the bearer token its credentials resolve to, so clients
// holding only Basic credentials can call bearer-only services directly.
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok, err := s.resolver.Resolve(r.Context(), r)
		if err != nil {
			writeResolveError(w, r, err)
			return
		}
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="token-broker"`)
			writeError(w, http.StatusUnauthorized, "unauthorized", "Missing or unsupported Authorization header")
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "Bearer"})
	}
}

func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
