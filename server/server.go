// Package server is a resource server protected by the token broker: inbound Basic
// credentials are exchanged for an access token, the token is decoded, and the identity is
// held for the duration of the request.
package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-token-broker/broker"
	"github.com/jrsteele09/go-token-broker/internal/config"
	"github.com/jrsteele09/go-token-broker/internal/metrics"
	"github.com/jrsteele09/go-token-broker/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env       string
	mux       *http.ServeMux
	routes    []string
	resolver  broker.TokenResolver
	holder    *security.Holder
	decoder   security.Decoder
	extractor security.AuthoritiesExtractor
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer

	requiredAuthority security.Authority
}

type Option func(*Server)

const DefaultRequiredAuthority security.Authority = "openid"

// WithRequiredAuthority sets the authority demanded by /hello-token. An empty authority only
// requires a valid token.
func WithRequiredAuthority(authority security.Authority) Option {
	return func(s *Server) {
		s.requiredAuthority = authority
	}
}

// WithMetrics records request metrics in m and serves g on /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

func New(cfg config.EnvConfig, resolver broker.TokenResolver, holder *security.Holder, decoder security.Decoder, extractor security.AuthoritiesExtractor, options ...Option) (*Server, error) {
	if resolver == nil || holder == nil || decoder == nil {
		return nil, fmt.Errorf("[Server New] resolver, holder and decoder are required")
	}

	s := &Server{
		env:       cfg.GetEnv(),
		mux:       http.NewServeMux(),
		resolver:  resolver,
		holder:    holder,
		decoder:   decoder,
		extractor: extractor,

		requiredAuthority: DefaultRequiredAuthority,
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		log.Info().Str("method", colourMethod(method)).Str("path", path).Msg("Route registered")
	}
}
