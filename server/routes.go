package server

import (
	"net/http"

	"github.com/jrsteele09/go-token-broker/internal/metrics"
)

func (s *Server) initRoutes() {
	helloToken := []func(http.HandlerFunc) http.HandlerFunc{s.RequireAuth()}
	if s.requiredAuthority != "" {
		helloToken = append(helloToken, s.RequireAuthority(s.requiredAuthority))
	}
	s.RegisterRouteHandler("GET "+RouteHelloToken, ChainMiddleware(s.HelloTokenHandler(), s.APIMiddleware(helloToken...)...))
	s.RegisterRouteHandler("POST "+RouteToken, ChainMiddleware(s.TokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteHealthz, ChainMiddleware(s.HealthzHandler(), s.RecoverMiddleware))
	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler(s.gatherer))
}
