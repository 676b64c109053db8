package server

const (
	RouteHelloToken = "/hello-token"
	RouteToken      = "/token"
	RouteHealthz    = "/healthz"
	RouteMetrics    = "/metrics"
)
