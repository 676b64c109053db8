package config

import "time"

type BrokerConfig interface {
	GetTokenEndpoint() string
	GetClientID() string
	GetClientSecret() string
	GetExchangeTimeout() time.Duration
	GetCertificateProbeURL() string
}

type Broker struct{}

var _ BrokerConfig = Broker{}

func (Broker) GetTokenEndpoint() string {
	return GetEnv("TOKEN_ENDPOINT", "https://auth.example.com/oauth/token")
}

func (Broker) GetClientID() string {
	return GetEnv("CLIENT_ID", "")
}

func (Broker) GetClientSecret() string {
	return GetEnv("CLIENT_SECRET", "")
}

func (Broker) GetExchangeTimeout() time.Duration {
	return GetEnvDuration("EXCHANGE_TIMEOUT", 10*time.Second)
}

// GetCertificateProbeURL is the diagnostic endpoint echoing forwarded client certificate headers.
func (Broker) GetCertificateProbeURL() string {
	return GetEnv("CERT_PROBE_URL", "")
}
