package config

type Config interface {
	EnvConfig
	BrokerConfig
	CacheConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetBaseHost() string
}

type mainConfig struct {
	EnvVars
	Broker
	Cache
	Security
}

func New() Config {
	return mainConfig{}
}
