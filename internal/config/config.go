package config

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	GatekeeperConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetBaseURL() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Tokens
	Gatekeeper
	Stores
}

func New() Config {
	return mainConfig{}
}

// Validate resolves every security-relevant value once so that a misconfigured
// process fails at startup instead of on its first login.
func Validate(c Config) error {
	if _, err := c.GetEncryptionKey(); err != nil {
		return err
	}
	if _, err := c.GetAccessSecret(); err != nil {
		return err
	}
	if _, err := c.GetRefreshSecret(); err != nil {
		return err
	}
	if _, err := c.GetAccessExpiry(); err != nil {
		return err
	}
	if _, err := c.GetRefreshExpiry(); err != nil {
		return err
	}
	if _, err := c.GetRotatedRefreshExpiry(); err != nil {
		return err
	}
	if _, err := c.GetRefreshMode(); err != nil {
		return err
	}
	return nil
}
