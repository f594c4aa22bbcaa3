package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the explicit configuration struct for the identity core.
// Defaults are enumerated here, in code, rather than resolved through
// nested lookups at runtime.
type Config struct {
	Issuer    string `env:"IDP_ISSUER" envDefault:"zonegate"`
	Algorithm string `env:"IDP_ALGORITHM" envDefault:"EdDSA"` // EdDSA, RS256, or ES256
	RSABits   int    `env:"IDP_RSA_BITS" envDefault:"4096"`   // only used for RS256

	AccessTTL time.Duration `env:"IDP_ACCESS_TTL" envDefault:"15m"`

	// Global lockout policy; zones may override via provisioning metadata.
	LockoutMaxFailures int           `env:"IDP_LOCKOUT_MAX_FAILURES" envDefault:"5"`
	LockoutWindow      time.Duration `env:"IDP_LOCKOUT_WINDOW" envDefault:"1h"`
	LockoutPeriod      time.Duration `env:"IDP_LOCKOUT_PERIOD" envDefault:"5m"`

	// ZoneRatePerMinute throttles attempts per zone; 0 disables.
	ZoneRatePerMinute int `env:"IDP_ZONE_RATE_PER_MINUTE" envDefault:"0"`
	ZoneRateBurst     int `env:"IDP_ZONE_RATE_BURST" envDefault:"0"`

	AuditBuffer          int           `env:"IDP_AUDIT_BUFFER" envDefault:"256"`
	HousekeepingInterval time.Duration `env:"IDP_HOUSEKEEPING_INTERVAL" envDefault:"1h"`
	ShutdownGracePeriod  time.Duration `env:"IDP_SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// LoadConfig parses the configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("app: parse env: %w", err)
	}
	return cfg, nil
}
