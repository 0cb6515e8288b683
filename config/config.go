package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App     AppSettings     `mapstructure:"app"`
	Breach  BreachSettings  `mapstructure:"breach"`
	Request RequestSettings `mapstructure:"request"`
	Redis   RedisSettings   `mapstructure:"redis"`
	Lookup  LookupSettings  `mapstructure:"lookup"`
	Whois   WhoisSettings   `mapstructure:"whois"`
}

type AppSettings struct {
	Env        string `mapstructure:"env"`
	LogLevel   string `mapstructure:"log_level"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// BreachSettings holds the provider endpoint and optional default per-call
// options used when a caller leaves them empty.
type BreachSettings struct {
	BaseURL              string `mapstructure:"base_url"`
	ClientID             string `mapstructure:"client_id"`
	ClientSecret         string `mapstructure:"client_secret"`
	Blacklist            string `mapstructure:"blacklist"`
	DomainBlacklistRegex string `mapstructure:"domain_blacklist_regex"`
}

// RequestSettings are read once at startup to build the outbound HTTP client.
type RequestSettings struct {
	Cert       string        `mapstructure:"cert"`
	Key        string        `mapstructure:"key"`
	Passphrase string        `mapstructure:"passphrase"`
	CA         string        `mapstructure:"ca"`
	Proxy      string        `mapstructure:"proxy"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// RedisSettings selects the shared token store when Addr is set.
type RedisSettings struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LookupSettings struct {
	Concurrency int `mapstructure:"concurrency"`
}

type WhoisSettings struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// env maps config keys to environment variables and their defaults.
var env = []struct {
	key, name string
	def       any
}{
	{"app.env", "APP_ENV", "development"},
	{"app.log_level", "LOG_LEVEL", ""},
	{"app.listen_addr", "LISTEN_ADDR", ":8080"},
	{"breach.base_url", "BREACH_BASE_URL", "https://cyberriskanalytics.com"},
	{"breach.client_id", "BREACH_CLIENT_ID", ""},
	{"breach.client_secret", "BREACH_CLIENT_SECRET", ""},
	{"breach.blacklist", "BREACH_BLACKLIST", ""},
	{"breach.domain_blacklist_regex", "BREACH_DOMAIN_BLACKLIST_REGEX", ""},
	{"request.cert", "REQUEST_CERT", ""},
	{"request.key", "REQUEST_KEY", ""},
	{"request.passphrase", "REQUEST_PASSPHRASE", ""},
	{"request.ca", "REQUEST_CA", ""},
	{"request.proxy", "REQUEST_PROXY", ""},
	{"request.timeout", "REQUEST_TIMEOUT", "30s"},
	{"redis.addr", "REDIS_ADDR", ""},
	{"redis.password", "REDIS_PASSWORD", ""},
	{"redis.db", "REDIS_DB", 0},
	{"lookup.concurrency", "LOOKUP_CONCURRENCY", 0},
	{"whois.enabled", "WHOIS_ENABLED", false},
	{"whois.timeout", "WHOIS_TIMEOUT", "10s"},
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for _, e := range env {
		v.SetDefault(e.key, e.def)
		if err := v.BindEnv(e.key, e.name); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", e.name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Breach.BaseURL == "" {
		return fmt.Errorf("BREACH_BASE_URL must not be empty")
	}
	if c.Lookup.Concurrency < 0 {
		return fmt.Errorf("LOOKUP_CONCURRENCY must be >= 0, got %d", c.Lookup.Concurrency)
	}
	return nil
}
