package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/events"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	JWTSecret    string `usage:"HS256 secret for customer bearer tokens" flag:"jwt-secret"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing" flag:"api-key-pepper"`
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Security     SecurityConfig
	Redis        RedisConfig
	Events       events.Config
	Orders       OrdersConfig
	Tx           TxConfig
	Graceful     GracefulConfig
}

// RateLimitConfig sets the three sliding-window tiers.
type RateLimitConfig struct {
	GeneralMax int           `default:"100" usage:"Max requests per window for any path"`
	APIMax     int           `default:"1000" usage:"Max requests per window under /api/"`
	AdminMax   int           `default:"5" usage:"Max requests per window under /api/admin/"`
	Window     time.Duration `default:"15m" usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"http://localhost:3000,http://localhost:4200" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// SecurityConfig controls security response headers and compression.
type SecurityConfig struct {
	ContentSecurityPolicy string `default:"" usage:"Content-Security-Policy override" flag:"csp"`
	HSTSSeconds           int64  `default:"31536000" usage:"Strict-Transport-Security max-age; negative disables" flag:"hsts-seconds"`
	Development           bool   `default:"false" usage:"Disable security headers for local HTTP development"`
	GzipMinSize           int    `default:"1024" usage:"Minimum response size to gzip" flag:"gzip-min-size"`
}

// RedisConfig enables the featured product cache when Addr is set.
type RedisConfig struct {
	Addr        string        `default:"" usage:"Redis address; empty disables the cache" flag:"redis-addr"`
	Password    string        `default:"" usage:"Redis password" flag:"redis-password"`
	DB          int           `default:"0" usage:"Redis database number" flag:"redis-db"`
	FeaturedTTL time.Duration `default:"5m" usage:"Featured products cache TTL" flag:"featured-ttl"`
}

// OrdersConfig controls the order lifecycle.
type OrdersConfig struct {
	StrictAdminTransitions bool `default:"false" usage:"Reject admin status changes outside the lifecycle" flag:"strict-admin-transitions"`
}

// TxConfig controls retries of conflicting transactions.
type TxConfig struct {
	MaxRetries      uint64        `default:"5" usage:"Retries for serialization failures" flag:"tx-max-retries"`
	InitialInterval time.Duration `default:"10ms" usage:"Initial retry backoff" flag:"tx-initial-interval"`
	MaxInterval     time.Duration `default:"250ms" usage:"Maximum retry backoff" flag:"tx-max-interval"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
	case c.JWTSecret == "":
		return errors.New("JWT secret is required: set STOREFRONT_JWT_SECRET")
	case c.APIKeyPepper == "":
		return errors.New("API key pepper is required: set STOREFRONT_API_KEY_PEPPER")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.Redis.Addr == "" {
		if v := os.Getenv("REDIS_ADDR"); v != "" {
			c.Redis.Addr = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
