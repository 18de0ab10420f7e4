package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	Port        string

	OTLPEndpoint string

	CRM       CRMConfig
	Stripe    StripeConfig
	Registrar RegistrarConfig
	RateLimit RateLimitConfig

	CatalogPath string
}

// CRMConfig configures the Flowlu API client.
type CRMConfig struct {
	BaseURL         string
	APIKey          string
	RateLimitSignal string
	Timeout         time.Duration
	Retry           RetryConfig
}

// RetryConfig describes the CRM retry policy. The defaults reproduce a fixed
// two second delay with five attempts in total.
type RetryConfig struct {
	MaxAttempts         int
	InitialInterval     time.Duration
	Multiplier          float64
	MaxInterval         time.Duration
	RandomizationFactor float64
}

type StripeConfig struct {
	SecretKey       string
	PublicKey       string
	BaseURL         string
	Currency        string
	AcceptSucceeded bool
	Timeout         time.Duration
}

type RegistrarConfig struct {
	BaseURL    string
	APIKey     string
	ResellerID string
	Period     int
	Timeout    time.Duration
}

type RateLimitConfig struct {
	Enabled        bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	CheckoutRate   float64
	CheckoutBurst  int
	InvoiceLockTTL time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "orderbridge"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		Port:         getenv("PORT", "3000"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		CRM: CRMConfig{
			BaseURL:         strings.TrimRight(getenv("FLOWLU_BASE_URL", "https://kudio.flowlu.com/api/v1"), "/"),
			APIKey:          strings.TrimSpace(getenv("FLOWLU_API_KEY", "")),
			RateLimitSignal: getenv("FLOWLU_RATE_LIMIT_SIGNAL", "Request rate per second exceeded"),
			Timeout:         getenvDuration("FLOWLU_TIMEOUT", 15*time.Second),
			Retry: RetryConfig{
				MaxAttempts:         getenvInt("FLOWLU_RETRY_MAX_ATTEMPTS", 5),
				InitialInterval:     getenvDuration("FLOWLU_RETRY_INITIAL_INTERVAL", 2*time.Second),
				Multiplier:          getenvFloat("FLOWLU_RETRY_MULTIPLIER", 1),
				MaxInterval:         getenvDuration("FLOWLU_RETRY_MAX_INTERVAL", 30*time.Second),
				RandomizationFactor: getenvFloat("FLOWLU_RETRY_JITTER", 0),
			},
		},
		Stripe: StripeConfig{
			SecretKey:       strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			PublicKey:       strings.TrimSpace(getenv("STRIPE_PUBLIC_KEY", "")),
			BaseURL:         strings.TrimRight(getenv("STRIPE_BASE_URL", "https://api.stripe.com"), "/"),
			Currency:        strings.ToLower(getenv("STRIPE_CURRENCY", "gbp")),
			AcceptSucceeded: getenvBool("PAYMENT_ACCEPT_SUCCEEDED", false),
			Timeout:         getenvDuration("STRIPE_TIMEOUT", 12*time.Second),
		},
		Registrar: RegistrarConfig{
			BaseURL:    strings.TrimRight(getenv("REGISTRAR_BASE_URL", "https://api.registrar.example/v1"), "/"),
			APIKey:     strings.TrimSpace(getenv("REGISTRAR_API_KEY", "")),
			ResellerID: strings.TrimSpace(getenv("REGISTRAR_RESELLER_ID", "")),
			Period:     getenvInt("REGISTRAR_PERIOD", 1),
			Timeout:    getenvDuration("REGISTRAR_TIMEOUT", 20*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:      strings.TrimSpace(getenv("REDIS_ADDR", "")),
			RedisPassword:  strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			RedisDB:        getenvInt("REDIS_DB", 0),
			CheckoutRate:   getenvFloat("RATE_LIMIT_CHECKOUT_RATE", 1),
			CheckoutBurst:  getenvInt("RATE_LIMIT_CHECKOUT_BURST", 5),
			InvoiceLockTTL: getenvDuration("RATE_LIMIT_INVOICE_LOCK_TTL", 2*time.Minute),
		},
		CatalogPath: strings.TrimSpace(getenv("CATALOG_PATH", "")),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
