package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ClientLimit    int           `yaml:"client_limit"`  // anonymous writes per client address per window
	ClientWindow   time.Duration `yaml:"client_window"` // fixed window
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // catalog cache ttl
}

type AzamPayConfig struct {
	AppName      string        `yaml:"app_name"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	AuthURL      string        `yaml:"auth_url"`
	CheckoutURL  string        `yaml:"checkout_url"`
	Sandbox      bool          `yaml:"sandbox"`
	TokenTTL     time.Duration `yaml:"token_ttl"`    // processor's stated token validity
	TokenMargin  time.Duration `yaml:"token_margin"` // reuse stops this long before expiry
	TokenStore   string        `yaml:"token_store"`  // memory|redis

	// CallbackSecret, when set, requires callbacks to carry a matching
	// X-Callback-Signature header.
	CallbackSecret string `yaml:"callback_secret"`
}

type PaymentConfig struct {
	Currency      string        `yaml:"currency"`
	CountryCode   string        `yaml:"country_code"`
	IDPrefix      string        `yaml:"id_prefix"`
	PremiumPrice  int64         `yaml:"premium_price"`
	PremiumPeriod time.Duration `yaml:"premium_period"`
	AzamPay       AzamPayConfig `yaml:"azampay"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type AccessConfig struct {
	ControlNumberPrefix string        `yaml:"control_number_prefix"`
	RequestLimit        int           `yaml:"request_limit"`  // per phone per window
	RequestWindow       time.Duration `yaml:"request_window"` // rate-limit window
	MaxGenerate         int           `yaml:"max_generate"`
}

type NotifyConfig struct {
	TelegramToken string  `yaml:"telegram_token"`
	AdminChatIDs  []int64 `yaml:"admin_chat_ids"`
}

type SchedulerConfig struct {
	StaleScanInterval time.Duration `yaml:"stale_scan_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Auth      AuthConfig      `yaml:"auth"`
	Access    AccessConfig    `yaml:"access"`
	Notify    NotifyConfig    `yaml:"notify"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path. ${VAR} references are expanded from
// the environment so secrets can stay out of the file.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes raw YAML, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Payment.AzamPay.TokenMargin >= cfg.Payment.AzamPay.TokenTTL {
		return nil, errors.New("payment.azampay.token_margin must be shorter than token_ttl")
	}
	switch cfg.Payment.AzamPay.TokenStore {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("payment.azampay.token_store: unknown value %q", cfg.Payment.AzamPay.TokenStore)
	}
	if cfg.Payment.AzamPay.TokenStore == "redis" && cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required when token_store is redis")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.HTTP.ClientLimit <= 0 {
		cfg.HTTP.ClientLimit = 30
	}
	cfg.HTTP.ClientWindow = normalizeTTL(cfg.HTTP.ClientWindow, time.Minute)
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL, 5*time.Minute)

	p := &cfg.Payment
	if p.Currency == "" {
		p.Currency = "TZS"
	}
	if p.CountryCode == "" {
		p.CountryCode = "255"
	}
	if p.IDPrefix == "" {
		p.IDPrefix = "TASSA"
	}
	if p.PremiumPeriod <= 0 {
		p.PremiumPeriod = 30 * 24 * time.Hour
	}
	az := &p.AzamPay
	if az.AuthURL == "" {
		az.AuthURL = "https://authenticator-sandbox.azampay.co.tz/AppRegistration/GenerateToken"
		if !az.Sandbox {
			az.AuthURL = "https://authenticator.azampay.co.tz/AppRegistration/GenerateToken"
		}
	}
	if az.CheckoutURL == "" {
		az.CheckoutURL = "https://sandbox.azampay.co.tz/azampay/mno/checkout"
		if !az.Sandbox {
			az.CheckoutURL = "https://checkout.azampay.co.tz/azampay/mno/checkout"
		}
	}
	az.TokenTTL = normalizeTTL(az.TokenTTL, time.Hour)
	if az.TokenMargin <= 0 {
		az.TokenMargin = 10 * time.Minute
	}
	if az.TokenStore == "" {
		az.TokenStore = "memory"
	}

	if cfg.Access.ControlNumberPrefix == "" {
		cfg.Access.ControlNumberPrefix = "ASA"
	}
	if cfg.Access.RequestLimit <= 0 {
		cfg.Access.RequestLimit = 5
	}
	cfg.Access.RequestWindow = normalizeTTL(cfg.Access.RequestWindow, time.Hour)
	if cfg.Access.MaxGenerate <= 0 {
		cfg.Access.MaxGenerate = 500
	}

	cfg.Scheduler.StaleScanInterval = normalizeTTL(cfg.Scheduler.StaleScanInterval, 15*time.Minute)
	cfg.Scheduler.StaleAfter = normalizeTTL(cfg.Scheduler.StaleAfter, time.Hour)
}

func normalizeTTL(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
