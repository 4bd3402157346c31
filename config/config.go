// Package config loads runtime settings from the environment (optionally seeded by a .env file).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	JWT      JWTConfig
	HTTP     HTTPConfig
	Log      LogConfig
	Shop     ShopConfig
	Redis    RedisConfig
	Storage  StorageConfig
	PDF      PDFConfig
}

type AppConfig struct {
	Env  string
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	TimeZone string
	LogLevel string
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone)
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type HTTPConfig struct {
	AllowedOrigins  string
	RateLimitMax    int
	RateLimitWindow time.Duration
	BodyLimitBytes  int
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

// ShopConfig is printed on receipts and drives invoice tax.
type ShopConfig struct {
	Name     string
	Address  string
	Phone    string
	Currency string
	TaxRate  decimal.Decimal
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	StatsTTL time.Duration
}

// Enabled reports whether a redis address was configured.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Addr) != "" }

type StorageConfig struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	PresignTTL   time.Duration
}

// Enabled reports whether S3 uploads of printed invoices are configured.
func (s StorageConfig) Enabled() bool { return s.Bucket != "" && s.AccessKey != "" }

type PDFConfig struct {
	RemoteURL string
	Timeout   time.Duration
	NoSandbox bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")

	v.SetDefault("DB_HOST", "db")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_LOG_LEVEL", "warn")

	v.SetDefault("JWT_TTL_HOURS", 24)

	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_MAX", 60)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("BODY_LIMIT_MB", 4)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_OUTPUT", "stdout")

	v.SetDefault("SHOP_NAME", "Phone Repair Shop")
	v.SetDefault("CURRENCY", "GBP")
	v.SetDefault("TAX_RATE", "0")

	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("STATS_CACHE_TTL_SECONDS", 60)

	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_PRESIGN_MINUTES", 15)

	v.SetDefault("PDF_TIMEOUT_SECONDS", 30)
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// A missing .env is normal in containers.
	_ = godotenv.Load()
	return FromViper(viper.New())
}

// FromViper builds a Config from v, applying defaults and env overrides.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	taxRate, err := decimal.NewFromString(strings.TrimSpace(v.GetString("TAX_RATE")))
	if err != nil {
		return nil, fmt.Errorf("invalid TAX_RATE: %w", err)
	}

	// Prefer JWT_SECRET_KEY, fallback to JWT_SECRET
	secret := v.GetString("JWT_SECRET_KEY")
	if strings.TrimSpace(secret) == "" {
		secret = v.GetString("JWT_SECRET")
	}

	bodyLimit := v.GetInt("BODY_LIMIT_BYTES")
	if bodyLimit <= 0 {
		bodyLimit = v.GetInt("BODY_LIMIT_MB") * 1024 * 1024
	}

	cfg := &Config{
		App: AppConfig{
			Env:  v.GetString("APP_ENV"),
			Port: v.GetString("PORT"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			TimeZone: v.GetString("DB_TIMEZONE"),
			LogLevel: v.GetString("DB_LOG_LEVEL"),
		},
		JWT: JWTConfig{
			Secret: secret,
			TTL:    time.Duration(v.GetInt("JWT_TTL_HOURS")) * time.Hour,
		},
		HTTP: HTTPConfig{
			AllowedOrigins:  v.GetString("ALLOWED_ORIGINS"),
			RateLimitMax:    v.GetInt("RATE_LIMIT_MAX"),
			RateLimitWindow: time.Duration(v.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
			BodyLimitBytes:  bodyLimit,
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			Output: v.GetString("LOG_OUTPUT"),
		},
		Shop: ShopConfig{
			Name:     v.GetString("SHOP_NAME"),
			Address:  v.GetString("SHOP_ADDRESS"),
			Phone:    v.GetString("SHOP_PHONE"),
			Currency: strings.ToUpper(v.GetString("CURRENCY")),
			TaxRate:  taxRate,
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			StatsTTL: time.Duration(v.GetInt("STATS_CACHE_TTL_SECONDS")) * time.Second,
		},
		Storage: StorageConfig{
			Endpoint:     v.GetString("S3_ENDPOINT"),
			Region:       v.GetString("S3_REGION"),
			Bucket:       v.GetString("S3_BUCKET"),
			AccessKey:    v.GetString("S3_ACCESS_KEY"),
			SecretKey:    v.GetString("S3_SECRET_KEY"),
			UsePathStyle: v.GetBool("S3_USE_PATH_STYLE"),
			PresignTTL:   time.Duration(v.GetInt("S3_PRESIGN_MINUTES")) * time.Minute,
		},
		PDF: PDFConfig{
			RemoteURL: v.GetString("CHROME_REMOTE_URL"),
			Timeout:   time.Duration(v.GetInt("PDF_TIMEOUT_SECONDS")) * time.Second,
			NoSandbox: v.GetBool("CHROME_NO_SANDBOX"),
		},
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWT.Secret) == "" {
		errs = append(errs, errors.New("JWT secret not configured (set JWT_SECRET_KEY or JWT_SECRET)"))
	}
	if c.Shop.TaxRate.IsNegative() {
		errs = append(errs, errors.New("TAX_RATE must not be negative"))
	}
	if c.HTTP.RateLimitMax <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX must be positive"))
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL_HOURS must be positive"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}
