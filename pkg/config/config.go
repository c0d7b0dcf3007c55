package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Quote store backends.
const (
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
)

// Mail providers.
const (
	MailProviderResend = "resend"
	MailProviderNoop   = "noop"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Quotes   QuotesConfig
	Mail     MailConfig
	CSRF     CSRFConfig
	Dynamo   DynamoConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// QuotesConfig tunes the moderation workflow.
type QuotesConfig struct {
	Store                string
	StrictPurge          bool
	CountsCacheTTL       time.Duration
	ActionTokenSecret    string
	ActionTokenTTL       time.Duration
	ActionTokenSingleUse bool
	ExportMaxRows        int
}

// MailConfig selects the notification transport.
type MailConfig struct {
	Provider        string
	ResendAPIKey    string
	From            string
	NotifyRecipient string
}

// CSRFConfig protects the public submission form.
type CSRFConfig struct {
	AuthKey        string
	Secure         bool
	TrustedOrigins []string
}

// DynamoConfig is used when Quotes.Store is dynamodb.
type DynamoConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Table           string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	exportMax := v.GetInt("QUOTES_EXPORT_MAX_ROWS")
	if exportMax <= 0 {
		exportMax = 1000
	}
	cfg.Quotes = QuotesConfig{
		Store:                strings.ToLower(v.GetString("QUOTE_STORE")),
		StrictPurge:          v.GetBool("QUOTES_STRICT_PURGE"),
		CountsCacheTTL:       parseDuration(v.GetString("QUOTES_COUNTS_CACHE_TTL"), time.Minute),
		ActionTokenSecret:    v.GetString("ACTION_TOKEN_SECRET"),
		ActionTokenTTL:       parseDuration(v.GetString("ACTION_TOKEN_TTL"), 15*time.Minute),
		ActionTokenSingleUse: v.GetBool("ACTION_TOKEN_SINGLE_USE"),
		ExportMaxRows:        exportMax,
	}
	if cfg.Quotes.ActionTokenSecret == "" {
		cfg.Quotes.ActionTokenSecret = cfg.JWT.Secret
	}

	cfg.Mail = MailConfig{
		Provider:        strings.ToLower(v.GetString("MAIL_PROVIDER")),
		ResendAPIKey:    v.GetString("RESEND_API_KEY"),
		From:            v.GetString("MAIL_FROM"),
		NotifyRecipient: v.GetString("NOTIFY_RECIPIENT"),
	}

	cfg.CSRF = CSRFConfig{
		AuthKey:        v.GetString("CSRF_AUTH_KEY"),
		Secure:         v.GetBool("CSRF_SECURE"),
		TrustedOrigins: splitAndTrim(v.GetString("CSRF_TRUSTED_ORIGINS")),
	}

	cfg.Dynamo = DynamoConfig{
		Region:          v.GetString("AWS_REGION"),
		Endpoint:        v.GetString("DYNAMODB_ENDPOINT"),
		AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
		Table:           v.GetString("QUOTES_TABLE"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "quote_desk")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "quote-desk")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("QUOTE_STORE", StorePostgres)
	v.SetDefault("QUOTES_STRICT_PURGE", false)
	v.SetDefault("QUOTES_COUNTS_CACHE_TTL", "1m")
	v.SetDefault("ACTION_TOKEN_SECRET", "")
	v.SetDefault("ACTION_TOKEN_TTL", "15m")
	v.SetDefault("ACTION_TOKEN_SINGLE_USE", false)
	v.SetDefault("QUOTES_EXPORT_MAX_ROWS", 1000)

	v.SetDefault("MAIL_PROVIDER", MailProviderNoop)
	v.SetDefault("RESEND_API_KEY", "")
	v.SetDefault("MAIL_FROM", "Quote Desk <noreply@example.com>")
	v.SetDefault("NOTIFY_RECIPIENT", "")

	v.SetDefault("CSRF_AUTH_KEY", "dev_csrf_key_change_me_32_bytes!")
	v.SetDefault("CSRF_SECURE", false)
	v.SetDefault("CSRF_TRUSTED_ORIGINS", "")

	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("DYNAMODB_ENDPOINT", "")
	v.SetDefault("AWS_ACCESS_KEY_ID", "local")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "local")
	v.SetDefault("QUOTES_TABLE", "quotes")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
