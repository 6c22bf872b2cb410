package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application runtime configuration.
type Config struct {
	Env             string
	ServiceName     string
	HTTPPort        string
	DatabaseURL     string
	DBMaxConns      int32
	RunMigrations   bool
	JWTSecret       string
	AccessTokenTTL  time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration

	LogLevel  string
	LogFormat string

	CORSAllowedOrigins []string
	RateLimitPerMinute int

	SMTP SMTP

	// OTelEndpoint enables OTLP trace export when set.
	OTelEndpoint string

	// DevAuthBypass lets token-less requests run as a fixture super-admin.
	// Load refuses it outside development.
	DevAuthBypass bool
}

type SMTP struct {
	Host     string
	Port     int
	From     string
	Password string
}

func (s SMTP) Enabled() bool { return s.Host != "" && s.From != "" }

func (c Config) IsDevelopment() bool { return c.Env == "development" }

// Load reads environment variables and .env (if present).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:                getEnv("APP_ENV", "production"),
		ServiceName:        getEnv("SERVICE_NAME", "planora-backend"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DBMaxConns:         int32(getInt("DB_MAX_CONNS", 0)),
		RunMigrations:      getBool("RUN_MIGRATIONS", true),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		AccessTokenTTL:     getDuration("ACCESS_TOKEN_TTL", 7*24*time.Hour),
		ReadTimeout:        getDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       getDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:        getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:    getDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		RequestTimeout:     getDuration("HTTP_REQUEST_TIMEOUT", 60*time.Second),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 200),
		SMTP: SMTP{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getInt("SMTP_PORT", 587),
			From:     os.Getenv("SMTP_FROM"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		OTelEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		DevAuthBypass: getBool("DEV_AUTH_BYPASS", false),
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET is required")
	}
	if cfg.DevAuthBypass && !cfg.IsDevelopment() {
		return cfg, errors.New("DEV_AUTH_BYPASS is only allowed when APP_ENV=development")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return b
}

func getList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		// Support seconds as integer without suffix.
		if secs, convErr := strconv.Atoi(val); convErr == nil {
			return time.Duration(secs) * time.Second
		}
		return fallback
	}
	return d
}
