package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every runtime setting of the storefront service.
type Config struct {
	AppEnv    string
	LogLevel  string
	LogFormat string

	HTTPListenAddr string
	PublicBasePath string
	RateLimitRPS   float64
	RateLimitBurst int

	DatabaseDriver string
	DatabaseURL    string
	SupabaseSchema string
	SQLitePath     string

	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	SupabaseJWTSecret  string
	SupabaseTimeout    time.Duration
	ReceiptsBucket     string
	MaxReceiptBytes    int64

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	KafkaBrokers []string
	KafkaTopic   string

	TelegramBotToken string
	TelegramChatID   string

	WhatsAppStorePath string
	WhatsAppAdminJID  string
	WhatsAppLogLevel  string

	MetricsNamespace string
	CatalogCacheTTL  time.Duration

	OrphanSweepSchedule string
	OrphanMinAge        time.Duration
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Load reads configuration from environment variables.
func Load() (Config, error) {
	cfg := Config{
		AppEnv:    getenv("APP_ENV", "development"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "text"),

		HTTPListenAddr: getenv("HTTP_LISTEN_ADDR", ":8080"),
		PublicBasePath: getenv("PUBLIC_BASE_PATH", ""),

		DatabaseDriver: strings.ToLower(getenv("DATABASE_DRIVER", DriverPostgres)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SupabaseSchema: getenv("SUPABASE_SCHEMA", "public"),
		SQLitePath:     getenv("SQLITE_PATH", "data/topup.db"),

		SupabaseURL:        strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseAnonKey:    os.Getenv("SUPABASE_ANON_KEY"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		SupabaseJWTSecret:  os.Getenv("SUPABASE_JWT_SECRET"),
		ReceiptsBucket:     getenv("RECEIPTS_BUCKET", "receipts"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenv("KAFKA_TOPIC", "storefront.lifecycle"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),

		WhatsAppStorePath: os.Getenv("WHATSAPP_STORE_PATH"),
		WhatsAppAdminJID:  os.Getenv("WHATSAPP_ADMIN_JID"),
		WhatsAppLogLevel:  getenv("WHATSAPP_LOG_LEVEL", "INFO"),

		MetricsNamespace:    getenv("METRICS_NAMESPACE", "topup"),
		OrphanSweepSchedule: getenv("ORPHAN_SWEEP_SCHEDULE", "@every 6h"),
	}

	var errs []error
	var err error

	if cfg.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", 5); err != nil {
		errs = append(errs, err)
	}
	if cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 10); err != nil {
		errs = append(errs, err)
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.RedisTLS, err = getBool("REDIS_TLS", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.SupabaseTimeout, err = getDuration("SUPABASE_TIMEOUT", 15*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.CatalogCacheTTL, err = getDuration("CATALOG_CACHE_TTL", 5*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.OrphanMinAge, err = getDuration("ORPHAN_MIN_AGE", 24*time.Hour); err != nil {
		errs = append(errs, err)
	}
	maxReceipt, err := getInt("MAX_RECEIPT_BYTES", 5<<20)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.MaxReceiptBytes = int64(maxReceipt)

	if err := cfg.validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	switch c.DatabaseDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver))
	}
	if c.SupabaseURL == "" {
		errs = append(errs, errors.New("SUPABASE_URL is required"))
	}
	if c.SupabaseAnonKey == "" {
		errs = append(errs, errors.New("SUPABASE_ANON_KEY is required"))
	}
	if c.MaxReceiptBytes <= 0 {
		errs = append(errs, errors.New("MAX_RECEIPT_BYTES must be positive"))
	}
	if (c.TelegramBotToken == "") != (c.TelegramChatID == "") {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together"))
	}
	if c.WhatsAppAdminJID != "" && c.WhatsAppStorePath == "" {
		errs = append(errs, errors.New("WHATSAPP_STORE_PATH is required when WHATSAPP_ADMIN_JID is set"))
	}
	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(k))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", k, err)
	}
	return v, nil
}

func getFloat(k string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(k))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", k, err)
	}
	return v, nil
}

func getBool(k string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(k))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", k, err)
	}
	return v, nil
}

func getDuration(k string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(k))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", k, err)
	}
	return v, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
