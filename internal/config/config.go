package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port          string
	BaseUrl       string
	Store         string
	DbUrl         string
	DbAutoMigrate bool

	ClashRoyaleApiKey  string
	ClashRoyaleApiUrl  string
	ClashRoyaleTimeout time.Duration
	ClashRoyaleRetries int

	RedisUrl           string
	GoogleProjectId    string
	EventsSubscription string
	KafkaBrokers       []string

	MonitorPollInterval time.Duration
	MonitorDeadline     time.Duration

	LogLevel  string
	LogPretty bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", ":8080")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("STORE", StorePostgres)
	v.SetDefault("DB_AUTO_MIGRATE", false)
	v.SetDefault("CLASH_ROYALE_API_URL", "https://api.clashroyale.com/v1")
	v.SetDefault("CLASH_ROYALE_TIMEOUT", 10*time.Second)
	v.SetDefault("CLASH_ROYALE_RETRIES", 3)
	v.SetDefault("MONITOR_POLL_INTERVAL", 60*time.Second)
	v.SetDefault("MONITOR_DEADLINE", 30*time.Minute)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
}

// Load reads configuration from the environment and, when present, ./.env.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetConfigFile("./.env")
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read .env: %w", err)
		}
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (Config, error) {
	setDefaults(v)

	cfg := Config{
		Port:                v.GetString("PORT"),
		BaseUrl:             strings.TrimRight(v.GetString("BASE_URL"), "/"),
		Store:               strings.ToLower(v.GetString("STORE")),
		DbUrl:               v.GetString("DB_URL"),
		DbAutoMigrate:       v.GetBool("DB_AUTO_MIGRATE"),
		ClashRoyaleApiKey:   v.GetString("CLASH_ROYALE_API_KEY"),
		ClashRoyaleApiUrl:   v.GetString("CLASH_ROYALE_API_URL"),
		ClashRoyaleTimeout:  v.GetDuration("CLASH_ROYALE_TIMEOUT"),
		ClashRoyaleRetries:  v.GetInt("CLASH_ROYALE_RETRIES"),
		RedisUrl:            v.GetString("REDIS_URL"),
		GoogleProjectId:     v.GetString("GOOGLE_PROJECT_ID"),
		EventsSubscription:  v.GetString("EVENTS_SUBSCRIPTION"),
		KafkaBrokers:        splitList(v.GetString("KAFKA_BROKERS")),
		MonitorPollInterval: v.GetDuration("MONITOR_POLL_INTERVAL"),
		MonitorDeadline:     v.GetDuration("MONITOR_DEADLINE"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		LogPretty:           v.GetBool("LOG_PRETTY"),
	}

	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	if cfg.ClashRoyaleApiKey == "" {
		return Config{}, errors.New("CLASH_ROYALE_API_KEY required")
	}
	switch cfg.Store {
	case StorePostgres:
		if cfg.DbUrl == "" {
			return Config{}, errors.New("DB_URL required when STORE=postgres")
		}
	case StoreMemory:
	default:
		return Config{}, fmt.Errorf("unsupported STORE %q", cfg.Store)
	}
	if cfg.MonitorPollInterval <= 0 {
		return Config{}, fmt.Errorf("MONITOR_POLL_INTERVAL must be positive, got %s", cfg.MonitorPollInterval)
	}
	if cfg.MonitorDeadline < cfg.MonitorPollInterval {
		return Config{}, fmt.Errorf("MONITOR_DEADLINE %s shorter than poll interval %s", cfg.MonitorDeadline, cfg.MonitorPollInterval)
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
