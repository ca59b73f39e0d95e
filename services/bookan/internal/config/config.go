package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location. BOOKAN_CONFIG overrides it.
var ConfigPath = "config.yaml"

const defaultSearchLatency = 800 * time.Millisecond

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	LogLevel            string `yaml:"logLevel"`
	KVBackend           string `yaml:"kvBackend"`
	RedisAddr           string `yaml:"redisAddr"`
	RedisPassword       string `yaml:"redisPassword"`
	DatabaseURL         string `yaml:"databaseURL"`
	SessionSecret       string `yaml:"sessionSecret"`
	SessionTTL          string `yaml:"sessionTTL"`
	VerifyCredentials   bool   `yaml:"verifyCredentials"`
	SearchLatency       string `yaml:"searchLatency"`
	DueSoonDays         int    `yaml:"dueSoonDays"`
	LoanRequestsPerHour int    `yaml:"loanRequestsPerHour"`
	MessagesPerMinute   int    `yaml:"messagesPerMinute"`
	SeedDemoCatalog     bool   `yaml:"seedDemoCatalog"`
	MinioEndpoint       string `yaml:"minioEndpoint"`
	MinioAccessKey      string `yaml:"minioAccessKey"`
	MinioSecretKey      string `yaml:"minioSecretKey"`
	MinioBucket         string `yaml:"minioBucket"`
	MinioUseSSL         bool   `yaml:"minioUseSSL"`
	AMQPURL             string `yaml:"amqpURL"`
	AMQPExchange        string `yaml:"amqpExchange"`
	EventStream         string `yaml:"eventStream"`
}

// Load reads config from path (defaults to ConfigPath, or BOOKAN_CONFIG when set).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if v := os.Getenv("BOOKAN_CONFIG"); v != "" {
		path = v
	}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	if cfg.KVBackend == "" {
		cfg.KVBackend = "memory"
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("BOOKAN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v := os.Getenv("BOOKAN_KV_BACKEND"); v != "" {
		cfg.KVBackend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("BOOKAN_SESSION_SECRET"); v != "" {
		cfg.SessionSecret = v
	}
	if v := os.Getenv("BOOKAN_SESSION_TTL"); v != "" {
		cfg.SessionTTL = strings.TrimSpace(v)
	}
	if v := os.Getenv("BOOKAN_VERIFY_CREDENTIALS"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.VerifyCredentials = b
		}
	}
	if v := os.Getenv("BOOKAN_SEARCH_LATENCY"); v != "" {
		cfg.SearchLatency = strings.TrimSpace(v)
	}
	if v := os.Getenv("BOOKAN_DUE_SOON_DAYS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.DueSoonDays = n
		}
	}
	if v := os.Getenv("BOOKAN_LOAN_REQUESTS_PER_HOUR"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.LoanRequestsPerHour = n
		}
	}
	if v := os.Getenv("BOOKAN_MESSAGES_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.MessagesPerMinute = n
		}
	}
	if v := os.Getenv("BOOKAN_SEED_DEMO_CATALOG"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.SeedDemoCatalog = b
		}
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("BOOKAN_AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("BOOKAN_EVENT_STREAM"); v != "" {
		cfg.EventStream = strings.TrimSpace(v)
	}
}

func validateConfig(cfg FileConfig) error {
	switch cfg.KVBackend {
	case "memory":
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required when kvBackend is redis")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return errors.New("config: databaseURL is required when kvBackend is postgres")
		}
	default:
		return fmt.Errorf("config: unknown kvBackend %q (memory, redis or postgres)", cfg.KVBackend)
	}
	if cfg.SessionSecret != "" && len(cfg.SessionSecret) < 16 {
		return errors.New("config: sessionSecret must be at least 16 bytes")
	}
	if cfg.DueSoonDays < 0 {
		return errors.New("config: dueSoonDays must be >= 0")
	}
	if cfg.LoanRequestsPerHour < 0 || cfg.MessagesPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.MinioEndpoint != "" && strings.TrimSpace(cfg.MinioBucket) == "" {
		return errors.New("config: minioBucket is required when minioEndpoint is set")
	}
	if cfg.EventStream != "" && cfg.AMQPURL == "" && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required when eventStream is set")
	}
	if _, err := ParseSearchLatency(cfg.SearchLatency); err != nil {
		return err
	}
	if _, err := ParseSessionTTL(cfg.SessionTTL); err != nil {
		return err
	}
	return nil
}

// ParseSearchLatency parses the simulated search delay. Empty means 800ms.
func ParseSearchLatency(s string) (time.Duration, error) {
	if s == "" {
		return defaultSearchLatency, nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid searchLatency duration: %w", err)
	}
	if dur < 0 {
		return 0, errors.New("config: searchLatency must be >= 0")
	}
	return dur, nil
}

// ParseSessionTTL parses the lifetime of signed sessions. Empty means the app default.
func ParseSessionTTL(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid sessionTTL duration: %w", err)
	}
	return dur, nil
}
