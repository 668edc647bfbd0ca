package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	OwnerID int64  `yaml:"owner_id" envconfig:"BOT_OWNER_ID"`
	Workers int    `yaml:"workers"` // polling workers
}

type WhatsAppConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Port        int    `yaml:"port"`
	AccessToken string `yaml:"access_token" envconfig:"WA_ACCESS_TOKEN"`
	VerifyToken string `yaml:"verify_token" envconfig:"WA_VERIFY_TOKEN"`
	PhoneID     string `yaml:"phone_id" envconfig:"WA_PHONE_ID"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port      int    `yaml:"port"`
	Password  string `yaml:"password" envconfig:"ADMIN_PASSWORD"`
	JWTSecret string `yaml:"jwt_secret" envconfig:"ADMIN_JWT_SECRET"`
}

type DatabaseConfig struct {
	URL string `yaml:"url" envconfig:"DATABASE_URL"`
}

type RedisConfig struct {
	URL        string        `yaml:"url" envconfig:"REDIS_URL"`
	Password   string        `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB         int           `yaml:"db"`
	SessionTTL time.Duration `yaml:"session_ttl"` // abandoned flow sessions expire after this
}

type SchedulerConfig struct {
	NoticeCheckCron string `yaml:"notice_check_cron"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key" envconfig:"ENCRYPTION_KEY"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"` // flow-start commands per user per minute
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Security  SecurityConfig  `yaml:"security"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the yaml file named by -config, then lets environment
// variables override the secrets (BOT_TOKEN, DATABASE_URL, ENCRYPTION_KEY,
// ADMIN_PASSWORD, ...), then applies defaults and minimal validation.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	// defaults
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 8080
	}
	if cfg.WhatsApp.Port <= 0 {
		cfg.WhatsApp.Port = 8081
	}
	if cfg.Scheduler.NoticeCheckCron == "" {
		cfg.Scheduler.NoticeCheckCron = "0 9 * * *"
	}
	if cfg.RateLimit.PerMinute <= 0 {
		cfg.RateLimit.PerMinute = 20
	}
	cfg.Redis.SessionTTL = normalizeTTL(cfg.Redis.SessionTTL)

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Bot.OwnerID == 0 {
		return nil, errors.New("bot.owner_id is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Security.EncryptionKey == "" {
		return nil, errors.New("security.encryption_key is required")
	}
	if cfg.WhatsApp.Enabled && (cfg.WhatsApp.AccessToken == "" || cfg.WhatsApp.PhoneID == "") {
		return nil, errors.New("whatsapp.access_token and whatsapp.phone_id are required when whatsapp is enabled")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 15 * time.Minute
	}
	return d
}
