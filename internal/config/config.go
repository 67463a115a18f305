// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAutomationBaseURL = "https://api.otomato.xyz/api"
	DefaultStreamURLBase     = "https://portal.abs.xyz/stream/"
	DefaultTriggerBlockID    = 103
	DefaultActionBlockID     = 100001
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token           string  `yaml:"token"`
	Workers         int     `yaml:"workers"` // polling workers
	AdminIDs        []int64 `yaml:"admin_ids"`
	WelcomePhotoURL string  `yaml:"welcome_photo_url"`
	SiteURL         string  `yaml:"site_url"`
	// RateLimit is the number of commands a user may send per RateWindow.
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type LogConfig struct {
	Level    string        `yaml:"level"`    // trace|debug|info|warn|error
	Format   string        `yaml:"format"`   // json|console
	Sampling bool          `yaml:"sampling"` // enable sampling in prod
	File     LogFileConfig `yaml:"file"`
}

type AdminConfig struct {
	Port      int           `yaml:"port"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// AutomationConfig describes the remote workflow-automation API.
type AutomationConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	// AuthScheme is prepended to the token in the Authorization header.
	// Empty sends the raw token.
	AuthScheme     string        `yaml:"auth_scheme"`
	Timeout        time.Duration `yaml:"timeout"`
	TriggerBlockID int           `yaml:"trigger_block_id"`
	ActionBlockID  int           `yaml:"action_block_id"`
	StreamURLBase  string        `yaml:"stream_url_base"`
}

type Config struct {
	Bot        BotConfig        `yaml:"bot"`
	Log        LogConfig        `yaml:"log"`
	Admin      AdminConfig      `yaml:"admin"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Automation AutomationConfig `yaml:"automation"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the optional YAML file at path, then .env, then the
// process environment. A missing file is not an error.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// .env is optional; real environment wins over it.
	_ = godotenv.Load()
	applyEnv(&cfg)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate performs the minimal checks needed to start the bot.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return errors.New("bot.token is required (TELEGRAM_BOT_TOKEN)")
	}
	if c.Automation.Token == "" && !c.Runtime.Dev {
		return errors.New("automation.token is required (OTOMATO_TOKEN)")
	}
	if !strings.HasPrefix(c.Automation.BaseURL, "http://") && !strings.HasPrefix(c.Automation.BaseURL, "https://") {
		return fmt.Errorf("automation.base_url must be an http(s) url, got %q", c.Automation.BaseURL)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setStr(&cfg.Bot.Token, "TELEGRAM_BOT_TOKEN")
	setStr(&cfg.Bot.WelcomePhotoURL, "WELCOME_PHOTO_URL")
	setStr(&cfg.Automation.Token, "AUTH_TOKEN")
	setStr(&cfg.Automation.Token, "OTOMATO_TOKEN")
	setStr(&cfg.Automation.BaseURL, "API_URL")
	setStr(&cfg.Automation.AuthScheme, "API_AUTH_SCHEME")
	setStr(&cfg.Database.URL, "DATABASE_URL")
	setStr(&cfg.Redis.URL, "REDIS_URL")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setStr(&cfg.Log.Level, "LOG_LEVEL")
	setStr(&cfg.Log.Format, "LOG_FORMAT")
	setStr(&cfg.Log.File.Path, "LOG_FILE")
	setStr(&cfg.Admin.JWTSecret, "ADMIN_JWT_SECRET")
	if v := os.Getenv("ADMIN_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Admin.Port = p
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.RateLimit <= 0 {
		cfg.Bot.RateLimit = 20
	}
	if cfg.Bot.RateWindow <= 0 {
		cfg.Bot.RateWindow = time.Minute
	}
	if cfg.Bot.SiteURL == "" {
		cfg.Bot.SiteURL = "https://otomato.xyz"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.File.MaxSizeMB <= 0 {
		cfg.Log.File.MaxSizeMB = 50
	}
	if cfg.Log.File.MaxBackups <= 0 {
		cfg.Log.File.MaxBackups = 3
	}
	if cfg.Log.File.MaxAgeDays <= 0 {
		cfg.Log.File.MaxAgeDays = 14
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = 24 * time.Hour
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	a := &cfg.Automation
	if a.BaseURL == "" {
		a.BaseURL = DefaultAutomationBaseURL
	}
	a.BaseURL = strings.TrimRight(a.BaseURL, "/")
	if a.Timeout <= 0 {
		a.Timeout = 15 * time.Second
	}
	if a.TriggerBlockID <= 0 {
		a.TriggerBlockID = DefaultTriggerBlockID
	}
	if a.ActionBlockID <= 0 {
		a.ActionBlockID = DefaultActionBlockID
	}
	if a.StreamURLBase == "" {
		a.StreamURLBase = DefaultStreamURLBase
	}
}

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
