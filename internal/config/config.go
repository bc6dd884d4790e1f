// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath = "config.toml"
	DefaultHTTPAddr   = ":3000"
	DefaultPGHost     = "127.0.0.1"
	DefaultPGPort     = 5432
	DefaultPGUser     = "postgres"
	DefaultPGDatabase = "kohana"
	DefaultPGSSLMode  = "disable"

	DefaultChatModel       = "gemini-2.5-flash"
	DefaultClassifierModel = "gemini-2.5-flash"
	DefaultImageModel      = "imagen-3.0-generate-002"

	DefaultBraveEndpoint = "https://api.search.brave.com/res/v1/web/search"
	DefaultTenorEndpoint = "https://tenor.googleapis.com/v2/search"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Discord  DiscordConfig  `toml:"discord"`
	Telegram TelegramConfig `toml:"telegram"`
	Gemini   GeminiConfig   `toml:"gemini"`
	Search   SearchConfig   `toml:"search"`
	GIF      GIFConfig      `toml:"gif"`
	Pipeline PipelineConfig `toml:"pipeline"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// DiscordConfig holds the Discord gateway credentials.
type DiscordConfig struct {
	Enabled bool   `toml:"enabled"`
	Token   string `toml:"token"`
}

// TelegramConfig holds the Telegram bot credentials.
type TelegramConfig struct {
	Enabled bool   `toml:"enabled"`
	Token   string `toml:"token"`
}

// GeminiConfig holds the generation backend credentials, model ids, and
// client-side protection settings (rate limit, circuit breaker).
type GeminiConfig struct {
	APIKey          string  `toml:"api_key"`
	ChatModel       string  `toml:"chat_model"`
	ClassifierModel string  `toml:"classifier_model"`
	ImageModel      string  `toml:"image_model"`
	RequestsPerMin  float64 `toml:"requests_per_minute"`
	Burst           int     `toml:"burst"`
	BreakerFailures int     `toml:"breaker_failures"`
	BreakerCooldown int     `toml:"breaker_cooldown_seconds"`
}

// SearchConfig holds the web search provider settings (Brave).
type SearchConfig struct {
	APIKey   string `toml:"api_key"`
	Endpoint string `toml:"endpoint"`
	Count    int    `toml:"count"`
}

// GIFConfig holds the Tenor GIF settings. Chance is the probability of
// chasing a reply with a GIF; zero disables the feature.
type GIFConfig struct {
	APIKey   string  `toml:"api_key"`
	Endpoint string  `toml:"endpoint"`
	Chance   float64 `toml:"chance"`
}

// PipelineConfig holds the message intake tunables: debounce window, forced
// reply thresholds, history bounds, and the compaction policy.
type PipelineConfig struct {
	DebounceWindowSeconds int     `toml:"debounce_window_seconds"`
	LongBreakMinutes      int     `toml:"long_break_minutes"`
	EarlierPickChance     float64 `toml:"earlier_pick_chance"`
	SuppressionCap        int     `toml:"suppression_cap"`
	HistoryWindow         int     `toml:"history_window"`
	HistoryLimit          int     `toml:"history_limit"`
	HistoryKeep           int     `toml:"history_keep"`
	Compaction            string  `toml:"compaction"`
	ImageRequestTTLMin    int     `toml:"image_request_ttl_minutes"`
	ReplyDelayMaxMs       int     `toml:"reply_delay_max_ms"`
	InboundWorkers        int     `toml:"inbound_workers"`
}

// DebounceWindow returns the debounce window as a duration.
func (c PipelineConfig) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceWindowSeconds) * time.Second
}

// LongBreak returns the long-break threshold as a duration.
func (c PipelineConfig) LongBreak() time.Duration {
	return time.Duration(c.LongBreakMinutes) * time.Minute
}

// ImageRequestTTL returns the image confirmation lifetime as a duration.
func (c PipelineConfig) ImageRequestTTL() time.Duration {
	return time.Duration(c.ImageRequestTTLMin) * time.Minute
}

// Load reads and parses the TOML config file at path, applies default values
// for missing fields, and picks up secrets from the environment.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Gemini: GeminiConfig{
			ChatModel:       DefaultChatModel,
			ClassifierModel: DefaultClassifierModel,
			ImageModel:      DefaultImageModel,
			RequestsPerMin:  60,
			Burst:           5,
			BreakerFailures: 3,
			BreakerCooldown: 30,
		},
		Search: SearchConfig{
			Endpoint: DefaultBraveEndpoint,
			Count:    5,
		},
		GIF: GIFConfig{
			Endpoint: DefaultTenorEndpoint,
			Chance:   0.2,
		},
		Pipeline: PipelineConfig{
			DebounceWindowSeconds: 4,
			LongBreakMinutes:      5,
			EarlierPickChance:     0.15,
			SuppressionCap:        2,
			HistoryWindow:         20,
			HistoryLimit:          50,
			HistoryKeep:           30,
			Compaction:            "slide",
			ImageRequestTTLMin:    5,
			ReplyDelayMaxMs:       0,
			InboundWorkers:        8,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv lets deployment secrets override whatever the file says.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		cfg.Discord.Token = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("BRAVE_API_KEY"); v != "" {
		cfg.Search.APIKey = v
	}
	if v := os.Getenv("TENOR_API_KEY"); v != "" {
		cfg.GIF.APIKey = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
}
