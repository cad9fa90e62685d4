package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"SkeetShelf/internal/validation"
)

const (
	defaultTimezone = "UTC"

	configPathEnv        = "SKEETSHELF_CONFIG"
	databaseDriverEnv    = "DATABASE_DRIVER"
	databaseDSNEnv       = "DATABASE_DSN"
	huggingFaceTokenEnv  = "HUGGINGFACE_INFERENCE_TOKEN"
	blueskyHandleEnv     = "BLUESKY_HANDLE"
	blueskyPasswordEnv   = "BLUESKY_APP_PASSWORD"
	chatGPTAPIKeyEnv     = "CHATGPT_API_KEY"
	chatGPTModelEnv      = "CHATGPT_MODEL"
	telegramTokenEnv     = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv    = "TELEGRAM_CHAT_ID"
	logLevelEnv          = "LOG_LEVEL"
	actorUserIDEnv       = "SKEETSHELF_ACTOR_USER_ID"
	metricsAddrEnv       = "METRICS_ADDR"
	extractionBackendEnv = "EXTRACTION_BACKEND"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Source        SourceConfig       `yaml:"source"`
	HuggingFace   HuggingFaceConfig  `yaml:"huggingface"`
	Extraction    ExtractionConfig   `yaml:"extraction"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
	Metrics       MetricsConfig      `yaml:"metrics"`
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=postgres sqlite"`
	DSN    string `yaml:"dsn" validate:"required"`
}

// SchedulerConfig defines how often the autonomous run repeats. A zero
// interval means a single run.
type SchedulerConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// SourceConfig describes where posts come from.
type SourceConfig struct {
	Kind         string        `yaml:"kind" validate:"oneof=search jetstream"`
	Query        string        `yaml:"query" validate:"required"`
	Limit        int           `yaml:"limit" validate:"min=1,max=100"`
	PDS          string        `yaml:"pds"`
	Handle       string        `yaml:"handle"`
	AppPassword  string        `yaml:"appPassword"`
	JetstreamURL string        `yaml:"jetstreamUrl"`
	Window       time.Duration `yaml:"window"`
}

// HuggingFaceConfig wires the inference API used for both model capabilities.
type HuggingFaceConfig struct {
	BaseURL       string        `yaml:"baseUrl" validate:"required"`
	APIKey        string        `yaml:"apiKey"`
	ZeroShotModel string        `yaml:"zeroShotModel" validate:"required"`
	QAModel       string        `yaml:"qaModel" validate:"required"`
	Timeout       time.Duration `yaml:"timeout"`
}

// ExtractionConfig picks the question-answering backend.
type ExtractionConfig struct {
	Backend string `yaml:"backend" validate:"oneof=huggingface chatgpt"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// PipelineConfig carries the identity used by autonomous runs.
type PipelineConfig struct {
	ActorUserID int64 `yaml:"actorUserId" validate:"min=1"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig enables the Prometheus listener when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate checks the merged configuration.
func (c Config) Validate() error {
	return validation.Struct(c)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(huggingFaceTokenEnv); v != "" {
		c.HuggingFace.APIKey = v
	}

	if v := os.Getenv(blueskyHandleEnv); v != "" {
		c.Source.Handle = v
	}
	if v := os.Getenv(blueskyPasswordEnv); v != "" {
		c.Source.AppPassword = v
	}

	if v := os.Getenv(extractionBackendEnv); v != "" {
		c.Extraction.Backend = v
	}

	if v := os.Getenv(chatGPTAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
	}
	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(actorUserIDEnv); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Printf("config: invalid %s=%q: %v (keeping %d)", actorUserIDEnv, v, err, c.Pipeline.ActorUserID)
		} else {
			c.Pipeline.ActorUserID = id
		}
	}

	if v := os.Getenv(metricsAddrEnv); v != "" {
		c.Metrics.Addr = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Scheduler.Interval != 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Source.Kind != "" {
		base.Source.Kind = override.Source.Kind
	}
	if override.Source.Query != "" {
		base.Source.Query = override.Source.Query
	}
	if override.Source.Limit != 0 {
		base.Source.Limit = override.Source.Limit
	}
	if override.Source.PDS != "" {
		base.Source.PDS = override.Source.PDS
	}
	if override.Source.Handle != "" {
		base.Source.Handle = override.Source.Handle
	}
	if override.Source.AppPassword != "" {
		base.Source.AppPassword = override.Source.AppPassword
	}
	if override.Source.JetstreamURL != "" {
		base.Source.JetstreamURL = override.Source.JetstreamURL
	}
	if override.Source.Window != 0 {
		base.Source.Window = override.Source.Window
	}

	if override.HuggingFace.BaseURL != "" {
		base.HuggingFace.BaseURL = override.HuggingFace.BaseURL
	}
	if override.HuggingFace.APIKey != "" {
		base.HuggingFace.APIKey = override.HuggingFace.APIKey
	}
	if override.HuggingFace.ZeroShotModel != "" {
		base.HuggingFace.ZeroShotModel = override.HuggingFace.ZeroShotModel
	}
	if override.HuggingFace.QAModel != "" {
		base.HuggingFace.QAModel = override.HuggingFace.QAModel
	}
	if override.HuggingFace.Timeout != 0 {
		base.HuggingFace.Timeout = override.HuggingFace.Timeout
	}

	if override.Extraction.Backend != "" {
		base.Extraction.Backend = override.Extraction.Backend
	}

	if override.ChatGPT.Endpoint != "" {
		base.ChatGPT.Endpoint = override.ChatGPT.Endpoint
	}
	if override.ChatGPT.Model != "" {
		base.ChatGPT.Model = override.ChatGPT.Model
	}
	if override.ChatGPT.APIKey != "" {
		base.ChatGPT.APIKey = override.ChatGPT.APIKey
	}
	if override.ChatGPT.SystemPrompt != "" {
		base.ChatGPT.SystemPrompt = override.ChatGPT.SystemPrompt
	}

	if override.Pipeline.ActorUserID != 0 {
		base.Pipeline.ActorUserID = override.Pipeline.ActorUserID
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Metrics.Addr != "" {
		base.Metrics.Addr = override.Metrics.Addr
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database:  DatabaseConfig{Driver: "sqlite", DSN: "skeetshelf.db"},
		Scheduler: SchedulerConfig{Interval: 0, Timezone: defaultTimezone, location: tz},
		Source: SourceConfig{
			Kind:         "search",
			Query:        "booksky",
			Limit:        25,
			PDS:          "https://bsky.social",
			JetstreamURL: "wss://jetstream1.us-east.bsky.network/subscribe",
			Window:       time.Minute,
		},
		HuggingFace: HuggingFaceConfig{
			BaseURL:       "https://router.huggingface.co/hf-inference/models",
			ZeroShotModel: "facebook/bart-large-mnli",
			QAModel:       "deepset/roberta-base-squad2",
			Timeout:       30 * time.Second,
		},
		Extraction: ExtractionConfig{Backend: "huggingface"},
		ChatGPT: ChatGPTConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
		},
		Pipeline: PipelineConfig{ActorUserID: 1},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}
