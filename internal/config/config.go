package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "UTC"
	configPathEnv    = "NEWSDIGEST_CONFIG"
	logLevelEnv      = "LOG_LEVEL"
	databaseDSNEnv   = "DATABASE_DSN"
	openAIAPIKeyEnv  = "OPENAI_API_KEY"
	openAIModelEnv   = "OPENAI_MODEL"
	newsAPIKeyEnv    = "NEWS_API_KEY"
	sendGridKeyEnv   = "SENDGRID_API_KEY"
	emailFromEnv     = "EMAIL_FROM"
	redisAddrEnv     = "REDIS_ADDR"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv  = "TELEGRAM_CHAT_ID"
	otlpEndpointEnv  = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig        `yaml:"logging"`
	Database      DatabaseConfig       `yaml:"database"`
	Corpus        CorpusConfig         `yaml:"corpus"`
	OpenAI        OpenAIConfig         `yaml:"openai"`
	NewsAPI       NewsAPIConfig        `yaml:"newsapi"`
	Fetch         FetchConfig          `yaml:"fetch"`
	Email         EmailConfig          `yaml:"email"`
	Scheduler     SchedulerConfig      `yaml:"scheduler"`
	Server        ServerConfig         `yaml:"server"`
	Sessions      SessionConfig        `yaml:"sessions"`
	Redis         RedisConfig          `yaml:"redis"`
	Telegram      TelegramConfig       `yaml:"telegram"`
	Tracing       TracingConfig        `yaml:"tracing"`
	Batch         BatchConfig          `yaml:"batch"`
	Sources       []string             `yaml:"sources"`
	Subscriptions []SubscriptionConfig `yaml:"subscriptions"`
}

// LoggingConfig selects slog level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int    `yaml:"maxConns"`
}

// CorpusConfig describes the headline similarity-search collection.
type CorpusConfig struct {
	Table        string        `yaml:"table"`
	Dimensions   int           `yaml:"dimensions"`
	TopK         int           `yaml:"topK"`
	QueryTimeout time.Duration `yaml:"queryTimeout"`
}

// OpenAIConfig defines how to contact the chat and embedding APIs.
type OpenAIConfig struct {
	BaseURL        string        `yaml:"baseUrl"`
	Model          string        `yaml:"model"`
	EmbeddingModel string        `yaml:"embeddingModel"`
	APIKey         string        `yaml:"apiKey"`
	Timeout        time.Duration `yaml:"timeout"`
}

// NewsAPIConfig points at the daily headline snapshot provider.
type NewsAPIConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
	Country  string `yaml:"country"`
	Language string `yaml:"language"`
	PageSize int    `yaml:"pageSize"`
}

// FetchConfig bounds article retrieval.
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	MaxChars  int           `yaml:"maxChars"`
	MaxBytes  int64         `yaml:"maxBytes"`
	UserAgent string        `yaml:"userAgent"`
}

// EmailConfig wires the outbound email provider.
type EmailConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"apiKey"`
	From     string        `yaml:"from"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SchedulerConfig defines when recurring jobs run.
type SchedulerConfig struct {
	RefreshCron string         `yaml:"refreshCron"`
	DigestCron  string         `yaml:"digestCron"`
	Timezone    string         `yaml:"timezone"`
	location    *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// ServerConfig holds HTTP entry point settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RunTimeout      time.Duration `yaml:"runTimeout"`
	SubmitRate      float64       `yaml:"submitRate"`
	SubmitBurst     int           `yaml:"submitBurst"`
}

// SessionConfig controls login session lifetime.
type SessionConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	Capacity int           `yaml:"capacity"`
}

// RedisConfig switches sessions to Redis when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TelegramConfig wires operator alerts.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// TracingConfig enables OTLP span export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"serviceName"`
}

// BatchConfig limits concurrent subscriber runs.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// SubscriptionConfig is one scheduled digest recipient.
type SubscriptionConfig struct {
	Email       string `yaml:"email"`
	Preferences string `yaml:"preferences"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return LoadFrom(os.Getenv(configPathEnv))
}

// LoadFrom is Load with an explicit config file path; empty means defaults only.
func LoadFrom(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		fileCfg, err := ReadFile(path)
		if err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		} else {
			cfg = mergeConfig(cfg, fileCfg)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

// ReadFile parses a YAML config file without applying defaults.
func ReadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return fileCfg, nil
}

// Requirement names a capability a command needs credentials for.
type Requirement int

const (
	NeedDatabase Requirement = iota
	NeedModel
	NeedNews
	NeedEmail
)

// Validate reports every missing setting for the given requirements.
func (c Config) Validate(reqs ...Requirement) error {
	var errs []error
	for _, r := range reqs {
		switch r {
		case NeedDatabase:
			if c.Database.DSN == "" {
				errs = append(errs, fmt.Errorf("%s is not set", databaseDSNEnv))
			}
		case NeedModel:
			if c.OpenAI.APIKey == "" {
				errs = append(errs, fmt.Errorf("%s is not set", openAIAPIKeyEnv))
			}
		case NeedNews:
			if c.NewsAPI.APIKey == "" {
				errs = append(errs, fmt.Errorf("%s is not set", newsAPIKeyEnv))
			}
		case NeedEmail:
			if c.Email.APIKey == "" {
				errs = append(errs, fmt.Errorf("%s is not set", sendGridKeyEnv))
			}
			if c.Email.From == "" {
				errs = append(errs, fmt.Errorf("%s is not set", emailFromEnv))
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}

	if v := os.Getenv(openAIModelEnv); v != "" {
		c.OpenAI.Model = v
	}

	if v := os.Getenv(newsAPIKeyEnv); v != "" {
		c.NewsAPI.APIKey = v
	}

	if v := os.Getenv(sendGridKeyEnv); v != "" {
		c.Email.APIKey = v
	}

	if v := os.Getenv(emailFromEnv); v != "" {
		c.Email.From = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Redis.Addr = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Telegram.ChatID = v
	}

	if v := os.Getenv(otlpEndpointEnv); v != "" {
		c.Tracing.Endpoint = v
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
		tz = defaultTimezone
	}
	c.Scheduler.Timezone = tz
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}
	if override.Database.MaxConns > 0 {
		base.Database.MaxConns = override.Database.MaxConns
	}

	if override.Corpus.Table != "" {
		base.Corpus.Table = override.Corpus.Table
	}
	if override.Corpus.Dimensions > 0 {
		base.Corpus.Dimensions = override.Corpus.Dimensions
	}
	if override.Corpus.TopK > 0 {
		base.Corpus.TopK = override.Corpus.TopK
	}
	if override.Corpus.QueryTimeout > 0 {
		base.Corpus.QueryTimeout = override.Corpus.QueryTimeout
	}

	if override.OpenAI.BaseURL != "" {
		base.OpenAI.BaseURL = strings.TrimRight(override.OpenAI.BaseURL, "/")
	}
	if override.OpenAI.Model != "" {
		base.OpenAI.Model = override.OpenAI.Model
	}
	if override.OpenAI.EmbeddingModel != "" {
		base.OpenAI.EmbeddingModel = override.OpenAI.EmbeddingModel
	}
	if override.OpenAI.APIKey != "" {
		base.OpenAI.APIKey = override.OpenAI.APIKey
	}
	if override.OpenAI.Timeout > 0 {
		base.OpenAI.Timeout = override.OpenAI.Timeout
	}

	if override.NewsAPI.Endpoint != "" {
		base.NewsAPI.Endpoint = override.NewsAPI.Endpoint
	}
	if override.NewsAPI.APIKey != "" {
		base.NewsAPI.APIKey = override.NewsAPI.APIKey
	}
	if override.NewsAPI.Country != "" {
		base.NewsAPI.Country = override.NewsAPI.Country
	}
	if override.NewsAPI.Language != "" {
		base.NewsAPI.Language = override.NewsAPI.Language
	}
	if override.NewsAPI.PageSize > 0 {
		base.NewsAPI.PageSize = override.NewsAPI.PageSize
	}

	if override.Fetch.Timeout > 0 {
		base.Fetch.Timeout = override.Fetch.Timeout
	}
	if override.Fetch.MaxChars > 0 {
		base.Fetch.MaxChars = override.Fetch.MaxChars
	}
	if override.Fetch.MaxBytes > 0 {
		base.Fetch.MaxBytes = override.Fetch.MaxBytes
	}
	if override.Fetch.UserAgent != "" {
		base.Fetch.UserAgent = override.Fetch.UserAgent
	}

	if override.Email.Endpoint != "" {
		base.Email.Endpoint = override.Email.Endpoint
	}
	if override.Email.APIKey != "" {
		base.Email.APIKey = override.Email.APIKey
	}
	if override.Email.From != "" {
		base.Email.From = override.Email.From
	}
	if override.Email.Timeout > 0 {
		base.Email.Timeout = override.Email.Timeout
	}

	if override.Scheduler.RefreshCron != "" {
		base.Scheduler.RefreshCron = override.Scheduler.RefreshCron
	}
	if override.Scheduler.DigestCron != "" {
		base.Scheduler.DigestCron = override.Scheduler.DigestCron
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Server.ShutdownTimeout > 0 {
		base.Server.ShutdownTimeout = override.Server.ShutdownTimeout
	}
	if override.Server.RunTimeout > 0 {
		base.Server.RunTimeout = override.Server.RunTimeout
	}
	if override.Server.SubmitRate > 0 {
		base.Server.SubmitRate = override.Server.SubmitRate
	}
	if override.Server.SubmitBurst > 0 {
		base.Server.SubmitBurst = override.Server.SubmitBurst
	}

	if override.Sessions.TTL > 0 {
		base.Sessions.TTL = override.Sessions.TTL
	}
	if override.Sessions.Capacity > 0 {
		base.Sessions.Capacity = override.Sessions.Capacity
	}

	if override.Redis.Addr != "" {
		base.Redis = override.Redis
	}

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.ChatID != "" {
		base.Telegram.ChatID = override.Telegram.ChatID
	}

	if override.Tracing.Endpoint != "" {
		base.Tracing.Endpoint = override.Tracing.Endpoint
	}
	if override.Tracing.ServiceName != "" {
		base.Tracing.ServiceName = override.Tracing.ServiceName
	}

	if override.Batch.Concurrency > 0 {
		base.Batch.Concurrency = override.Batch.Concurrency
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}
	if len(override.Subscriptions) > 0 {
		base.Subscriptions = override.Subscriptions
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{DSN: "", MaxConns: 10},
		Corpus: CorpusConfig{
			Table:        "headlines",
			Dimensions:   3072,
			TopK:         5,
			QueryTimeout: 15 * time.Second,
		},
		OpenAI: OpenAIConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4.1",
			EmbeddingModel: "text-embedding-3-large",
			Timeout:        120 * time.Second,
		},
		NewsAPI: NewsAPIConfig{
			Endpoint: "https://newsapi.org/v2/top-headlines",
			Country:  "us",
			Language: "en",
			PageSize: 100,
		},
		Fetch: FetchConfig{
			Timeout:   30 * time.Second,
			MaxChars:  12000,
			MaxBytes:  2 << 20,
			UserAgent: "NewsDigest/1.0",
		},
		Email: EmailConfig{
			Endpoint: "https://api.sendgrid.com/v3/mail/send",
			Timeout:  20 * time.Second,
		},
		Scheduler: SchedulerConfig{
			RefreshCron: "0 5 * * *",
			DigestCron:  "0 7 * * *",
			Timezone:    defaultTimezone,
			location:    tz,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			RunTimeout:      10 * time.Minute,
			SubmitRate:      0.1,
			SubmitBurst:     3,
		},
		Sessions: SessionConfig{TTL: 24 * time.Hour, Capacity: 10000},
		Tracing:  TracingConfig{ServiceName: "newsdigest"},
		Batch:    BatchConfig{Concurrency: 4},
		Sources:  []string{"newsapi"},
	}
}
