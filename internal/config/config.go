// Package config loads settings from flags and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

const (
	DigestPlain      = "plain"
	DigestSummarized = "summarized"
)

// ErrHelp is returned when --help was requested. The usage text follows it
// in the error message.
var ErrHelp = errors.New("help requested")

type rawCfg struct {
	// Telegram
	TelegramToken  string        `long:"telegram-token" env:"TELEGRAM_BOT_TOKEN" description:"Telegram bot token (required)"`
	TelegramChatID string        `long:"telegram-chat-id" env:"TELEGRAM_CHAT_ID" description:"Chat that receives digests and may send commands (required)"`
	TelegramAPIURL string        `long:"telegram-api-url" env:"TELEGRAM_API_URL" default:"https://api.telegram.org" description:"Telegram Bot API base URL"`
	SendInterval   time.Duration `long:"send-interval" env:"SEND_INTERVAL" default:"1s" description:"Minimum gap between Telegram messages"`
	UpdatesTimeout int           `long:"updates-timeout" env:"UPDATES_TIMEOUT" default:"30" description:"getUpdates long-poll timeout in seconds"`
	ChunkSize      int           `long:"chunk-size" env:"MESSAGE_CHUNK_SIZE" default:"3800" description:"Maximum characters per Telegram message"`

	// Storage
	CompaniesPath string `long:"companies" env:"COMPANIES_JSON" default:"company_watchlist_unique.json" description:"Watchlist JSON file"`
	StatePath     string `long:"state" env:"TELEGRAM_STATE_JSON" default:"data/telegram_state.json" description:"Run state JSON file"`
	RulesPath     string `long:"rules" env:"RULES_YAML" description:"Classifier rules YAML (built-in rules when empty)"`

	// Feeds and filtering
	NewsLang         string        `long:"lang" env:"NEWS_LANG" default:"en" description:"Google News language"`
	NewsGeo          string        `long:"geo" env:"NEWS_GEO" description:"Google News region, e.g. US, GB"`
	LookbackHours    int           `long:"lookback-hours" env:"LOOKBACK_HOURS" default:"48" description:"Ignore entries older than this"`
	MaxPerCompany    int           `long:"max-per-company" env:"MAX_PER_COMPANY" default:"3" description:"Items kept per company"`
	BroadMode        string        `long:"broad-mode" env:"BROAD_MODE" default:"0" description:"Initial filtering mode before /broad or /strict is used (1 = broad)"`
	FetchConcurrency int           `long:"fetch-concurrency" env:"FETCH_CONCURRENCY" default:"4" description:"Feeds fetched in parallel"`
	FetchTimeout     time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"20s" description:"HTTP timeout per feed"`

	// Commands
	EnableCommands string `long:"enable-commands" env:"ENABLE_COMMANDS" default:"1" description:"Process chat commands before the digest (1/0)"`
	CommandsOnly   string `long:"commands-only" env:"COMMANDS_ONLY" default:"0" description:"Only send a digest when /update was received (1/0)"`

	// Digest
	DigestMode      string `long:"digest-mode" env:"DIGEST_MODE" default:"plain" description:"plain or summarized"`
	LLMProvider     string `long:"llm-provider" env:"LLM_PROVIDER" default:"gemini" description:"gemini, anthropic or openai"`
	LLMModel        string `long:"llm-model" env:"LLM_MODEL" description:"Model override for the provider"`
	GeminiAPIKey    string `long:"gemini-api-key" env:"GEMINI_API_KEY" description:"Gemini API key"`
	AnthropicAPIKey string `long:"anthropic-api-key" env:"ANTHROPIC_API_KEY" description:"Anthropic API key"`
	OpenAIAPIKey    string `long:"openai-api-key" env:"OPENAI_API_KEY" description:"OpenAI API key"`

	// Runtime
	RunInterval       time.Duration `long:"run-interval" env:"RUN_INTERVAL" default:"0" description:"Repeat the pass at this period (0 = run once)"`
	MonitoringEnabled string        `long:"monitoring" env:"ENABLE_HTTP_MONITORING" default:"0" description:"Serve /health and /metrics (1/0)"`
	MonitoringPort    string        `long:"monitoring-port" env:"MONITORING_PORT" default:"8080" description:"Monitoring server port"`
	LogLevel          string        `long:"log-level" env:"LOG_LEVEL" default:"info" description:"debug, info, warn or error"`
	Debug             string        `long:"debug" env:"DEBUG" default:"false" description:"Force debug logging"`
}

type Config struct {
	// Telegram settings
	TelegramToken  string
	TelegramChatID string
	TelegramAPIURL string
	SendInterval   time.Duration
	UpdatesTimeout int
	ChunkSize      int

	// Storage
	CompaniesPath string
	StatePath     string
	RulesPath     string

	// Feeds and filtering
	NewsLang         string
	NewsGeo          string
	LookbackHours    int
	MaxPerCompany    int
	BroadMode        bool
	FetchConcurrency int
	FetchTimeout     time.Duration

	// Commands
	EnableCommands bool
	CommandsOnly   bool

	// Digest
	DigestMode  string
	LLMProvider string
	LLMModel    string
	LLMAPIKey   string

	// Runtime
	RunInterval       time.Duration
	MonitoringEnabled bool
	MonitoringPort    string
	LogLevel          string
}

// Load reads the process arguments and environment.
func Load() (*Config, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs parses args and the environment and validates the result.
func LoadArgs(args []string) (*Config, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, fmt.Errorf("%w\n%s", ErrHelp, flagsErr.Message)
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Config{
		TelegramToken:     strings.TrimSpace(raw.TelegramToken),
		TelegramChatID:    strings.TrimSpace(raw.TelegramChatID),
		TelegramAPIURL:    strings.TrimRight(raw.TelegramAPIURL, "/"),
		SendInterval:      raw.SendInterval,
		UpdatesTimeout:    raw.UpdatesTimeout,
		ChunkSize:         raw.ChunkSize,
		CompaniesPath:     raw.CompaniesPath,
		StatePath:         raw.StatePath,
		RulesPath:         raw.RulesPath,
		NewsLang:          raw.NewsLang,
		NewsGeo:           raw.NewsGeo,
		LookbackHours:     raw.LookbackHours,
		MaxPerCompany:     raw.MaxPerCompany,
		BroadMode:         enabled(raw.BroadMode),
		FetchConcurrency:  raw.FetchConcurrency,
		FetchTimeout:      raw.FetchTimeout,
		EnableCommands:    enabled(raw.EnableCommands),
		CommandsOnly:      enabled(raw.CommandsOnly),
		DigestMode:        strings.ToLower(raw.DigestMode),
		LLMProvider:       strings.ToLower(raw.LLMProvider),
		LLMModel:          raw.LLMModel,
		RunInterval:       raw.RunInterval,
		MonitoringEnabled: enabled(raw.MonitoringEnabled),
		MonitoringPort:    raw.MonitoringPort,
		LogLevel:          strings.ToLower(raw.LogLevel),
	}
	if enabled(raw.Debug) {
		cfg.LogLevel = "debug"
	}

	switch cfg.LLMProvider {
	case "gemini":
		cfg.LLMAPIKey = raw.GeminiAPIKey
	case "anthropic":
		cfg.LLMAPIKey = raw.AnthropicAPIKey
	case "openai":
		cfg.LLMAPIKey = raw.OpenAIAPIKey
	}

	return cfg, cfg.Validate()
}

// enabled accepts "1"/"0" switches as well as "true"/"false".
func enabled(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.TelegramChatID == "" {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	if c.LookbackHours <= 0 {
		return fmt.Errorf("LOOKBACK_HOURS must be positive, got %d", c.LookbackHours)
	}
	if c.MaxPerCompany <= 0 {
		return fmt.Errorf("MAX_PER_COMPANY must be positive, got %d", c.MaxPerCompany)
	}
	if c.ChunkSize <= 0 || c.ChunkSize > 4096 {
		return fmt.Errorf("MESSAGE_CHUNK_SIZE must be between 1 and 4096, got %d", c.ChunkSize)
	}
	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("FETCH_CONCURRENCY must be positive, got %d", c.FetchConcurrency)
	}
	if c.RunInterval < 0 {
		return fmt.Errorf("RUN_INTERVAL must not be negative")
	}

	switch c.LLMProvider {
	case "gemini", "anthropic", "openai":
	default:
		return fmt.Errorf("LLM_PROVIDER must be 'gemini', 'anthropic' or 'openai'")
	}

	switch c.DigestMode {
	case DigestPlain:
	case DigestSummarized:
		if c.LLMAPIKey == "" {
			return fmt.Errorf("%s_API_KEY is required when DIGEST_MODE=summarized", strings.ToUpper(c.LLMProvider))
		}
	default:
		return fmt.Errorf("DIGEST_MODE must be 'plain' or 'summarized'")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error")
	}
	return nil
}
