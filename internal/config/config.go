package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/MimeLyc/subtitle-autosync/pkg/log"
)

// Config holds all application configuration. It is constructed once at
// startup and passed to component constructors; nothing reads the
// environment after that.
//
// Values come from an optional TOML file (AUTOSYNC_CONFIG) overridden by
// environment variables:
//
// Provider:
// - OS_API_KEY: OpenSubtitles API key (required)
// - OS_API_URL: API endpoint (default: https://api.opensubtitles.com/api/v1)
// - USER_AGENT: User agent sent to external services (default: SubtitleAutoSync v1.0)
// - PROVIDER_TIMEOUT: per-call search/link timeout (default: 10s)
//
// Translation:
// - TRANSLATE_API_KEY: translation engine API key (required in translate mode)
// - TRANSLATE_API_URL: OpenAI-compatible endpoint (default: https://openrouter.ai/api/v1)
// - TRANSLATE_MODEL: model name (default: openai/gpt-4o-mini)
// - TRANSLATE_TIMEOUT: per-call timeout (default: 60s)
// - TRANSLATE_BATCH_SIZE: cues per batch on the fallback path (default: 30)
// - TRANSLATE_BATCH_DELAY: pause between batches (default: 1s)
// - TRANSLATE_RETRY_BACKOFF: pause before the single batch retry (default: 2s)
//
// Alignment:
// - FFSUBSYNC_BIN: aligner binary (default: ffsubsync)
// - ALIGN_TIMEOUT: per-invocation timeout (default: 2m)
//
// Pipeline:
// - PIPELINE_MODE: auto | align | translate (default: auto)
// - REFERENCE_LANG: timing-reference search language (default: en)
// - TARGET_LANG: served language (default: pt-br)
// - TARGET_LANG_CODE: ISO 639-2 code advertised to players (default: pob)
// - MAX_VARIANTS: artifact variants per key, 1-3 (default: 3)
// - WORKER_COUNT: size of the acquisition worker pool (default: 2)
// - DOWNLOAD_TIMEOUT: per-download timeout (default: 30s)
// - TEMP_DIR: in-flight download workspace (default: <CACHE_DIR>/tmp)
// - SWEEP_CRON: stale temp sweep schedule (default: "@every 1h")
//
// Server:
// - LISTEN_ADDR: HTTP listen address (default: :7000)
// - PUBLIC_URL: external base URL for artifact links (default derived from request)
// - FETCH_TIMEOUT: delivery gate wait before serving a placeholder (default: 25s)
// - POLL_INTERVAL: delivery gate poll interval (default: 1s)
//
// Storage:
// - CACHE_DIR: artifact directory (default: ./subtitle_cache)
// - DB_PATH: sqlite artifact index (default: <CACHE_DIR>/autosync.db)
//
// System:
// - LOG_LEVEL: debug | info | warn | error (default: info)
// - LOG_FILE: log file path (default: stdout)
type Config struct {
	Provider  ProviderConfig  `toml:"provider"`
	Translate TranslateConfig `toml:"translate"`
	Align     AlignConfig     `toml:"align"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	System    SystemConfig    `toml:"system"`
}

type ProviderConfig struct {
	APIKey    string        `toml:"api_key"`
	APIURL    string        `toml:"api_url"`
	UserAgent string        `toml:"user_agent"`
	Timeout   time.Duration `toml:"timeout"`
}

type TranslateConfig struct {
	APIKey       string        `toml:"api_key"`
	APIURL       string        `toml:"api_url"`
	Model        string        `toml:"model"`
	Timeout      time.Duration `toml:"timeout"`
	BatchSize    int           `toml:"batch_size"`
	BatchDelay   time.Duration `toml:"batch_delay"`
	RetryBackoff time.Duration `toml:"retry_backoff"`
}

type AlignConfig struct {
	Binary  string        `toml:"binary"`
	Timeout time.Duration `toml:"timeout"`
}

type PipelineConfig struct {
	Mode            string        `toml:"mode"`
	ReferenceLang   string        `toml:"reference_lang"`
	TargetLang      string        `toml:"target_lang"`
	TargetLangCode  string        `toml:"target_lang_code"`
	MaxVariants     int           `toml:"max_variants"`
	WorkerCount     int           `toml:"worker_count"`
	DownloadTimeout time.Duration `toml:"download_timeout"`
	TempDir         string        `toml:"temp_dir"`
	SweepCron       string        `toml:"sweep_cron"`
}

type ServerConfig struct {
	ListenAddr   string        `toml:"listen_addr"`
	PublicURL    string        `toml:"public_url"`
	FetchTimeout time.Duration `toml:"fetch_timeout"`
	PollInterval time.Duration `toml:"poll_interval"`
}

type StorageConfig struct {
	CacheDir string `toml:"cache_dir"`
	DBPath   string `toml:"db_path"`
}

type SystemConfig struct {
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`
}

// Option is a function type for adjusting a Config after loading.
type Option func(*Config)

// NewFromEnv builds the configuration from the optional TOML file plus
// environment variables, environment winning.
func NewFromEnv(opts ...Option) (*Config, error) {
	config := defaults()

	if path := os.Getenv("AUTOSYNC_CONFIG"); path != "" {
		if err := applyFile(config, path); err != nil {
			return nil, err
		}
	}

	applyEnv(config)

	if config.Pipeline.TempDir == "" {
		config.Pipeline.TempDir = config.Storage.CacheDir + "/tmp"
	}
	if config.Storage.DBPath == "" {
		config.Storage.DBPath = config.Storage.CacheDir + "/autosync.db"
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func defaults() *Config {
	return &Config{
		Provider: ProviderConfig{
			APIURL:    "https://api.opensubtitles.com/api/v1",
			UserAgent: "SubtitleAutoSync v1.0",
			Timeout:   10 * time.Second,
		},
		Translate: TranslateConfig{
			APIURL:       "https://openrouter.ai/api/v1",
			Model:        "openai/gpt-4o-mini",
			Timeout:      60 * time.Second,
			BatchSize:    30,
			BatchDelay:   1 * time.Second,
			RetryBackoff: 2 * time.Second,
		},
		Align: AlignConfig{
			Binary:  "ffsubsync",
			Timeout: 2 * time.Minute,
		},
		Pipeline: PipelineConfig{
			Mode:            "auto",
			ReferenceLang:   "en",
			TargetLang:      "pt-br",
			TargetLangCode:  "pob",
			MaxVariants:     3,
			WorkerCount:     2,
			DownloadTimeout: 30 * time.Second,
			SweepCron:       "@every 1h",
		},
		Server: ServerConfig{
			ListenAddr:   ":7000",
			FetchTimeout: 25 * time.Second,
			PollInterval: 1 * time.Second,
		},
		Storage: StorageConfig{
			CacheDir: "./subtitle_cache",
		},
		System: SystemConfig{
			LogLevel: "info",
		},
	}
}

func applyFile(config *Config, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(content, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	log.Info("Loaded config file %s", path)
	return nil
}

func applyEnv(c *Config) {
	c.Provider.APIKey = getEnvString("OS_API_KEY", c.Provider.APIKey)
	c.Provider.APIURL = getEnvString("OS_API_URL", c.Provider.APIURL)
	c.Provider.UserAgent = getEnvString("USER_AGENT", c.Provider.UserAgent)
	c.Provider.Timeout = getEnvDuration("PROVIDER_TIMEOUT", c.Provider.Timeout)

	c.Translate.APIKey = getEnvString("TRANSLATE_API_KEY", c.Translate.APIKey)
	c.Translate.APIURL = getEnvString("TRANSLATE_API_URL", c.Translate.APIURL)
	c.Translate.Model = getEnvString("TRANSLATE_MODEL", c.Translate.Model)
	c.Translate.Timeout = getEnvDuration("TRANSLATE_TIMEOUT", c.Translate.Timeout)
	c.Translate.BatchSize = getEnvInt("TRANSLATE_BATCH_SIZE", c.Translate.BatchSize)
	c.Translate.BatchDelay = getEnvDuration("TRANSLATE_BATCH_DELAY", c.Translate.BatchDelay)
	c.Translate.RetryBackoff = getEnvDuration("TRANSLATE_RETRY_BACKOFF", c.Translate.RetryBackoff)

	c.Align.Binary = getEnvString("FFSUBSYNC_BIN", c.Align.Binary)
	c.Align.Timeout = getEnvDuration("ALIGN_TIMEOUT", c.Align.Timeout)

	c.Pipeline.Mode = getEnvString("PIPELINE_MODE", c.Pipeline.Mode)
	c.Pipeline.ReferenceLang = getEnvString("REFERENCE_LANG", c.Pipeline.ReferenceLang)
	c.Pipeline.TargetLang = getEnvString("TARGET_LANG", c.Pipeline.TargetLang)
	c.Pipeline.TargetLangCode = getEnvString("TARGET_LANG_CODE", c.Pipeline.TargetLangCode)
	c.Pipeline.MaxVariants = getEnvInt("MAX_VARIANTS", c.Pipeline.MaxVariants)
	c.Pipeline.WorkerCount = getEnvInt("WORKER_COUNT", c.Pipeline.WorkerCount)
	c.Pipeline.DownloadTimeout = getEnvDuration("DOWNLOAD_TIMEOUT", c.Pipeline.DownloadTimeout)
	c.Pipeline.TempDir = getEnvString("TEMP_DIR", c.Pipeline.TempDir)
	c.Pipeline.SweepCron = getEnvString("SWEEP_CRON", c.Pipeline.SweepCron)

	c.Server.ListenAddr = getEnvString("LISTEN_ADDR", c.Server.ListenAddr)
	c.Server.PublicURL = getEnvString("PUBLIC_URL", c.Server.PublicURL)
	c.Server.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", c.Server.FetchTimeout)
	c.Server.PollInterval = getEnvDuration("POLL_INTERVAL", c.Server.PollInterval)

	c.Storage.CacheDir = getEnvString("CACHE_DIR", c.Storage.CacheDir)
	c.Storage.DBPath = getEnvString("DB_PATH", c.Storage.DBPath)

	c.System.LogLevel = getEnvString("LOG_LEVEL", c.System.LogLevel)
	c.System.LogFile = getEnvString("LOG_FILE", c.System.LogFile)
}

// validate checks that required configuration is properly set.
func (c *Config) validate() error {
	if c.Provider.APIKey == "" {
		return fmt.Errorf("OS_API_KEY is required")
	}
	switch c.Pipeline.Mode {
	case "auto", "align":
	case "translate":
		if c.Translate.APIKey == "" {
			return fmt.Errorf("TRANSLATE_API_KEY is required in translate mode")
		}
	default:
		return fmt.Errorf("invalid PIPELINE_MODE %q", c.Pipeline.Mode)
	}
	if c.Pipeline.MaxVariants < 1 || c.Pipeline.MaxVariants > 3 {
		return fmt.Errorf("MAX_VARIANTS must be between 1 and 3")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value (e.g. "30s") from environment
// variables with default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
