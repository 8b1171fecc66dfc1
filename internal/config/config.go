package config

import (
	"strings"
	"time"

	"gtranslate-go/internal/constants"
)

// Config carries all runtime configuration. Values come from environment
// variables with an optional YAML overlay file on top (CONFIG_FILE).
type Config struct {
	Port    string `yaml:"port"`
	Debug   bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`

	MaxRetries               int `yaml:"max_retries"`
	CacheDurationSec         int `yaml:"cache_duration_seconds"`
	TranslationCacheTTLSec   int `yaml:"translation_cache_ttl"`
	KeyCacheSize             int `yaml:"key_cache_size"`
	RequestTimeoutMS         int `yaml:"request_timeout_ms"`
	ParallelTranslationLimit int `yaml:"parallel_translation_limit"`
	BatchDelayMS             int `yaml:"batch_delay_ms"`
	RequestDedupTTLMS        int `yaml:"request_dedup_ttl_ms"`

	GeminiModel       string `yaml:"gemini_model"`
	GeminiBaseURL     string `yaml:"gemini_base_url"`
	GeminiAPIVersion  string `yaml:"gemini_api_version"`
	SystemInstruction string `yaml:"translation_system_instruction"`

	RateLimitEnabled bool `yaml:"rate_limit_enabled"`
	RateLimitRPS     int  `yaml:"rate_limit_rps"`
	RateLimitBurst   int  `yaml:"rate_limit_burst"`

	ManagementKey        string `yaml:"management_key"`
	AuthSweepIntervalSec int    `yaml:"auth_sweep_interval_seconds"`

	CircuitFailureThreshold int `yaml:"circuit_failure_threshold"`
	CircuitSuccessThreshold int `yaml:"circuit_success_threshold"`
	CircuitTimeoutSec       int `yaml:"circuit_timeout_seconds"`
}

// Load builds the configuration from environment variables and, when
// CONFIG_FILE points at a readable YAML file, overlays it on top.
func Load() *Config {
	cfg := loadFromEnv()
	if path := getenv("CONFIG_FILE", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			// The file is optional; a broken overlay must not take the
			// gateway down.
			warnFileError(path, err)
		}
	}
	return cfg
}

func loadFromEnv() *Config {
	cfg := &Config{
		Port:     getenv("PORT", "8080"),
		Debug:    getenvBool("DEBUG", false),
		LogLevel: strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFile:  getenv("LOG_FILE", ""),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisPrefix:   getenv("REDIS_PREFIX", ""),

		MaxRetries:               constants.DefaultMaxRetries,
		CacheDurationSec:         int(constants.DefaultCredentialCacheTTL / time.Second),
		TranslationCacheTTLSec:   int(constants.DefaultTranslationCacheTTL / time.Second),
		KeyCacheSize:             constants.DefaultKeyCacheSize,
		RequestTimeoutMS:         int(constants.DefaultRequestTimeout / time.Millisecond),
		ParallelTranslationLimit: constants.DefaultParallelTranslationLimit,
		BatchDelayMS:             int(constants.DefaultBatchDelay / time.Millisecond),
		RequestDedupTTLMS:        int(constants.DefaultRequestDedupTTL / time.Millisecond),

		GeminiModel:       getenv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiBaseURL:     strings.TrimRight(getenv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"), "/"),
		GeminiAPIVersion:  getenv("GEMINI_API_VERSION", "v1beta"),
		SystemInstruction: getenv("TRANSLATION_SYSTEM_INSTRUCTION", defaultSystemInstruction),

		RateLimitEnabled: getenvBool("RATE_LIMIT_ENABLED", false),
		RateLimitRPS:     10,
		RateLimitBurst:   20,

		ManagementKey:        getenv("MANAGEMENT_KEY", ""),
		AuthSweepIntervalSec: 3600,

		CircuitFailureThreshold: constants.DefaultCircuitFailureThreshold,
		CircuitSuccessThreshold: constants.DefaultCircuitSuccessThreshold,
		CircuitTimeoutSec:       int(constants.DefaultCircuitTimeout / time.Second),
	}

	setIntFromEnv("REDIS_DB", func(n int) { cfg.RedisDB = n })
	setIntFromEnv("MAX_RETRIES", func(n int) { cfg.MaxRetries = n })
	setIntFromEnv("CACHE_DURATION_SECONDS", func(n int) { cfg.CacheDurationSec = n })
	setIntFromEnv("TRANSLATION_CACHE_TTL", func(n int) { cfg.TranslationCacheTTLSec = n })
	setIntFromEnv("KEY_CACHE_SIZE", func(n int) { cfg.KeyCacheSize = n })
	setIntFromEnv("REQUEST_TIMEOUT_MS", func(n int) { cfg.RequestTimeoutMS = n })
	setIntFromEnv("PARALLEL_TRANSLATION_LIMIT", func(n int) { cfg.ParallelTranslationLimit = n })
	setIntFromEnv("BATCH_DELAY_MS", func(n int) { cfg.BatchDelayMS = n })
	setIntFromEnv("REQUEST_DEDUP_TTL_MS", func(n int) { cfg.RequestDedupTTLMS = n })
	setIntFromEnv("RATE_LIMIT_RPS", func(n int) { cfg.RateLimitRPS = n })
	setIntFromEnv("RATE_LIMIT_BURST", func(n int) { cfg.RateLimitBurst = n })
	setIntFromEnv("AUTH_SWEEP_INTERVAL_SECONDS", func(n int) { cfg.AuthSweepIntervalSec = n })
	setIntFromEnv("CIRCUIT_FAILURE_THRESHOLD", func(n int) { cfg.CircuitFailureThreshold = n })
	setIntFromEnv("CIRCUIT_SUCCESS_THRESHOLD", func(n int) { cfg.CircuitSuccessThreshold = n })
	setIntFromEnv("CIRCUIT_TIMEOUT_SECONDS", func(n int) { cfg.CircuitTimeoutSec = n })

	return cfg
}

const defaultSystemInstruction = "You are a professional translation engine. " +
	"Translate the text exactly as requested and reply with the translation only, " +
	"without explanations, quotes, or additional commentary."

func (c *Config) CredentialCacheTTL() time.Duration {
	return time.Duration(c.CacheDurationSec) * time.Second
}

func (c *Config) TranslationCacheTTL() time.Duration {
	return time.Duration(c.TranslationCacheTTLSec) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

func (c *Config) RequestDedupTTL() time.Duration {
	return time.Duration(c.RequestDedupTTLMS) * time.Millisecond
}

func (c *Config) CircuitTimeout() time.Duration {
	return time.Duration(c.CircuitTimeoutSec) * time.Second
}

func (c *Config) AuthSweepInterval() time.Duration {
	return time.Duration(c.AuthSweepIntervalSec) * time.Second
}

// StoreConfigured reports whether the shared KV store is addressable.
func (c *Config) StoreConfigured() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}
