package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hay-kot/criterio"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in a lessons directory.
const FileName = "codelesson.yaml"

// Config represents the codelesson configuration
type Config struct {
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Server      ServerConfig      `yaml:"server"`
	Lessons     LessonsConfig     `yaml:"lessons"`
	Progress    ProgressConfig    `yaml:"progress"`
	Interaction InteractionConfig `yaml:"interaction"`
	Cache       CacheConfig       `yaml:"cache"`
	Features    FeaturesConfig    `yaml:"features"`
	API         *APIConfig        `yaml:"api,omitempty"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port  int    `yaml:"port"`
	Host  string `yaml:"host"`
	Debug bool   `yaml:"debug"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LessonsConfig controls lesson discovery and validation
type LessonsConfig struct {
	Validation string   `yaml:"validation"` // off, warn (default) or strict
	Ignore     []string `yaml:"ignore"`     // glob patterns relative to the lessons directory
}

// ProgressConfig selects where viewer positions are stored
type ProgressConfig struct {
	Driver string       `yaml:"driver"` // memory (default), sqlite or postgres
	DSN    string       `yaml:"dsn"`    // file path for sqlite, connection URL for postgres (env vars expanded)
	Retry  *RetryConfig `yaml:"retry,omitempty"`
}

// RetryConfig configures retries when opening the progress database
type RetryConfig struct {
	MaxRetries int    `yaml:"max_retries,omitempty"` // default: 3
	BaseDelay  string `yaml:"base_delay,omitempty"`  // default: 100ms
	MaxDelay   string `yaml:"max_delay,omitempty"`   // default: 5s
}

// InteractionConfig tunes the interaction engine and the description area
type InteractionConfig struct {
	AnimationDuration string `yaml:"animation_duration,omitempty"` // default: 300ms
	Easing            string `yaml:"easing,omitempty"`             // default: ease-in-out
	RevealDelay       string `yaml:"reveal_delay,omitempty"`       // default: 10ms
	BlinkInterval     string `yaml:"blink_interval,omitempty"`     // default: 200ms
	BlinkTimes        int    `yaml:"blink_times,omitempty"`        // default: 3
	Placeholder       string `yaml:"placeholder,omitempty"`
}

// CacheConfig configures the rendered step cache
type CacheConfig struct {
	TTL string `yaml:"ttl,omitempty"` // default: 10m, "0" disables expiry
}

// FeaturesConfig holds feature flags
type FeaturesConfig struct {
	HotReload bool `yaml:"hot_reload"`
}

// APIConfig holds JSON API configuration
type APIConfig struct {
	CORS      *CORSConfig      `yaml:"cors,omitempty"`
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// CORSConfig holds CORS configuration for the API
type CORSConfig struct {
	Origins []string `yaml:"origins,omitempty"`
}

// RateLimitConfig holds rate limiting configuration for the API
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"` // default: 10
	Burst             int     `yaml:"burst,omitempty"`               // default: 20
}

// LogConfig configures the structured logger
type LogConfig struct {
	Level string `yaml:"level,omitempty"` // debug, info (default), warn, error
	File  string `yaml:"file,omitempty"`  // default: stderr
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// GetDSN returns the DSN with environment variables expanded.
func (c ProgressConfig) GetDSN() string {
	return os.ExpandEnv(c.DSN)
}

// GetDriver returns the progress driver (default: memory).
func (c ProgressConfig) GetDriver() string {
	if c.Driver == "" {
		return "memory"
	}
	return c.Driver
}

// GetRetryMaxRetries returns the max retries (default: 3, set to 0 to disable retries)
func (c ProgressConfig) GetRetryMaxRetries() int {
	if c.Retry == nil || c.Retry.MaxRetries < 0 {
		return 3
	}
	return c.Retry.MaxRetries
}

// GetRetryBaseDelay returns the base delay (default: 100ms)
func (c ProgressConfig) GetRetryBaseDelay() time.Duration {
	if c.Retry == nil {
		return 100 * time.Millisecond
	}
	return parseDuration(c.Retry.BaseDelay, 100*time.Millisecond)
}

// GetRetryMaxDelay returns the max delay (default: 5s)
func (c ProgressConfig) GetRetryMaxDelay() time.Duration {
	if c.Retry == nil {
		return 5 * time.Second
	}
	return parseDuration(c.Retry.MaxDelay, 5*time.Second)
}

// GetAnimationDuration returns the show/hide duration (default: 300ms)
func (c InteractionConfig) GetAnimationDuration() time.Duration {
	return parseDuration(c.AnimationDuration, 300*time.Millisecond)
}

// GetRevealDelay returns the delay before a shown block settles (default: 10ms)
func (c InteractionConfig) GetRevealDelay() time.Duration {
	return parseDuration(c.RevealDelay, 10*time.Millisecond)
}

// GetBlinkInterval returns the blink toggle interval (default: 200ms)
func (c InteractionConfig) GetBlinkInterval() time.Duration {
	return parseDuration(c.BlinkInterval, 200*time.Millisecond)
}

// GetTTL returns the rendered step TTL (default: 10m, 0 = never expire)
func (c CacheConfig) GetTTL() time.Duration {
	return parseDuration(c.TTL, 10*time.Minute)
}

// GetCORSOrigins returns the configured CORS origins, or nil if not configured
func (c *APIConfig) GetCORSOrigins() []string {
	if c == nil || c.CORS == nil {
		return nil
	}
	return c.CORS.Origins
}

// GetRateLimitRPS returns the rate limit in requests per second (default: 10)
func (c *APIConfig) GetRateLimitRPS() float64 {
	if c == nil || c.RateLimit == nil || c.RateLimit.RequestsPerSecond <= 0 {
		return 10
	}
	return c.RateLimit.RequestsPerSecond
}

// GetRateLimitBurst returns the burst size (default: 20)
func (c *APIConfig) GetRateLimitBurst() int {
	if c == nil || c.RateLimit == nil || c.RateLimit.Burst <= 0 {
		return 20
	}
	return c.RateLimit.Burst
}

// IsIgnored reports whether a lesson path relative to the lessons
// directory matches one of the ignore globs.
func (c *Config) IsIgnored(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range c.Lessons.Ignore {
		if dir, ok := strings.CutSuffix(pattern, "/**"); ok && strings.HasPrefix(rel, dir+"/") {
			return true
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}

var (
	validationModes = []string{"off", "warn", "strict"}
	progressDrivers = []string{"memory", "sqlite", "postgres"}
	logLevels       = []string{"trace", "debug", "info", "warn", "error"}
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return criterio.ValidateStruct(
		validPort(c.Server.Port),
		criterio.Run("lessons.validation", c.Lessons.Validation, oneOf(validationModes...)),
		criterio.Run("progress.driver", c.Progress.GetDriver(), oneOf(progressDrivers...)),
		c.validateProgress(),
		c.validateDurations(),
		criterio.Run("log.level", c.Log.Level, oneOf(logLevels...)),
		c.validateIgnore(),
	)
}

func validPort(port int) error {
	if port < 0 || port > 65535 {
		return criterio.NewFieldErrors("server.port", fmt.Errorf("must be between 0 and 65535, got %d", port))
	}
	return nil
}

func oneOf(allowed ...string) func(string) error {
	return func(v string) error {
		if v == "" || slices.Contains(allowed, v) {
			return nil
		}
		return fmt.Errorf("must be one of %v, got %q", allowed, v)
	}
}

func (c *Config) validateProgress() error {
	if c.Progress.GetDriver() == "memory" {
		return nil
	}
	if c.Progress.GetDSN() == "" {
		return criterio.NewFieldErrors("progress.dsn", fmt.Errorf("required for driver %q", c.Progress.Driver))
	}
	return nil
}

func (c *Config) validateDurations() error {
	var errs criterio.FieldErrorsBuilder
	check := func(field, v string) {
		if v == "" {
			return
		}
		if d, err := time.ParseDuration(v); err != nil {
			errs = errs.Append(field, fmt.Errorf("invalid duration %q", v))
		} else if d < 0 {
			errs = errs.Append(field, fmt.Errorf("must not be negative"))
		}
	}
	check("interaction.animation_duration", c.Interaction.AnimationDuration)
	check("interaction.reveal_delay", c.Interaction.RevealDelay)
	check("interaction.blink_interval", c.Interaction.BlinkInterval)
	check("cache.ttl", c.Cache.TTL)
	if c.Progress.Retry != nil {
		check("progress.retry.base_delay", c.Progress.Retry.BaseDelay)
		check("progress.retry.max_delay", c.Progress.Retry.MaxDelay)
	}
	if c.Interaction.BlinkTimes < 0 {
		errs = errs.Append("interaction.blink_times", fmt.Errorf("must not be negative"))
	}
	return errs.ToError()
}

func (c *Config) validateIgnore() error {
	var errs criterio.FieldErrorsBuilder
	for i, pattern := range c.Lessons.Ignore {
		if _, err := filepath.Match(pattern, ""); err != nil {
			errs = errs.Append(fmt.Sprintf("lessons.ignore[%d]", i), fmt.Errorf("invalid pattern %q: %w", pattern, err))
		}
	}
	return errs.ToError()
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Title:       "Code Lessons",
		Description: "Step-by-step interactive code lessons",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Lessons: LessonsConfig{
			Validation: "warn",
			Ignore:     []string{"drafts/**", "_*"},
		},
		Progress: ProgressConfig{
			Driver: "memory",
		},
		Features: FeaturesConfig{
			HotReload: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file
// If the file doesn't exist, returns the default configuration
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration over the defaults.
func Parse(data []byte) (*Config, error) {
	config := DefaultConfig() // Start with defaults
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadFS loads codelesson.yaml from the root of fsys, falling back to
// defaults.
func LoadFS(fsys fs.FS) (*Config, error) {
	data, err := fs.ReadFile(fsys, FileName)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// LoadFromDir loads codelesson.yaml from dir, falling back to defaults.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Save writes the configuration to a YAML file
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
