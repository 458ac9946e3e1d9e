package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func TestProgressConfigRetryDefaults(t *testing.T) {
	tests := []struct {
		name      string
		retry     *RetryConfig
		wantMax   int
		wantBase  time.Duration
		wantDelay time.Duration
	}{
		{"nil retry", nil, 3, 100 * time.Millisecond, 5 * time.Second},
		{"negative retries", &RetryConfig{MaxRetries: -1}, 3, 100 * time.Millisecond, 5 * time.Second},
		{"disabled", &RetryConfig{MaxRetries: 0}, 0, 100 * time.Millisecond, 5 * time.Second},
		{"custom", &RetryConfig{MaxRetries: 5, BaseDelay: "1s", MaxDelay: "1m"}, 5, time.Second, time.Minute},
		{"invalid delays", &RetryConfig{MaxRetries: 1, BaseDelay: "soon", MaxDelay: "later"}, 1, 100 * time.Millisecond, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ProgressConfig{Retry: tt.retry}
			if got := cfg.GetRetryMaxRetries(); got != tt.wantMax {
				t.Errorf("GetRetryMaxRetries() = %d, want %d", got, tt.wantMax)
			}
			if got := cfg.GetRetryBaseDelay(); got != tt.wantBase {
				t.Errorf("GetRetryBaseDelay() = %v, want %v", got, tt.wantBase)
			}
			if got := cfg.GetRetryMaxDelay(); got != tt.wantDelay {
				t.Errorf("GetRetryMaxDelay() = %v, want %v", got, tt.wantDelay)
			}
		})
	}
}

func TestProgressConfigGetDSN(t *testing.T) {
	t.Setenv("TEST_PG_HOST", "db.internal")
	cfg := ProgressConfig{DSN: "postgres://${TEST_PG_HOST}/lessons"}
	if got := cfg.GetDSN(); got != "postgres://db.internal/lessons" {
		t.Errorf("GetDSN() = %q", got)
	}
	if got := (ProgressConfig{}).GetDriver(); got != "memory" {
		t.Errorf("GetDriver() = %q, want memory", got)
	}
}

func TestInteractionConfigDurations(t *testing.T) {
	var zero InteractionConfig
	if got := zero.GetAnimationDuration(); got != 300*time.Millisecond {
		t.Errorf("GetAnimationDuration() = %v", got)
	}
	if got := zero.GetRevealDelay(); got != 10*time.Millisecond {
		t.Errorf("GetRevealDelay() = %v", got)
	}
	if got := zero.GetBlinkInterval(); got != 200*time.Millisecond {
		t.Errorf("GetBlinkInterval() = %v", got)
	}

	custom := InteractionConfig{AnimationDuration: "1s", RevealDelay: "0s", BlinkInterval: "50ms"}
	if got := custom.GetAnimationDuration(); got != time.Second {
		t.Errorf("GetAnimationDuration() = %v", got)
	}
	if got := custom.GetRevealDelay(); got != 0 {
		t.Errorf("GetRevealDelay() = %v", got)
	}
	if got := custom.GetBlinkInterval(); got != 50*time.Millisecond {
		t.Errorf("GetBlinkInterval() = %v", got)
	}
}

func TestCacheConfigGetTTL(t *testing.T) {
	tests := []struct {
		ttl  string
		want time.Duration
	}{
		{"", 10 * time.Minute},
		{"0", 0},
		{"1h", time.Hour},
		{"bogus", 10 * time.Minute},
	}
	for _, tt := range tests {
		if got := (CacheConfig{TTL: tt.ttl}).GetTTL(); got != tt.want {
			t.Errorf("GetTTL(%q) = %v, want %v", tt.ttl, got, tt.want)
		}
	}
}

func TestAPIConfigNilSafe(t *testing.T) {
	var api *APIConfig
	if api.GetCORSOrigins() != nil {
		t.Error("expected nil origins")
	}
	if got := api.GetRateLimitRPS(); got != 10 {
		t.Errorf("GetRateLimitRPS() = %v, want 10", got)
	}
	if got := api.GetRateLimitBurst(); got != 20 {
		t.Errorf("GetRateLimitBurst() = %v, want 20", got)
	}

	api = &APIConfig{RateLimit: &RateLimitConfig{RequestsPerSecond: 2, Burst: 4}, CORS: &CORSConfig{Origins: []string{"*"}}}
	if got := api.GetRateLimitRPS(); got != 2 {
		t.Errorf("GetRateLimitRPS() = %v, want 2", got)
	}
	if got := api.GetRateLimitBurst(); got != 4 {
		t.Errorf("GetRateLimitBurst() = %v, want 4", got)
	}
	if got := api.GetCORSOrigins(); len(got) != 1 || got[0] != "*" {
		t.Errorf("GetCORSOrigins() = %v", got)
	}
}

func TestIsIgnored(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		path string
		want bool
	}{
		{"drafts/wip.json", true},
		{"drafts/deep/wip.json", true},
		{"_scratch.yaml", true},
		{"basics/_hidden.json", true},
		{"basics/html.json", false},
		{"html.json", false},
	}
	for _, tt := range tests {
		if got := cfg.IsIgnored(tt.path); got != tt.want {
			t.Errorf("IsIgnored(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(c *Config)
		errorMsg string
	}{
		{name: "defaults", modify: func(c *Config) {}},
		{name: "bad port", modify: func(c *Config) { c.Server.Port = 70000 }, errorMsg: "server.port"},
		{name: "bad validation mode", modify: func(c *Config) { c.Lessons.Validation = "loud" }, errorMsg: "lessons.validation"},
		{name: "bad driver", modify: func(c *Config) { c.Progress.Driver = "mongo" }, errorMsg: "progress.driver"},
		{name: "sqlite without dsn", modify: func(c *Config) { c.Progress.Driver = "sqlite" }, errorMsg: "progress.dsn"},
		{name: "sqlite with dsn", modify: func(c *Config) { c.Progress.Driver = "sqlite"; c.Progress.DSN = "progress.db" }},
		{name: "bad duration", modify: func(c *Config) { c.Interaction.AnimationDuration = "fast" }, errorMsg: "interaction.animation_duration"},
		{name: "negative duration", modify: func(c *Config) { c.Cache.TTL = "-1s" }, errorMsg: "cache.ttl"},
		{name: "negative blinks", modify: func(c *Config) { c.Interaction.BlinkTimes = -2 }, errorMsg: "interaction.blink_times"},
		{name: "bad log level", modify: func(c *Config) { c.Log.Level = "chatty" }, errorMsg: "log.level"},
		{name: "bad ignore pattern", modify: func(c *Config) { c.Lessons.Ignore = []string{"[oops"} }, errorMsg: "lessons.ignore[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.errorMsg)
			}
		})
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFromDir() error = %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Lessons.Validation != "warn" || !cfg.Features.HotReload {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yml := `title: My Course
server:
  port: 9000
lessons:
  validation: strict
progress:
  driver: sqlite
  dsn: progress.db
interaction:
  placeholder: Pick a line
features:
  hot_reload: false
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir() error = %v", err)
	}
	if cfg.Title != "My Course" {
		t.Errorf("Title = %q", cfg.Title)
	}
	if cfg.Server.Port != 9000 || cfg.Server.Host != "localhost" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Lessons.Validation != "strict" {
		t.Errorf("Validation = %q", cfg.Lessons.Validation)
	}
	if cfg.Progress.GetDriver() != "sqlite" || cfg.Progress.DSN != "progress.db" {
		t.Errorf("Progress = %+v", cfg.Progress)
	}
	if cfg.Interaction.Placeholder != "Pick a line" {
		t.Errorf("Placeholder = %q", cfg.Interaction.Placeholder)
	}
	if cfg.Features.HotReload {
		t.Error("expected hot reload to be disabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadFS(t *testing.T) {
	cfg, err := LoadFS(fstest.MapFS{})
	if err != nil {
		t.Fatalf("LoadFS() error = %v", err)
	}
	if cfg.Title != DefaultConfig().Title {
		t.Errorf("Title = %q, want default", cfg.Title)
	}

	cfg, err = LoadFS(fstest.MapFS{FileName: {Data: []byte("title: Embedded\n")}})
	if err != nil {
		t.Fatalf("LoadFS() error = %v", err)
	}
	if cfg.Title != "Embedded" || cfg.Server.Port != 8080 {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("Load() error = %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := DefaultConfig()
	cfg.Title = "Saved"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Title != "Saved" {
		t.Errorf("Title = %q", loaded.Title)
	}
}
