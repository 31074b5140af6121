package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.LLM.APIKey != "${OPENROUTER_API_KEY}" {
		t.Error("expected openrouter API key placeholder")
	}
	if cfg.Embeddings.BatchSize != 16 || cfg.Embeddings.Concurrency != 5 {
		t.Errorf("embedding pool = %d/%d, want 16/5", cfg.Embeddings.BatchSize, cfg.Embeddings.Concurrency)
	}
	if cfg.Chunking.MaxTokens != 800 || cfg.Chunking.OverlapTokens != 50 {
		t.Errorf("chunking = %+v", cfg.Chunking)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")
		if got := ResolveEnvVars("${TEST_API_KEY}"); got != "secret123" {
			t.Errorf("expected secret123, got %s", got)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		if got := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}"); got != "" {
			t.Errorf("expected empty string, got %s", got)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		if got := ResolveEnvVars("literal-value"); got != "literal-value" {
			t.Errorf("expected literal-value, got %s", got)
		}
	})

	t.Run("expands inside a string", func(t *testing.T) {
		t.Setenv("TEST_DB_PASS", "pw")
		if got := ResolveEnvVars("postgres://u:${TEST_DB_PASS}@h/db"); got != "postgres://u:pw@h/db" {
			t.Errorf("got %s", got)
		}
	})
}

func TestNewManager(t *testing.T) {
	t.Run("file values merge with defaults", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: "9090"
chunking:
  max_tokens: 400
`)
		mgr, err := NewManager(path)
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		cfg := mgr.Get()
		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Server.Host != "127.0.0.1" {
			t.Errorf("Server.Host = %s, want default", cfg.Server.Host)
		}
		if cfg.Chunking.MaxTokens != 400 || cfg.Chunking.OverlapTokens != 50 {
			t.Errorf("Chunking = %+v, want 400/50", cfg.Chunking)
		}
		if mgr.ConfigFile() != path {
			t.Errorf("ConfigFile() = %s, want %s", mgr.ConfigFile(), path)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("LECTERN_RETRIEVAL_K", "7")
		path := writeConfig(t, "retrieval:\n  k: 3\n")
		mgr, err := NewManager(path)
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		if k := mgr.Get().Retrieval.K; k != 7 {
			t.Errorf("Retrieval.K = %d, want 7", k)
		}
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		path := writeConfig(t, "database:\n  driver: sqlite\n")
		if _, err := NewManager(path); err == nil {
			t.Error("expected error for unknown driver")
		}
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		path := writeConfig(t, "server: [unclosed\n")
		if _, err := NewManager(path); err == nil {
			t.Error("expected error for malformed yaml")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap not below max", func(c *Config) { c.Chunking.OverlapTokens = c.Chunking.MaxTokens }},
		{"zero dimensions", func(c *Config) { c.Embeddings.Dimensions = 0 }},
		{"k too large", func(c *Config) { c.Retrieval.K = 21 }},
		{"k zero", func(c *Config) { c.Retrieval.K = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfig_Conversions(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "llm-key")
	t.Setenv("TEST_TOKEN", "tok")

	cfg := DefaultConfig()
	cfg.LLM.APIKey = "${TEST_LLM_KEY}"
	cfg.Server.APIToken = "${TEST_TOKEN}"

	reg := cfg.ToProviderRegistryConfig(nil)
	if reg.LLM.APIKey != "llm-key" {
		t.Errorf("LLM.APIKey = %q, want resolved", reg.LLM.APIKey)
	}
	if reg.Embeddings.Dimensions != 1536 {
		t.Errorf("Embeddings.Dimensions = %d", reg.Embeddings.Dimensions)
	}

	tc := cfg.TriggerConfig(nil)
	if tc.Timeout != 30*time.Second || tc.MaxAttempts != 3 || tc.MaxDelay != 5*time.Second {
		t.Errorf("TriggerConfig = %+v", tc)
	}
	if tc.BearerToken != "tok" {
		t.Errorf("BearerToken = %q, want tok", tc.BearerToken)
	}

	if cc := cfg.ChunkerConfig(); cc.MaxTokens != 800 || cc.OverlapTokens != 50 {
		t.Errorf("ChunkerConfig = %+v", cc)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("LECTERN_DOTENV_TEST=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("LECTERN_DOTENV_TEST") })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("LECTERN_DOTENV_TEST"); got != "from-file" {
		t.Errorf("LECTERN_DOTENV_TEST = %q, want from-file", got)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() on written default error = %v", err)
	}
	if mgr.Get().LLM.Model != DefaultConfig().LLM.Model {
		t.Errorf("LLM.Model = %s", mgr.Get().LLM.Model)
	}
}

func TestManager_WatchConfig(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \"8081\"\n")
	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	var calls atomic.Int32
	var lastPort atomic.Value
	mgr.OnChange(func(cfg *Config) {
		calls.Add(1)
		lastPort.Store(cfg.Server.Port)
	})
	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("server:\n  port: \"8082\"\n"), 0644); err != nil {
		t.Fatalf("failed to update config file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && calls.Load() == 0 {
		time.Sleep(50 * time.Millisecond)
	}

	if calls.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if got := mgr.Get().Server.Port; got != "8082" {
		t.Errorf("Server.Port = %s, want 8082", got)
	}
	if v := lastPort.Load(); v != "8082" {
		t.Errorf("callback saw port %v, want 8082", v)
	}
}
