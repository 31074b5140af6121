// Package config loads lectern's YAML configuration through viper, resolves
// ${ENV_VAR} references in secrets and hot-reloads on file changes.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/lectern/internal/chunker"
	"github.com/jackzampolin/lectern/internal/objectstore"
	"github.com/jackzampolin/lectern/internal/providers"
	"github.com/jackzampolin/lectern/internal/trigger"
)

// EnvPrefix prefixes environment overrides, e.g. LECTERN_SERVER_PORT.
const EnvPrefix = "LECTERN"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v *viper.Viper

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
	logger    *slog.Logger
}

// NewManager creates a new config manager and loads initial config.
// An empty cfgFile searches ./config.yaml and $HOME/.lectern/config.yaml;
// a missing file leaves the defaults in place.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
		logger:    slog.Default(),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// SetLogger sets the logger used to report reload failures.
func (cm *Manager) SetLogger(logger *slog.Logger) {
	if logger != nil {
		cm.logger = logger
	}
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	if err := setDefaults(cm.v, DefaultConfig()); err != nil {
		return err
	}

	cm.v.SetEnvPrefix(EnvPrefix)
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.lectern")
	}

	if err := cm.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults registers every leaf of cfg as a viper default so nested keys
// merge with the file and environment one value at a time.
func setDefaults(v *viper.Viper, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal defaults: %w", err)
	}
	var tree map[interface{}]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to read defaults: %w", err)
	}
	walkDefaults(v, "", tree)
	return nil
}

func walkDefaults(v *viper.Viper, prefix string, node map[interface{}]interface{}) {
	for k, val := range node {
		key := fmt.Sprint(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if child, ok := val.(map[interface{}]interface{}); ok {
			walkDefaults(v, key, child)
			continue
		}
		v.SetDefault(key, val)
	}
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the file config was read from, if any.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. An invalid edit is
// logged and the previous configuration stays active.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			cm.logger.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		cm.logger.Info("config reloaded", "file", e.Name)
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// LoadDotEnv loads .env files into the environment without overriding
// variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("database.driver must be memory or postgres, got %q", c.Database.Driver)
	}
	if c.Chunking.MaxTokens <= 0 {
		return fmt.Errorf("chunking.max_tokens must be positive")
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.MaxTokens {
		return fmt.Errorf("chunking.overlap_tokens must be in [0, max_tokens)")
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive")
	}
	if c.Retrieval.K < 1 || c.Retrieval.K > 20 {
		return fmt.Errorf("retrieval.k must be between 1 and 20, got %d", c.Retrieval.K)
	}
	return nil
}

// ToProviderRegistryConfig converts the config to a format suitable for providers.Registry.
// It resolves all ${ENV_VAR} references in API keys.
func (c *Config) ToProviderRegistryConfig(http *trigger.Client) providers.RegistryConfig {
	return providers.RegistryConfig{
		LLM: providers.LLMProviderConfig{
			Type:    c.LLM.Type,
			Model:   c.LLM.Model,
			APIKey:  ResolveEnvVars(c.LLM.APIKey),
			BaseURL: c.LLM.BaseURL,
			RPM:     c.LLM.RPM,
		},
		Embeddings: providers.EmbedderProviderConfig{
			Type:       c.Embeddings.Type,
			Model:      c.Embeddings.Model,
			APIKey:     ResolveEnvVars(c.Embeddings.APIKey),
			BaseURL:    c.Embeddings.BaseURL,
			Dimensions: c.Embeddings.Dimensions,
		},
		HTTP: http,
	}
}

// TriggerConfig converts the retry section to a trigger.Config.
func (c *Config) TriggerConfig(logger *slog.Logger) trigger.Config {
	return trigger.Config{
		Timeout:     time.Duration(c.Retry.TimeoutSeconds) * time.Second,
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   time.Duration(c.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(c.Retry.MaxDelayMS) * time.Millisecond,
		BearerToken: c.APIToken(),
		Logger:      logger,
	}
}

// ObjectStoreConfig converts the storage section to an objectstore.Config.
func (c *Config) ObjectStoreConfig(logger *slog.Logger) objectstore.Config {
	return objectstore.Config{
		Endpoint:  c.Storage.Endpoint,
		AccessKey: ResolveEnvVars(c.Storage.AccessKey),
		SecretKey: ResolveEnvVars(c.Storage.SecretKey),
		Bucket:    c.Storage.Bucket,
		Region:    c.Storage.Region,
		UseSSL:    c.Storage.UseSSL,
		Logger:    logger,
	}
}

// ChunkerConfig converts the chunking section.
func (c *Config) ChunkerConfig() chunker.Config {
	return chunker.Config{MaxTokens: c.Chunking.MaxTokens, OverlapTokens: c.Chunking.OverlapTokens}
}

// APIToken returns the resolved server API token.
func (c *Config) APIToken() string {
	return ResolveEnvVars(c.Server.APIToken)
}

// DatabaseDSN returns the resolved database DSN.
func (c *Config) DatabaseDSN() string {
	return ResolveEnvVars(c.Database.DSN)
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Lectern configuration
# Secrets use ${ENV_VAR} syntax to reference environment variables.
# Set these in your shell or in ~/.lectern/.env:
#   OPENROUTER_API_KEY, OPENAI_API_KEY, LECTERN_API_TOKEN,
#   LECTERN_DATABASE_URL, LECTERN_STORAGE_ACCESS_KEY, LECTERN_STORAGE_SECRET_KEY
# Any key can be overridden with LECTERN_<SECTION>_<KEY>, e.g. LECTERN_SERVER_PORT.

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
