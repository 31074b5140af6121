package config

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Vector     VectorConfig     `mapstructure:"vector" yaml:"vector"`
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Redis      RedisConfig      `mapstructure:"redis" yaml:"redis"`
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings" yaml:"embeddings"`
	Chunking   ChunkingConfig   `mapstructure:"chunking" yaml:"chunking"`
	Retry      RetryConfig      `mapstructure:"retry" yaml:"retry"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval" yaml:"retrieval"`
	Personas   PersonasConfig   `mapstructure:"personas" yaml:"personas"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
	// APIToken guards the processing trigger (supports ${ENV_VAR} syntax).
	// Empty disables the check.
	APIToken      string `mapstructure:"api_token" yaml:"api_token"`
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`   // debug, info, warn, error
	LogFormat     string `mapstructure:"log_format" yaml:"log_format"` // text, json
	MaxJobs       int    `mapstructure:"max_jobs" yaml:"max_jobs"`     // concurrent processing jobs
	ShutdownGrace int    `mapstructure:"shutdown_grace_seconds" yaml:"shutdown_grace_seconds"`
}

// DatabaseConfig selects and configures the relational store.
type DatabaseConfig struct {
	Driver string       `mapstructure:"driver" yaml:"driver"` // "memory" or "postgres"
	DSN    string       `mapstructure:"dsn" yaml:"dsn"`       // supports ${ENV_VAR}; empty uses the docker container
	Debug  bool         `mapstructure:"debug" yaml:"debug"`   // log every query
	Docker DockerConfig `mapstructure:"docker" yaml:"docker"`
}

// DockerConfig holds the local Postgres container configuration.
type DockerConfig struct {
	// ContainerName is the Docker container name (default derived from the home path)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: pgvector/pgvector:pg16)
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 54329)
	Port string `mapstructure:"port" yaml:"port"`
	// AutoStart starts the container with serve when no DSN is set.
	AutoStart bool `mapstructure:"auto_start" yaml:"auto_start"`
}

// VectorConfig configures the embedded vector index used by the memory store.
type VectorConfig struct {
	// Path persists the index. Empty uses ~/.lectern/vectors; "-" keeps it in memory.
	Path string `mapstructure:"path" yaml:"path"`
}

// StorageConfig configures the object store holding documents and covers.
type StorageConfig struct {
	Endpoint         string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey        string `mapstructure:"access_key" yaml:"access_key"` // supports ${ENV_VAR}
	SecretKey        string `mapstructure:"secret_key" yaml:"secret_key"` // supports ${ENV_VAR}
	Bucket           string `mapstructure:"bucket" yaml:"bucket"`
	Region           string `mapstructure:"region" yaml:"region"`
	UseSSL           bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	SignedURLSeconds int    `mapstructure:"signed_url_seconds" yaml:"signed_url_seconds"`
}

// RedisConfig configures the distributed lock and idempotency store.
type RedisConfig struct {
	// URL such as redis://localhost:6379/0. Empty keeps both in process.
	URL string `mapstructure:"url" yaml:"url"`
}

// LLMConfig configures the chat completion provider.
type LLMConfig struct {
	Type    string `mapstructure:"type" yaml:"type"`         // "openrouter", "mock"
	Model   string `mapstructure:"model" yaml:"model"`       // default model
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`   // supports ${ENV_VAR}
	BaseURL string `mapstructure:"base_url" yaml:"base_url"` // override for compatible gateways
	RPM     int    `mapstructure:"rpm" yaml:"rpm"`           // requests per minute
	// QueryModel rewrites chat messages into search queries. Empty uses Model.
	QueryModel string `mapstructure:"query_model" yaml:"query_model"`
	// AnswerMaxTokens bounds composed answers.
	AnswerMaxTokens int `mapstructure:"answer_max_tokens" yaml:"answer_max_tokens"`
}

// EmbeddingsConfig configures the embedding provider and pool.
type EmbeddingsConfig struct {
	Type        string `mapstructure:"type" yaml:"type"` // "openai", "ollama", "mock"
	Model       string `mapstructure:"model" yaml:"model"`
	APIKey      string `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR}
	BaseURL     string `mapstructure:"base_url" yaml:"base_url"`
	Dimensions  int    `mapstructure:"dimensions" yaml:"dimensions"`
	BatchSize   int    `mapstructure:"batch_size" yaml:"batch_size"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
}

// ChunkingConfig sizes chunks.
type ChunkingConfig struct {
	MaxTokens     int `mapstructure:"max_tokens" yaml:"max_tokens"`
	OverlapTokens int `mapstructure:"overlap_tokens" yaml:"overlap_tokens"`
}

// RetryConfig is the retry policy shared by every outbound call.
type RetryConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // per attempt
	MaxAttempts    int `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelayMS    int `mapstructure:"base_delay_ms" yaml:"base_delay_ms"`
	MaxDelayMS     int `mapstructure:"max_delay_ms" yaml:"max_delay_ms"`
}

// RetrievalConfig configures similarity search.
type RetrievalConfig struct {
	K int `mapstructure:"k" yaml:"k"` // chunks per question, clamped to 1..20
}

// PersonasConfig configures persona extraction.
type PersonasConfig struct {
	Enabled      bool    `mapstructure:"enabled" yaml:"enabled"`
	Model        string  `mapstructure:"model" yaml:"model"` // empty uses llm.model
	SampleChunks int     `mapstructure:"sample_chunks" yaml:"sample_chunks"`
	MaxPersonas  int     `mapstructure:"max_personas" yaml:"max_personas"`
	Temperature  float64 `mapstructure:"temperature" yaml:"temperature"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "127.0.0.1",
			Port:          "8080",
			APIToken:      "${LECTERN_API_TOKEN}",
			LogLevel:      "info",
			LogFormat:     "text",
			MaxJobs:       4,
			ShutdownGrace: 30,
		},
		Database: DatabaseConfig{
			Driver: "memory",
			DSN:    "${LECTERN_DATABASE_URL}",
			Docker: DockerConfig{
				Image:     "pgvector/pgvector:pg16",
				Port:      "54329",
				AutoStart: true,
			},
		},
		Storage: StorageConfig{
			Endpoint:         "localhost:9000",
			AccessKey:        "${LECTERN_STORAGE_ACCESS_KEY}",
			SecretKey:        "${LECTERN_STORAGE_SECRET_KEY}",
			Bucket:           "books",
			SignedURLSeconds: 60,
		},
		LLM: LLMConfig{
			Type:            "openrouter",
			Model:           "openai/gpt-4o-mini",
			APIKey:          "${OPENROUTER_API_KEY}",
			RPM:             150,
			AnswerMaxTokens: 800,
		},
		Embeddings: EmbeddingsConfig{
			Type:        "openai",
			Model:       "text-embedding-3-small",
			APIKey:      "${OPENAI_API_KEY}",
			Dimensions:  1536,
			BatchSize:   16,
			Concurrency: 5,
		},
		Chunking: ChunkingConfig{
			MaxTokens:     800,
			OverlapTokens: 50,
		},
		Retry: RetryConfig{
			TimeoutSeconds: 30,
			MaxAttempts:    3,
			BaseDelayMS:    500,
			MaxDelayMS:     5000,
		},
		Retrieval: RetrievalConfig{
			K: 5,
		},
		Personas: PersonasConfig{
			Enabled:      true,
			SampleChunks: 5,
			MaxPersonas:  8,
			Temperature:  0.4,
		},
	}
}
