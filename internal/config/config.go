// Package config loads DocLore configuration from a YAML file with
// environment variable overrides. A .env file next to the config is
// honored for local development.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all DocLore configuration.
type Config struct {
	// DataDir is the root directory for the database, logs, and sync dir.
	DataDir string `yaml:"data_dir"`

	Store     StoreConfig     `yaml:"store"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Context   ContextConfig   `yaml:"context"`
	Agent     AgentConfig     `yaml:"agent"`
	WebSearch WebSearchConfig `yaml:"web_search"`
	Sync      SyncConfig      `yaml:"sync"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig configures the SQLite retrieval store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ChunkingConfig configures document chunking.
type ChunkingConfig struct {
	MaxChunkSize int `yaml:"max_chunk_size"` // characters
	Overlap      int `yaml:"overlap"`        // characters
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "ollama" or "genai"

	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`

	GenAIAPIKey string `yaml:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model"`
}

// LLMConfig configures the chat completion client. Orthogonal to the
// embedding provider; the two may point at different services.
type LLMConfig struct {
	Provider  string        `yaml:"provider"` // "genai"
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxTokens int           `yaml:"max_tokens"`
}

// ContextConfig configures the context window manager. The split and the
// chars-per-token estimate are reasonable defaults, not tuned constants.
type ContextConfig struct {
	MaxTokens           int     `yaml:"max_tokens"`
	ReservedForResponse int     `yaml:"reserved_for_response"`
	CharsPerToken       int     `yaml:"chars_per_token"`
	ChunkShare          float64 `yaml:"chunk_share"`      // fraction of available budget for retrieved chunks
	ChunkBudgetCap      int     `yaml:"chunk_budget_cap"` // hard token cap for retrieved chunks
	TopK                int     `yaml:"top_k"`            // chunks fetched per query
}

// AgentConfig configures the planner-executor-checker loop.
type AgentConfig struct {
	MaxReplanAttempts int           `yaml:"max_replan_attempts"`
	StopOnFailure     bool          `yaml:"stop_on_failure"`
	AutoExecuteLow    bool          `yaml:"auto_execute_low"` // low-complexity plans skip confirmation
	MaxToolCalls      int           `yaml:"max_tool_calls"`
	ToolTimeout       time.Duration `yaml:"tool_timeout"`
	ParallelSteps     bool          `yaml:"parallel_steps"` // run independent plan steps concurrently
}

// WebSearchConfig configures web research.
type WebSearchConfig struct {
	Provider      string        `yaml:"provider"` // "duckduckgo", "searxng", "brave"
	SearxNGURL    string        `yaml:"searxng_url"`
	BraveAPIKey   string        `yaml:"brave_api_key"`
	CacheMaxAge   int           `yaml:"cache_max_age"` // minutes
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	MaxFetchBytes int64         `yaml:"max_fetch_bytes"`
	MaxResults    int           `yaml:"max_results"`
}

// SyncConfig configures the bidirectional filesystem sync.
type SyncConfig struct {
	Dir     string `yaml:"dir"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig configures categorized logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
}

// Default returns the default configuration rooted at dataDir.
func Default(dataDir string) Config {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dataDir = filepath.Join(home, ".doclore")
	}
	return Config{
		DataDir: dataDir,
		Store: StoreConfig{
			DatabasePath: filepath.Join(dataDir, "doclore.db"),
		},
		Chunking: ChunkingConfig{
			MaxChunkSize: 1000,
			Overlap:      200,
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "nomic-embed-text",
			GenAIModel:     "gemini-embedding-001",
		},
		LLM: LLMConfig{
			Provider:  "genai",
			Model:     "gemini-2.0-flash",
			Timeout:   2 * time.Minute,
			MaxTokens: 8192,
		},
		Context: ContextConfig{
			MaxTokens:           32000,
			ReservedForResponse: 4000,
			CharsPerToken:       4,
			ChunkShare:          0.4,
			ChunkBudgetCap:      20000,
			TopK:                10,
		},
		Agent: AgentConfig{
			MaxReplanAttempts: 2,
			StopOnFailure:     false,
			AutoExecuteLow:    true,
			MaxToolCalls:      25,
			ToolTimeout:       5 * time.Minute,
			ParallelSteps:     true,
		},
		WebSearch: WebSearchConfig{
			Provider:      "duckduckgo",
			CacheMaxAge:   60,
			FetchTimeout:  30 * time.Second,
			MaxFetchBytes: 2 << 20,
			MaxResults:    5,
		},
		Sync: SyncConfig{
			Dir:     filepath.Join(dataDir, "sync"),
			Enabled: false,
		},
		Logging: LoggingConfig{
			DebugMode: false,
		},
	}
}

// Load reads config from path, falling back to defaults for missing
// fields, then applies environment overrides. A missing file is not an
// error; defaults are used.
func Load(path, dataDir string) (Config, error) {
	cfg := Default(dataDir)

	// .env beside the config file, if present. Ignore load errors: the
	// file is optional.
	if path != "" {
		_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
	} else {
		_ = godotenv.Load()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the config as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides lets environment variables win over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOCLORE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DOCLORE_DB_PATH"); v != "" {
		cfg.Store.DatabasePath = v
	}
	if v := os.Getenv("DOCLORE_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("OLLAMA_ENDPOINT"); v != "" {
		cfg.Embedding.OllamaEndpoint = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		if cfg.Embedding.GenAIAPIKey == "" {
			cfg.Embedding.GenAIAPIKey = v
		}
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = v
		}
	}
	if v := os.Getenv("DOCLORE_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("BRAVE_API_KEY"); v != "" {
		cfg.WebSearch.BraveAPIKey = v
	}
	if v := os.Getenv("SEARXNG_URL"); v != "" {
		cfg.WebSearch.SearxNGURL = v
	}
	if v := os.Getenv("DOCLORE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.DebugMode = b
		}
	}
}

// Validate checks for configuration combinations that cannot work.
func (c Config) Validate() error {
	switch c.Embedding.Provider {
	case "ollama", "genai":
	default:
		return fmt.Errorf("unsupported embedding provider: %s (use 'ollama' or 'genai')", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "genai" && c.Embedding.GenAIAPIKey == "" {
		return fmt.Errorf("embedding provider 'genai' requires an API key")
	}
	if c.Context.MaxTokens <= c.Context.ReservedForResponse {
		return fmt.Errorf("context max_tokens (%d) must exceed reserved_for_response (%d)",
			c.Context.MaxTokens, c.Context.ReservedForResponse)
	}
	if c.Chunking.MaxChunkSize <= 0 {
		return fmt.Errorf("chunking max_chunk_size must be positive")
	}
	return nil
}
