package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Database struct {
		ConnectionString string `yaml:"connection_string"`
	} `yaml:"database"`
	Ollama struct {
		BaseURL      string `yaml:"base_url"`
		DefaultModel string `yaml:"default_model"`
	} `yaml:"ollama"`
	Embeddings struct {
		TextModel string `yaml:"text_model"`
	} `yaml:"embeddings"`
	Ingest struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"ingest"`
	Retrieval struct {
		CommentTopK int `yaml:"comment_top_k"`
		QuizTopK    int `yaml:"quiz_top_k"`
		MaxTokens   int `yaml:"max_tokens"`
	} `yaml:"retrieval"`
	Logging struct {
		Mode string `yaml:"mode"`
	} `yaml:"logging"`
	Autosave struct {
		DelayMillis int `yaml:"delay_millis"`
	} `yaml:"autosave"`
}

// Load loads configuration from file or returns defaults. A missing file is
// written out with the defaults so users have something to edit.
func Load() (*Config, error) {
	cfg := Default()

	configPath := filepath.Join(os.Getenv("HOME"), ".shelfmate", "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save saves configuration to file
func (c *Config) Save() error {
	configDir := filepath.Join(os.Getenv("HOME"), ".shelfmate")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// applyEnvOverrides lets the environment win over file values
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHELFMATE_DB"); v != "" {
		cfg.Database.ConnectionString = v
	}
	if v := os.Getenv("SHELFMATE_OLLAMA_URL"); v != "" {
		cfg.Ollama.BaseURL = v
	}
	if v := os.Getenv("SHELFMATE_LOG_MODE"); v != "" {
		cfg.Logging.Mode = v
	}
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Database.ConnectionString = "postgres://postgres@localhost/postgres?sslmode=disable"
	cfg.Ollama.BaseURL = "http://localhost:11434"
	cfg.Ollama.DefaultModel = ""
	cfg.Embeddings.TextModel = "nomic-embed-text"
	cfg.Ingest.ChunkSize = 512
	cfg.Ingest.ChunkOverlap = 50
	cfg.Retrieval.CommentTopK = 3
	cfg.Retrieval.QuizTopK = 5
	cfg.Retrieval.MaxTokens = 2000
	cfg.Logging.Mode = "dev"
	cfg.Autosave.DelayMillis = 1500

	return cfg
}
