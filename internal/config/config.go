package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	ledgerFileName = "ledger.db"
)

type Config struct {
	DataDir      string         `yaml:"data_dir"`
	Store        StoreConfig    `yaml:"store"`
	Ledger       LedgerConfig   `yaml:"ledger"`
	Splitter     SplitterConfig `yaml:"splitter"`
	EmbedLLM     LLMConfig      `yaml:"embed_llm"`
	InferenceLLM LLMConfig      `yaml:"inference_llm"`
	RAG          RAGConfig      `yaml:"rag"`
	Loader       LoaderConfig   `yaml:"loader"`
	Log          LogConfig      `yaml:"log"`
}

// StoreConfig locates the chromem persistent collection.
type StoreConfig struct {
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
	Workers       int    `yaml:"workers"`
}

// LedgerConfig selects where the chunk id ledger lives. An empty DSN keeps it
// in a sqlite file inside the store directory.
type LedgerConfig struct {
	DSN   string `yaml:"dsn"`
	Debug bool   `yaml:"debug"`
}

type SplitterConfig struct {
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	Separators   []string `yaml:"separators"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Key      string `yaml:"key"`
}

type RAGConfig struct {
	TopK int `yaml:"top_k"`
}

type LoaderConfig struct {
	Extensions []string `yaml:"extensions"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DataDir: "./data",
		Store: StoreConfig{
			Path:       "./database",
			Collection: "chunks",
			Workers:    4,
		},
		Splitter: SplitterConfig{
			ChunkSize:    800,
			ChunkOverlap: 80,
			Separators:   []string{"\n\n", "\n", " ", ""},
		},
		EmbedLLM: LLMConfig{
			Provider: ProviderOllama,
			BaseURL:  "http://localhost:11434",
			Model:    "llama3.2:1b",
		},
		InferenceLLM: LLMConfig{
			Provider: ProviderOllama,
			BaseURL:  "http://localhost:11434",
			Model:    "llama3.2",
		},
		RAG:    RAGConfig{TopK: 5},
		Loader: LoaderConfig{Extensions: []string{".pdf"}},
		Log:    LogConfig{Level: "info"},
	}
}

// LoadConfig reads the YAML file at path on top of the defaults. A missing
// file is not an error. Values from .env and the environment win over the file.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// .env is optional
	_ = godotenv.Load()
	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PDFRAG_OLLAMA_URL"); v != "" {
		cfg.EmbedLLM.BaseURL = v
		cfg.InferenceLLM.BaseURL = v
	}
	if v := os.Getenv("PDFRAG_EMBED_MODEL"); v != "" {
		cfg.EmbedLLM.Model = v
	}
	if v := os.Getenv("PDFRAG_LLM_MODEL"); v != "" {
		cfg.InferenceLLM.Model = v
	}
	if v := os.Getenv("PDFRAG_LLM_KEY"); v != "" {
		cfg.InferenceLLM.Key = v
		cfg.EmbedLLM.Key = v
	}
	if v := os.Getenv("PDFRAG_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("PDFRAG_LEDGER_DSN"); v != "" {
		cfg.Ledger.DSN = v
	}
}

// applyDefaults fills zero values a partial YAML file left behind
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = def.Store.Path
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = def.Store.Collection
	}
	if cfg.Store.Workers == 0 {
		cfg.Store.Workers = def.Store.Workers
	}
	if cfg.Splitter.ChunkSize == 0 {
		cfg.Splitter.ChunkSize = def.Splitter.ChunkSize
	}
	if len(cfg.Splitter.Separators) == 0 {
		cfg.Splitter.Separators = def.Splitter.Separators
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = def.EmbedLLM.Provider
	}
	if cfg.InferenceLLM.Provider == "" {
		cfg.InferenceLLM.Provider = def.InferenceLLM.Provider
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = def.RAG.TopK
	}
	if len(cfg.Loader.Extensions) == 0 {
		cfg.Loader.Extensions = def.Loader.Extensions
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Splitter.ChunkSize <= 0 {
		return fmt.Errorf("splitter.chunk_size must be greater than 0")
	}
	if c.Splitter.ChunkOverlap < 0 || c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		return fmt.Errorf("splitter.chunk_overlap must be in [0, chunk_size)")
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top_k must be greater than 0")
	}
	if c.Store.Workers <= 0 {
		return fmt.Errorf("store.workers must be greater than 0")
	}
	if k := c.Store.EncryptionKey; k != "" && len(k) != 32 {
		return fmt.Errorf("store.encryption_key must be 32 bytes, got %d", len(k))
	}
	for _, llm := range []LLMConfig{c.EmbedLLM, c.InferenceLLM} {
		if llm.Provider != ProviderOllama && llm.Provider != ProviderOpenAI {
			return fmt.Errorf("unsupported llm provider: %q", llm.Provider)
		}
		if llm.Model == "" {
			return fmt.Errorf("llm model is required for provider %s", llm.Provider)
		}
	}
	return nil
}

// LedgerPath is the sqlite ledger file used when no DSN is configured.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Store.Path, ledgerFileName)
}
