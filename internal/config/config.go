package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server ServerConfig `koanf:"server"`
	OpenAI OpenAIConfig `koanf:"openai"`
	Audit  AuditConfig  `koanf:"audit"`
	Store  StoreConfig  `koanf:"store"`
	Index  IndexConfig  `koanf:"index"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type OpenAIConfig struct {
	APIKey         string  `koanf:"api_key"`
	Model          string  `koanf:"model"`
	EmbeddingModel string  `koanf:"embedding_model"`
	Temperature    float32 `koanf:"temperature"`
	Candidates     int     `koanf:"candidates"`
}

// AuditConfig configures the external audit sink and the identity stamped on
// records. The token is a secret; supply it via environment.
type AuditConfig struct {
	Domain     string `koanf:"domain"`
	Token      string `koanf:"token"`
	ConfigID   string `koanf:"config_id"`
	Actor      string `koanf:"actor"`
	LogOrphans bool   `koanf:"log_orphans"`
}

type StoreConfig struct {
	// Path is the SQLite mirror location; empty selects the in-memory mirror.
	Path string `koanf:"path"`
}

type IndexConfig struct {
	TopK        int    `koanf:"top_k"`
	ChunkTokens int    `koanf:"chunk_tokens"`
	CorpusPath  string `koanf:"corpus_path"`
}

// Load reads configPath (optional YAML) and overlays RAGTRAIL_ environment
// variables, with RAGTRAIL_AUDIT__TOKEN mapping to audit.token.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider("RAGTRAIL_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "RAGTRAIL_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":            8080,
		"openai.model":           "gpt-4o-mini",
		"openai.embedding_model": "text-embedding-3-small",
		"openai.temperature":     0.2,
		"openai.candidates":      1,
		"audit.domain":           "https://audit.ragtrail.dev",
		"index.top_k":            4,
		"index.chunk_tokens":     256,
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}
}

func (c *Config) validate() error {
	if c.Audit.Token == "" {
		return fmt.Errorf("config: audit.token is required")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("config: openai.api_key is required")
	}
	if c.OpenAI.Candidates < 1 {
		return fmt.Errorf("config: openai.candidates must be at least 1")
	}
	return nil
}
