// Package config provides configuration loading and structs for langchat.
//
// A Config is built once at process start by Load and handed to every
// component constructor; nothing in the module reads configuration globally.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Model     ModelConfig     `yaml:"model"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	RAG       RAGConfig       `yaml:"rag"`
	Memory    MemoryConfig    `yaml:"memory"`
	Watch     WatchConfig     `yaml:"watch"`

	// Warnings collects non-fatal problems found while loading, such as
	// unparseable numeric environment values. Callers log them once a
	// logger exists.
	Warnings []string `yaml:"-"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the document database and keyword index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// ModelConfig holds chat model settings.
type ModelConfig struct {
	Provider    string        `yaml:"provider"` // openai | fake
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	ModelName   string        `yaml:"model_name"`
	Temperature *float64      `yaml:"temperature,omitempty"` // nil means DefaultTemperature
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// EmbeddingConfig holds embedder settings. The OpenAI provider reuses the
// API key and base URL from ModelConfig.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // openai | onnx | mock
	ModelName  string `yaml:"model_name"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	BatchSize  int    `yaml:"batch_size"`
	CacheSize  int    `yaml:"cache_size"`
}

// RAGConfig holds document splitting and retrieval settings.
type RAGConfig struct {
	Splitter       string  `yaml:"splitter"` // paragraph | window
	ChunkSize      int     `yaml:"chunk_size"`
	ChunkOverlap   int     `yaml:"chunk_overlap"`
	TopK           int     `yaml:"top_k"`
	MinScore       float64 `yaml:"min_score"`
	Hybrid         bool    `yaml:"hybrid"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
}

// MemoryConfig holds chat memory settings.
type MemoryConfig struct {
	Type        string        `yaml:"type"` // message | token
	MaxMessages int           `yaml:"max_messages"`
	MaxTokens   int           `yaml:"max_tokens"`
	TokenModel  string        `yaml:"token_model"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
}

// WatchConfig holds knowledge directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// TemperatureOrDefault returns the sampling temperature, DefaultTemperature
// when unset. An explicit 0 is kept.
func (m *ModelConfig) TemperatureOrDefault() float64 {
	if m.Temperature != nil {
		return *m.Temperature
	}
	return DefaultTemperature
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load builds the configuration. Sources, lowest priority first: built-in
// defaults, the YAML file at path (optional; "" skips it), .env and
// .env.local in the env directory, then the process environment.
func Load(path string, opts ...Option) (*Config, error) {
	o := loadOptions{envDir: ".", lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(&o)
	}

	var cfg Config
	configDir := o.envDir
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
			configDir = filepath.Dir(path)
		case os.IsNotExist(err) && o.optional:
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	env, err := readDotEnv(o.envDir)
	if err != nil {
		return nil, err
	}
	applyEnv(&cfg, env, o.lookup)

	ApplyDefaults(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return writeConfigFile(path, data)
}

// SaveWatchDirectories replaces watch.directories in the YAML file at path
// and leaves the rest of the file as written, so values that came from the
// environment (such as the API key) never reach the file. A missing file
// is created with only that setting.
func SaveWatchDirectories(path string, dirs []string) error {
	var doc yaml.Node
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("failed to update config: %s is not a YAML mapping", path)
	}

	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, d := range dirs {
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: d})
	}
	setMappingValue(mappingChild(root, "watch"), "directories", seq)

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return writeConfigFile(path, out)
}

// mappingChild returns the mapping stored under key in m, replacing a
// missing or non-mapping value with an empty mapping.
func mappingChild(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			if v := m.Content[i+1]; v.Kind == yaml.MappingNode {
				return v
			}
			m.Content[i+1] = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			return m.Content[i+1]
		}
	}
	child := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	setMappingValue(m, key, child)
	return child
}

func setMappingValue(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value)
}

func writeConfigFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
