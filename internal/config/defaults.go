package config

import "time"

const (
	DefaultBaseURL            = "https://api.openai.com/v1"
	DefaultModelName          = "gpt-3.5-turbo"
	DefaultEmbeddingModelName = "text-embedding-ada-002"
	DefaultTemperature        = 0.7
	DefaultMaxTokens          = 1000
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".langchat/data/langchat.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = ".langchat/data/bleve"
	}

	if cfg.Model.Provider == "" {
		cfg.Model.Provider = "openai"
	}
	if cfg.Model.BaseURL == "" {
		cfg.Model.BaseURL = DefaultBaseURL
	}
	if cfg.Model.ModelName == "" {
		cfg.Model.ModelName = DefaultModelName
	}
	if cfg.Model.Temperature == nil {
		t := DefaultTemperature
		cfg.Model.Temperature = &t
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = DefaultMaxTokens
	}
	if cfg.Model.Timeout == 0 {
		cfg.Model.Timeout = 60 * time.Second
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.ModelName == "" {
		cfg.Embedding.ModelName = DefaultEmbeddingModelName
	}
	if cfg.Embedding.Dimensions == 0 {
		switch cfg.Embedding.Provider {
		case "onnx":
			cfg.Embedding.Dimensions = 384
		default:
			cfg.Embedding.Dimensions = 1536
		}
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}

	if cfg.RAG.Splitter == "" {
		cfg.RAG.Splitter = "paragraph"
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 300
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 30
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 3
	}
	if cfg.RAG.KeywordWeight == 0 && cfg.RAG.SemanticWeight == 0 {
		cfg.RAG.KeywordWeight = 0.3
		cfg.RAG.SemanticWeight = 0.7
	}

	if cfg.Memory.Type == "" {
		cfg.Memory.Type = "message"
	}
	if cfg.Memory.MaxMessages == 0 {
		cfg.Memory.MaxMessages = 10
	}
	if cfg.Memory.MaxTokens == 0 {
		cfg.Memory.MaxTokens = 2000
	}
	if cfg.Memory.TokenModel == "" {
		cfg.Memory.TokenModel = cfg.Model.ModelName
	}
	if cfg.Memory.SessionTTL == 0 {
		cfg.Memory.SessionTTL = 30 * time.Minute
	}

	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".pptx", ".odp", ".ods", ".odt", ".rtf"}
	}
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
