package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Watsonx  WatsonxConfig `yaml:"watsonx"`
	IAM      IAMConfig     `yaml:"iam"`
	EmbedLLM LLMConfig     `yaml:"embed_llm"`
	RAG      RAGConfig     `yaml:"rag"`
	Server   ServerConfig  `yaml:"server"`
	LogLevel string        `yaml:"log_level"`
}

// WatsonxConfig holds the generation endpoint settings.
type WatsonxConfig struct {
	BaseURL      string        `yaml:"base_url"`
	ProjectID    string        `yaml:"project_id"`
	ModelID      string        `yaml:"model_id"`
	Version      string        `yaml:"version"`
	MaxNewTokens int           `yaml:"max_new_tokens"`
	Decoding     string        `yaml:"decoding_method"`
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
}

type IAMConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// LLMConfig describes the embedding model backend.
type LLMConfig struct {
	Provider string `yaml:"provider"` // ollama or openai
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Key      string `yaml:"key"`
}

type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
	PreviewCount int `yaml:"preview_count"`
	PreviewChars int `yaml:"preview_chars"`
}

type ServerConfig struct {
	Addr          string `yaml:"addr"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
}

const (
	DefaultIAMURL       = "https://iam.cloud.ibm.com/identity/token"
	DefaultModelID      = "ibm/granite-3-2-8b-instruct"
	DefaultVersion      = "2024-05-01"
	DefaultMaxNewTokens = 300
	DefaultDecoding     = "greedy"
	DefaultEmbedBaseURL = "http://localhost:11434"
	DefaultEmbedModel   = "all-minilm"
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
	DefaultTopK         = 3
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Watsonx: WatsonxConfig{
			ModelID:      DefaultModelID,
			Version:      DefaultVersion,
			MaxNewTokens: DefaultMaxNewTokens,
			Decoding:     DefaultDecoding,
		},
		IAM: IAMConfig{URL: DefaultIAMURL},
		EmbedLLM: LLMConfig{
			Provider: "ollama",
			BaseURL:  DefaultEmbedBaseURL,
			Model:    DefaultEmbedModel,
		},
		RAG: RAGConfig{
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
			TopK:         DefaultTopK,
			PreviewCount: 5,
			PreviewChars: 500,
		},
		Server: ServerConfig{
			Addr:          ":8501",
			MaxUploadSize: 32 << 20,
		},
		LogLevel: "info",
	}
}

// LoadConfig reads the yaml file at path on top of the defaults, then
// applies .env and process environment overrides. A missing file is not
// an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.IAM.APIKey, "IBM_API_KEY")
	setString(&c.IAM.URL, "IAM_URL")
	setString(&c.Watsonx.ProjectID, "PROJECT_ID")
	setString(&c.Watsonx.BaseURL, "WATSONX_URL")
	setString(&c.Watsonx.ModelID, "WATSONX_MODEL_ID")
	setString(&c.EmbedLLM.Provider, "EMBED_PROVIDER")
	setString(&c.EmbedLLM.BaseURL, "EMBED_BASE_URL")
	setString(&c.EmbedLLM.Model, "EMBED_MODEL")
	setString(&c.EmbedLLM.Key, "EMBED_API_KEY")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Server.Addr, "ADDR")
	if v, ok := os.LookupEnv("TOP_K"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.RAG.TopK = n
		}
	}
}

// fillDefaults restores zero values a partial yaml file may have left.
func (c *Config) fillDefaults() {
	d := Default()
	if c.IAM.URL == "" {
		c.IAM.URL = d.IAM.URL
	}
	if c.Watsonx.ModelID == "" {
		c.Watsonx.ModelID = d.Watsonx.ModelID
	}
	if c.Watsonx.Version == "" {
		c.Watsonx.Version = d.Watsonx.Version
	}
	if c.Watsonx.MaxNewTokens == 0 {
		c.Watsonx.MaxNewTokens = d.Watsonx.MaxNewTokens
	}
	if c.Watsonx.Decoding == "" {
		c.Watsonx.Decoding = d.Watsonx.Decoding
	}
	if c.EmbedLLM.Provider == "" {
		c.EmbedLLM.Provider = d.EmbedLLM.Provider
	}
	if c.EmbedLLM.BaseURL == "" && c.EmbedLLM.Provider == "ollama" {
		c.EmbedLLM.BaseURL = d.EmbedLLM.BaseURL
	}
	if c.EmbedLLM.Model == "" {
		c.EmbedLLM.Model = d.EmbedLLM.Model
	}
	if c.RAG.ChunkSize <= 0 || c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		c.RAG.ChunkSize = d.RAG.ChunkSize
		c.RAG.ChunkOverlap = d.RAG.ChunkOverlap
	}
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = d.RAG.TopK
	}
	if c.RAG.PreviewCount <= 0 {
		c.RAG.PreviewCount = d.RAG.PreviewCount
	}
	if c.RAG.PreviewChars <= 0 {
		c.RAG.PreviewChars = d.RAG.PreviewChars
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.MaxUploadSize <= 0 {
		c.Server.MaxUploadSize = d.Server.MaxUploadSize
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
