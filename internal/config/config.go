package config

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Ollama    OllamaConfig
	Reference ReferenceConfig
	Advisor   AdvisorConfig
	Storage   StorageConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

// ReferenceConfig controls where the reference document is looked up and how
// it is chunked. Path, when set, overrides the candidate-directory search.
type ReferenceConfig struct {
	Path         string
	Filename     string
	ChunkSize    int
	ChunkOverlap int
}

type AdvisorConfig struct {
	TopK           int
	TimeoutSeconds int
	// FallbacksJSON is a JSON array of canned fallback messages returned when
	// the chat backend fails. Empty means the built-in set.
	FallbacksJSON string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4200,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "llama3.2",
			EmbedModel: "nomic-embed-text",
		},
		Reference: ReferenceConfig{
			Filename:     "investment-guide.pdf",
			ChunkSize:    500,
			ChunkOverlap: 50,
		},
		Advisor: AdvisorConfig{
			TopK:           5,
			TimeoutSeconds: 45,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration in precedence order: defaults, the JSON config
// file at $XDG_CONFIG_HOME/advisor/config.json, then ADVISOR_* environment
// variables. A .env file in the working directory is loaded first so local
// development overrides work without exporting anything.
func Load() (Config, error) {
	_ = godotenv.Load()
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Reference.ChunkOverlap >= cfg.Reference.ChunkSize {
		return Config{}, fmt.Errorf("reference.chunk_overlap (%d) must be smaller than reference.chunk_size (%d)",
			cfg.Reference.ChunkOverlap, cfg.Reference.ChunkSize)
	}

	return cfg, nil
}

// Fallbacks returns the configured canned fallback messages, or nil when the
// built-in defaults should be used.
func (c AdvisorConfig) Fallbacks() []string {
	if c.FallbacksJSON == "" {
		return nil
	}
	var msgs []string
	if err := json.Unmarshal([]byte(c.FallbacksJSON), &msgs); err != nil {
		return nil
	}
	return msgs
}

const apiTokenKey = "server.api_token"

// EnsureAPIToken returns the bearer token for management endpoints,
// generating and persisting one on first use.
func EnsureAPIToken() (string, error) {
	return ensureAPIToken(newFileBackend())
}

func ensureAPIToken(b ConfigBackend) (string, error) {
	token, ok, err := b.GetString(apiTokenKey)
	if err != nil {
		return "", fmt.Errorf("reading API token: %w", err)
	}
	if ok && token != "" {
		return token, nil
	}

	token = uuid.New().String()
	if err := b.SetString(apiTokenKey, token); err != nil {
		return "", fmt.Errorf("persisting API token: %w", err)
	}
	return token, nil
}
