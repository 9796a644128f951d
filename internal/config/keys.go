package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "ADVISOR_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "ADVISOR_API_TOKEN",
		secret: true,
	},
	{
		key: "ollama.base_url", typ: kString, env: "ADVISOR_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.chat_model", typ: kString, env: "ADVISOR_OLLAMA_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "ADVISOR_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "reference.path", typ: kString, env: "ADVISOR_REFERENCE_PATH",
		apply:   func(cfg *Config, v any) { cfg.Reference.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Reference.Path },
	},
	{
		key: "reference.filename", typ: kString, env: "ADVISOR_REFERENCE_FILENAME",
		apply:   func(cfg *Config, v any) { cfg.Reference.Filename = v.(string) },
		extract: func(cfg Config) any { return cfg.Reference.Filename },
	},
	{
		key: "reference.chunk_size", typ: kInt, env: "ADVISOR_REFERENCE_CHUNK_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Reference.ChunkSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Reference.ChunkSize },
	},
	{
		key: "reference.chunk_overlap", typ: kInt, env: "ADVISOR_REFERENCE_CHUNK_OVERLAP",
		apply:   func(cfg *Config, v any) { cfg.Reference.ChunkOverlap = v.(int) },
		extract: func(cfg Config) any { return cfg.Reference.ChunkOverlap },
	},
	{
		key: "advisor.top_k", typ: kInt, env: "ADVISOR_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Advisor.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Advisor.TopK },
	},
	{
		key: "advisor.timeout_seconds", typ: kInt, env: "ADVISOR_TIMEOUT_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.Advisor.TimeoutSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.Advisor.TimeoutSeconds },
	},
	{
		key: "advisor.fallbacks", typ: kString, env: "ADVISOR_FALLBACKS",
		apply:   func(cfg *Config, v any) { cfg.Advisor.FallbacksJSON = v.(string) },
		extract: func(cfg Config) any { return cfg.Advisor.FallbacksJSON },
	},
	{
		key: "storage.data_dir", typ: kString, env: "ADVISOR_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "ADVISOR_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret || s.apply == nil {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" || s.apply == nil {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
