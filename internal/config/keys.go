package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
	kList
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	altEnv  string // read when env is unset
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "KBAGENT_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "KBAGENT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "KBAGENT_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "server.cors_origins", typ: kList, env: "KBAGENT_SERVER_CORS_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.Server.CORSOrigins = v.([]string) },
		extract: func(cfg Config) any { return strings.Join(cfg.Server.CORSOrigins, ",") },
	},
	{
		key: "aws.region", typ: kString, env: "KBAGENT_AWS_REGION", altEnv: "AWS_REGION",
		apply:   func(cfg *Config, v any) { cfg.AWS.Region = v.(string) },
		extract: func(cfg Config) any { return cfg.AWS.Region },
	},
	{
		key: "aws.text_model_id", typ: kString, env: "KBAGENT_AWS_TEXT_MODEL_ID",
		apply:   func(cfg *Config, v any) { cfg.AWS.TextModelID = v.(string) },
		extract: func(cfg Config) any { return cfg.AWS.TextModelID },
	},
	{
		key: "aws.embedding_model_id", typ: kString, env: "KBAGENT_AWS_EMBEDDING_MODEL_ID",
		apply:   func(cfg *Config, v any) { cfg.AWS.EmbeddingModelID = v.(string) },
		extract: func(cfg Config) any { return cfg.AWS.EmbeddingModelID },
	},
	{
		key: "aws.knowledge_base_id", typ: kString, env: "KBAGENT_AWS_KNOWLEDGE_BASE_ID",
		apply:   func(cfg *Config, v any) { cfg.AWS.KnowledgeBaseID = v.(string) },
		extract: func(cfg Config) any { return cfg.AWS.KnowledgeBaseID },
	},
	{
		key: "aws.knowledge_base_config", typ: kString, env: "KBAGENT_AWS_KNOWLEDGE_BASE_CONFIG",
		apply:   func(cfg *Config, v any) { cfg.AWS.KnowledgeBaseConfig = v.(string) },
		extract: func(cfg Config) any { return cfg.AWS.KnowledgeBaseConfig },
	},
	{
		key: "llm.provider", typ: kString, env: "KBAGENT_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.gemini_api_key", typ: kString, env: "KBAGENT_GEMINI_API_KEY", altEnv: "GEMINI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.GeminiAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.GeminiAPIKey },
	},
	{
		key: "llm.gemini_model", typ: kString, env: "KBAGENT_LLM_GEMINI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.GeminiModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.GeminiModel },
	},
	{
		key: "llm.temperature", typ: kFloat, env: "KBAGENT_LLM_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.LLM.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.LLM.Temperature },
	},
	{
		key: "llm.top_p", typ: kFloat, env: "KBAGENT_LLM_TOP_P",
		apply:   func(cfg *Config, v any) { cfg.LLM.TopP = v.(float64) },
		extract: func(cfg Config) any { return cfg.LLM.TopP },
	},
	{
		key: "llm.timeout", typ: kDuration, env: "KBAGENT_LLM_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.LLM.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.LLM.Timeout },
	},
	{
		key: "bridge.backend_url", typ: kString, env: "KBAGENT_BRIDGE_BACKEND_URL",
		apply:   func(cfg *Config, v any) { cfg.Bridge.BackendURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Bridge.BackendURL },
	},
	{
		key: "bridge.timeout", typ: kDuration, env: "KBAGENT_BRIDGE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Bridge.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Bridge.Timeout },
	},
	{
		key: "storage.persist", typ: kBool, env: "KBAGENT_STORAGE_PERSIST",
		apply:   func(cfg *Config, v any) { cfg.Storage.Persist = v.(bool) },
		extract: func(cfg Config) any { return cfg.Storage.Persist },
	},
	{
		key: "storage.data_dir", typ: kString, env: "KBAGENT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "KBAGENT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "provision.poll_interval", typ: kDuration, env: "KBAGENT_PROVISION_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Provision.PollInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Provision.PollInterval },
	},
	{
		key: "provision.max_poll_attempts", typ: kInt, env: "KBAGENT_PROVISION_MAX_POLL_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Provision.MaxPollAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Provision.MaxPollAttempts },
	},
	{
		key: "provision.settle_delay", typ: kDuration, env: "KBAGENT_PROVISION_SETTLE_DELAY",
		apply:   func(cfg *Config, v any) { cfg.Provision.SettleDelay = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Provision.SettleDelay },
	},
	{
		key: "provision.output", typ: kString, env: "KBAGENT_PROVISION_OUTPUT",
		apply:   func(cfg *Config, v any) { cfg.Provision.Output = v.(string) },
		extract: func(cfg Config) any { return cfg.Provision.Output },
	},
}

// parse converts raw into the Go type of the key.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	case kList:
		var out []string
		for _, part := range strings.Split(raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		name := s.env
		raw := os.Getenv(name)
		if raw == "" && s.altEnv != "" {
			name = s.altEnv
			raw = os.Getenv(name)
		}
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", name, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
