package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	AWS       AWSConfig
	LLM       LLMConfig
	Bridge    BridgeConfig
	Storage   StorageConfig
	Log       LogConfig
	Provision ProvisionConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	APIToken    string
	CORSOrigins []string
}

type AWSConfig struct {
	Region           string
	TextModelID      string
	EmbeddingModelID string
	KnowledgeBaseID  string
	// KnowledgeBaseConfig is the provisioning result file consulted when
	// KnowledgeBaseID is empty.
	KnowledgeBaseConfig string
}

type LLMConfig struct {
	Provider     string
	GeminiAPIKey string
	GeminiModel  string
	Temperature  float64
	TopP         float64
	Timeout      time.Duration
}

type BridgeConfig struct {
	BackendURL string
	Timeout    time.Duration
}

type StorageConfig struct {
	Persist bool
	DataDir string
}

type LogConfig struct {
	Level string
}

type ProvisionConfig struct {
	PollInterval    time.Duration
	MaxPollAttempts int
	SettleDelay     time.Duration
	Output          string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		},
		AWS: AWSConfig{
			Region:              "us-east-1",
			TextModelID:         "amazon.titan-text-premier-v1:0",
			EmbeddingModelID:    "amazon.titan-embed-text-v2:0",
			KnowledgeBaseConfig: "bedrock_config.json",
		},
		LLM: LLMConfig{
			Provider:    "bedrock",
			GeminiModel: "gemini-2.0-flash",
			Temperature: 0.7,
			TopP:        0.9,
			Timeout:     30 * time.Second,
		},
		Bridge: BridgeConfig{
			BackendURL: "http://localhost:8000",
			Timeout:    30 * time.Second,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Provision: ProvisionConfig{
			PollInterval:    30 * time.Second,
			MaxPollAttempts: 120,
			SettleDelay:     60 * time.Second,
			Output:          "bedrock_config.json",
		},
	}
}

// Load reads configuration from .env files, the JSON file at
// $XDG_CONFIG_HOME/kbagent/config.json and KBAGENT_* environment variables,
// in increasing precedence. Secrets are only read from the environment.
func Load() (Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return Config{}, err
	}
	return loadWith(newFileBackend(configFilePath()))
}

// LoadEnvFiles loads .env.local then .env from the working directory.
// Variables already set in the environment are not overridden.
func LoadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-key constraints.
func (c Config) Validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "bedrock":
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			return fmt.Errorf("missing required config: Gemini API key. " +
				"Set it via environment variable KBAGENT_GEMINI_API_KEY or GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("invalid llm.provider %q: want bedrock or gemini", c.LLM.Provider)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		return fmt.Errorf("invalid llm.temperature %v: want 0..1", c.LLM.Temperature)
	}
	if c.LLM.TopP < 0 || c.LLM.TopP > 1 {
		return fmt.Errorf("invalid llm.top_p %v: want 0..1", c.LLM.TopP)
	}
	if c.Provision.PollInterval <= 0 {
		return fmt.Errorf("invalid provision.poll_interval %v: want > 0", c.Provision.PollInterval)
	}
	if c.Provision.MaxPollAttempts < 1 {
		return fmt.Errorf("invalid provision.max_poll_attempts %d: want >= 1", c.Provision.MaxPollAttempts)
	}
	return nil
}

// Addr is the listen address of the HTTP facade.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
