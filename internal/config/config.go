package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

type Config struct {
	Server          ServerConfig              `json:"server" mapstructure:"server"`
	Database        DatabaseConfig            `json:"database" mapstructure:"database"`
	Providers       map[string]ProviderConfig `json:"providers" mapstructure:"providers"`
	DefaultProvider string                    `json:"default_provider" mapstructure:"default_provider"`
	DefaultModel    string                    `json:"default_model" mapstructure:"default_model"`
	Context         ContextConfig             `json:"context" mapstructure:"context"`
	Retrieval       RetrievalConfig           `json:"retrieval" mapstructure:"retrieval"`
}

type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	User     string `json:"user" mapstructure:"user"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslmode" mapstructure:"sslmode"`
}

type ProviderConfig struct {
	Type         string   `json:"type" mapstructure:"type"`
	Name         string   `json:"name" mapstructure:"name"`
	BaseURL      string   `json:"base_url,omitempty" mapstructure:"base_url"`
	APIKey       string   `json:"api_key,omitempty" mapstructure:"api_key"`
	Models       []string `json:"models" mapstructure:"models"`
	DefaultModel string   `json:"default_model" mapstructure:"default_model"`
}

// DSN returns the keyword/value connection string for database/sql.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// URL returns the postgres:// form used by the migration tooling.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// ContextConfig bounds what gets sent to the model per turn.
type ContextConfig struct {
	// HistoryBudget is the token budget for windowed history. The incoming
	// user turn is always sent in full and is not counted against it.
	HistoryBudget int `json:"history_budget" mapstructure:"history_budget"`
	// SummaryReserve bounds the system instruction + running summary block,
	// separate from HistoryBudget.
	SummaryReserve int `json:"summary_reserve" mapstructure:"summary_reserve"`
	// SummaryMaxWords is the target length passed to the summarizer.
	SummaryMaxWords int `json:"summary_max_words" mapstructure:"summary_max_words"`
	// StreamTimeoutSeconds bounds one full model invocation including streaming.
	StreamTimeoutSeconds int `json:"stream_timeout_seconds" mapstructure:"stream_timeout_seconds"`
	// SummarizeTimeoutSeconds bounds the best-effort summary refresh call.
	SummarizeTimeoutSeconds int `json:"summarize_timeout_seconds" mapstructure:"summarize_timeout_seconds"`
	// PersistTimeoutSeconds bounds post-stream writes after a caller disconnect.
	PersistTimeoutSeconds int `json:"persist_timeout_seconds" mapstructure:"persist_timeout_seconds"`
	// RequireUserFirst drops a leading assistant turn from the window for
	// providers that reject histories not starting with a user turn.
	RequireUserFirst bool `json:"require_user_first" mapstructure:"require_user_first"`
}

type RetrievalConfig struct {
	Enabled        bool   `json:"enabled" mapstructure:"enabled"`
	TopK           int    `json:"top_k" mapstructure:"top_k"`
	EmbeddingModel string `json:"embedding_model" mapstructure:"embedding_model"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".convoflow"))
	}

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "convoflow")
	viper.SetDefault("database.database", "convoflow")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("default_provider", "openai")
	viper.SetDefault("context.history_budget", 4000)
	viper.SetDefault("context.summary_reserve", 600)
	viper.SetDefault("context.summary_max_words", 200)
	viper.SetDefault("context.stream_timeout_seconds", 120)
	viper.SetDefault("context.summarize_timeout_seconds", 20)
	viper.SetDefault("context.persist_timeout_seconds", 30)
	viper.SetDefault("context.require_user_first", true)
	viper.SetDefault("retrieval.enabled", false)
	viper.SetDefault("retrieval.top_k", 4)
	viper.SetDefault("retrieval.embedding_model", "text-embedding-3-small")
	viper.SetDefault("retrieval.timeout_seconds", 5)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			cfg := defaultConfig()
			loadEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvOverrides(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "convoflow",
			Password: "",
			Database: "convoflow",
			SSLMode:  "disable",
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				Type:         "openai",
				Name:         "OpenAI",
				Models:       []string{"gpt-4o", "gpt-4o-mini"},
				DefaultModel: "gpt-4o-mini",
			},
			"ollama": {
				Type:         "openai-compatible",
				Name:         "Ollama",
				BaseURL:      "http://localhost:11434",
				Models:       []string{},
				DefaultModel: "",
			},
		},
		DefaultProvider: "openai",
		Context: ContextConfig{
			HistoryBudget:           4000,
			SummaryReserve:          600,
			SummaryMaxWords:         200,
			StreamTimeoutSeconds:    120,
			SummarizeTimeoutSeconds: 20,
			PersistTimeoutSeconds:   30,
			RequireUserFirst:        true,
		},
		Retrieval: RetrievalConfig{
			Enabled:        false,
			TopK:           4,
			EmbeddingModel: "text-embedding-3-small",
			TimeoutSeconds: 5,
		},
	}
}

func loadEnvOverrides(cfg *Config) {
	if port := os.Getenv("CONVOFLOW_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if host := os.Getenv("CONVOFLOW_HOST"); host != "" {
		cfg.Server.Host = host
	}

	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("POSTGRES_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = port
		}
	}
	if dbUser := os.Getenv("POSTGRES_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPass := os.Getenv("POSTGRES_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbName := os.Getenv("POSTGRES_DB"); dbName != "" {
		cfg.Database.Database = dbName
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if pc, ok := cfg.Providers["openai"]; ok {
			pc.APIKey = key
			cfg.Providers["openai"] = pc
		}
	}
}
