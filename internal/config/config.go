// Package config loads and validates process configuration using Viper.
// Values come from environment variables (prefix CLINICAL_) with an
// optional yaml file for local development. Required values missing at
// startup are a fatal error, never a runtime fault.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/clinical-assistant-server/internal/domain"
)

// Manager loads and holds the process configuration.
type Manager struct {
	config *domain.Config
}

// NewManager loads configuration from the environment and optional config
// file and returns a manager holding the result.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/clinical-assistant/")

	viper.SetEnvPrefix("CLINICAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; defaults and environment variables apply.
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Document store defaults
	viper.SetDefault("elastic.timeout", "30s")

	// LLM defaults
	viper.SetDefault("llm.api_version", "2024-06-01")
	viper.SetDefault("llm.max_tokens", 400)
	viper.SetDefault("llm.rate_limit", 10)
	viper.SetDefault("llm.timeout", "30s")

	// Tool execution defaults
	viper.SetDefault("tools.max_concurrent", 10)
	viper.SetDefault("tools.request_timeout", "30s")

	// Conversation loop defaults
	viper.SetDefault("orchestrator.max_round_trips", 5)
	viper.SetDefault("orchestrator.system_prompt", defaultSystemPrompt)

	// Cache defaults
	viper.SetDefault("cache.ttl", "5m")
	viper.SetDefault("cache.max_entries", 100)

	// Audit defaults
	viper.SetDefault("audit.driver", "sqlite")
	viper.SetDefault("audit.sqlite_path", "data/audit.db")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

const defaultSystemPrompt = "You are a clinical assistant helping a " +
	"physician review patient records. Use the provided tools to retrieve " +
	"patient data, build summaries and screen medications for " +
	"interactions. Answer only from retrieved records; if data could not " +
	"be retrieved, say so plainly. Keep answers to two or three sentences."

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// Validate checks the configuration. Required connection settings missing
// here abort startup.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Elastic.URL == "" {
		return fmt.Errorf("elastic URL is required")
	}
	if config.Elastic.APIKey == "" {
		return fmt.Errorf("elastic API key is required")
	}
	if config.Elastic.IndexName == "" {
		return fmt.Errorf("elastic index name is required")
	}

	if config.LLM.Endpoint == "" {
		return fmt.Errorf("LLM endpoint is required")
	}
	if config.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is required")
	}
	if config.LLM.Deployment == "" {
		return fmt.Errorf("LLM deployment identifier is required")
	}

	if config.Tools.MaxConcurrent <= 0 {
		return fmt.Errorf("tools max_concurrent must be positive")
	}
	if config.Tools.RequestTimeout <= 0 {
		return fmt.Errorf("tools request_timeout must be positive")
	}
	if config.Orchestrator.MaxRoundTrips <= 0 {
		return fmt.Errorf("orchestrator max_round_trips must be positive")
	}
	if config.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	if config.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max_entries must be positive")
	}

	switch config.Audit.Driver {
	case "sqlite":
		if config.Audit.SQLitePath == "" {
			return fmt.Errorf("audit sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if config.Audit.PostgresURL == "" {
			return fmt.Errorf("audit postgres_url is required for the postgres driver")
		}
	case "disabled":
	default:
		return fmt.Errorf("invalid audit driver: %s", config.Audit.Driver)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}
