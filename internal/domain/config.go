package domain

import "time"

// Config is the complete, immutable process configuration. It is built
// once at startup and passed to constructors; nothing mutates it at
// runtime.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Elastic      ElasticConfig      `mapstructure:"elastic"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Tools        ToolsConfig        `mapstructure:"tools"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Audit        AuditConfig        `mapstructure:"audit"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// ElasticConfig holds connection settings for the patient record index.
type ElasticConfig struct {
	URL       string        `mapstructure:"url"`
	APIKey    string        `mapstructure:"api_key"`
	IndexName string        `mapstructure:"index_name"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LLMConfig holds connection settings for the chat completion service.
type LLMConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	APIKey     string        `mapstructure:"api_key"`
	Deployment string        `mapstructure:"deployment"`
	APIVersion string        `mapstructure:"api_version"`
	MaxTokens  int           `mapstructure:"max_tokens"`
	RateLimit  int           `mapstructure:"rate_limit"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ToolsConfig bounds tool execution.
type ToolsConfig struct {
	// MaxConcurrent is the per-tool bound on simultaneous in-flight calls.
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// RequestTimeout covers waiting for a slot plus the handler call.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// OrchestratorConfig bounds the conversation loop.
type OrchestratorConfig struct {
	// MaxRoundTrips caps tool-call round-trips within one user turn.
	MaxRoundTrips int    `mapstructure:"max_round_trips"`
	SystemPrompt  string `mapstructure:"system_prompt"`
}

// CacheConfig controls the tool result cache.
type CacheConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
	// RedisURL enables the optional distributed second tier when set.
	RedisURL string `mapstructure:"redis_url"`
}

// AuditConfig controls the tool invocation audit trail.
type AuditConfig struct {
	// Driver is one of "sqlite", "postgres" or "disabled".
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
