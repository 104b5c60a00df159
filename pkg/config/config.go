// Package config loads foodscout configuration from file and environment.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Server    ServerConfig    `koanf:"server"`
	LLM       LLMConfig       `koanf:"llm"`
	Tools     ToolsConfig     `koanf:"tools"`
	Agent     AgentConfig     `koanf:"agent"`
	Tasks     TasksConfig     `koanf:"tasks"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
	// PublicURL is the externally reachable base URL advertised in the
	// agent card.
	PublicURL string `koanf:"public_url"`
	// GatewayToken guards the tool gateway; empty disables the check.
	GatewayToken string `koanf:"gateway_token"`
	// TaskToken guards the task protocol, independently of the gateway.
	TaskToken string `koanf:"task_token"`
	// SkillsFile optionally overrides the built-in skill catalog (YAML).
	SkillsFile string `koanf:"skills_file"`
}

type LLMConfig struct {
	Provider    string  `koanf:"provider"` // ollama, mock
	Model       string  `koanf:"model"`
	BaseURL     string  `koanf:"base_url"`
	Temperature float64 `koanf:"temperature"`
}

type ToolsConfig struct {
	// BaseURL points at the Open Food Facts API.
	BaseURL string `koanf:"base_url"`
	// UserAgent is required by the upstream usage policy.
	UserAgent string `koanf:"user_agent"`
	TimeoutMS int    `koanf:"timeout_ms"`
}

type AgentConfig struct {
	// MaxIterations bounds the model/tool round trips per utterance.
	MaxIterations int `koanf:"max_iterations"`
	// HistoryWindow bounds the conversation turns sent to the backend.
	HistoryWindow int    `koanf:"history_window"`
	SystemPrompt  string `koanf:"system_prompt"`
}

type TasksConfig struct {
	// Store selects the task store backend: memory or sqlite.
	Store string `koanf:"store"`
	// SQLitePath is the database file used when Store is sqlite.
	SQLitePath string `koanf:"sqlite_path"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp, none
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

// Load reads configuration from an optional YAML file, then overlays
// FOODSCOUT_-prefixed environment variables over the defaults
// (FOODSCOUT_LLM_PROVIDER -> llm.provider).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("server.addr", ":8080")
	k.Set("server.public_url", "http://localhost:8080")

	k.Set("llm.provider", "ollama")
	k.Set("llm.model", "qwen2.5:7b-instruct")
	k.Set("llm.base_url", "http://localhost:11434")

	k.Set("tools.base_url", "https://world.openfoodfacts.org")
	k.Set("tools.user_agent", "foodscout/0.1 (https://github.com/foodscout/foodscout)")
	k.Set("tools.timeout_ms", 10000)

	k.Set("agent.max_iterations", 8)
	k.Set("agent.history_window", 40)

	k.Set("tasks.store", "memory")
	k.Set("tasks.sqlite_path", "foodscout-tasks.db")

	k.Set("telemetry.exporter", "stdout")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("FOODSCOUT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "FOODSCOUT_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
