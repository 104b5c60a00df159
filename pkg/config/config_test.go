// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("llm.provider = %q", cfg.LLM.Provider)
	}
	if cfg.Agent.MaxIterations != 8 {
		t.Errorf("agent.max_iterations = %d", cfg.Agent.MaxIterations)
	}
	if cfg.Tasks.Store != "memory" {
		t.Errorf("tasks.store = %q", cfg.Tasks.Store)
	}
	if cfg.Tools.BaseURL != "https://world.openfoodfacts.org" {
		t.Errorf("tools.base_url = %q", cfg.Tools.BaseURL)
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server:\n  addr: \":9999\"\nllm:\n  provider: mock\nagent:\n  max_iterations: 4\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if cfg.LLM.Provider != "mock" {
		t.Errorf("llm.provider = %q", cfg.LLM.Provider)
	}
	if cfg.Agent.MaxIterations != 4 {
		t.Errorf("agent.max_iterations = %d", cfg.Agent.MaxIterations)
	}
	// Untouched keys keep their defaults.
	if cfg.LLM.Model == "" {
		t.Error("llm.model default lost")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("FOODSCOUT_LLM_MODEL", "llama3.2:3b")
	t.Setenv("FOODSCOUT_TASKS_STORE", "sqlite")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Model != "llama3.2:3b" {
		t.Errorf("llm.model = %q", cfg.LLM.Model)
	}
	if cfg.Tasks.Store != "sqlite" {
		t.Errorf("tasks.store = %q", cfg.Tasks.Store)
	}
}

func TestMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
