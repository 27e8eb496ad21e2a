package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"port": 9090, "log_level": "debug"},
		"database": {"path": "/tmp/mem.db"},
		"embedding": {"provider": "local", "endpoint": "http://localhost:11434", "model": "nomic-embed-text"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/mem.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Embedding.Model != "nomic-embed-text" {
		t.Errorf("model = %q", cfg.Embedding.Model)
	}
}

func TestLoadEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "sk-123")
	path := writeConfig(t, `{
		"embedding": {"api_key": "${TEST_EMBED_KEY}", "endpoint": "${TEST_EMBED_URL:http://fallback:8080}"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedding.APIKey != "sk-123" {
		t.Errorf("api_key = %q, want sk-123", cfg.Embedding.APIKey)
	}
	if cfg.Embedding.Endpoint != "http://fallback:8080" {
		t.Errorf("endpoint = %q, want fallback default", cfg.Embedding.Endpoint)
	}
}

func TestLoadDefaultDatabasePath(t *testing.T) {
	path := writeConfig(t, `{}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Path != "ekai-memory.db" {
		t.Errorf("db path = %q, want default", cfg.Database.Path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
