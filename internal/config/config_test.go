package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// mapBackend is an in-memory Backend for tests.
type mapBackend struct {
	data map[string]any
}

func (b *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (b *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (b *mapBackend) SetString(key, val string) error { b.data[key] = val; return nil }
func (b *mapBackend) SetInt(key string, val int) error { b.data[key] = val; return nil }

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SPRACHLAB_LLM_API_KEY", "sk-test")

	cfg, err := loadWith(&mapBackend{data: map[string]any{}})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 4400 {
		t.Errorf("default port = %d, want 4400", cfg.Server.Port)
	}
	if cfg.LLM.ChatModel != "gpt-4o-mini" {
		t.Errorf("default chat model = %q", cfg.LLM.ChatModel)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("API key = %q, want sk-test", cfg.LLM.APIKey)
	}
}

func TestLoadMissingAPIKey(t *testing.T) {
	t.Setenv("SPRACHLAB_LLM_API_KEY", "")

	_, err := loadWith(&mapBackend{data: map[string]any{}})
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "SPRACHLAB_LLM_API_KEY") {
		t.Errorf("error should name the env var, got: %v", err)
	}
}

func TestBackendValuesApplied(t *testing.T) {
	t.Setenv("SPRACHLAB_LLM_API_KEY", "sk-test")

	b := &mapBackend{data: map[string]any{
		"server.port":  9999,
		"llm.base_url": "http://localhost:8080/v1",
		"content.dir":  "/srv/content",
	}}

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.LLM.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("base URL = %q", cfg.LLM.BaseURL)
	}
	if cfg.Content.Dir != "/srv/content" {
		t.Errorf("content dir = %q", cfg.Content.Dir)
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	t.Setenv("SPRACHLAB_LLM_API_KEY", "sk-test")
	t.Setenv("SPRACHLAB_SERVER_PORT", "5500")

	b := &mapBackend{data: map[string]any{"server.port": 9999}}

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 5500 {
		t.Errorf("port = %d, want env override 5500", cfg.Server.Port)
	}
}

func TestSecretsNotInShowAll(t *testing.T) {
	t.Setenv("SPRACHLAB_LLM_API_KEY", "sk-secret")

	cfg, err := loadWith(&mapBackend{data: map[string]any{}})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	for _, ki := range ShowAll(cfg) {
		if strings.Contains(ki.Value, "sk-secret") {
			t.Errorf("secret leaked via ShowAll key %s", ki.Key)
		}
		if ki.Key == "llm.api_key" || ki.Key == "webhook.signing_secret" {
			t.Errorf("secret key %s listed in ShowAll", ki.Key)
		}
	}
}

func TestAPITokenPersisted(t *testing.T) {
	dir := t.TempDir()

	tok1, err := GetAPIToken(dir)
	if err != nil {
		t.Fatalf("GetAPIToken: %v", err)
	}
	if len(tok1) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(tok1))
	}

	tok2, err := GetAPIToken(dir)
	if err != nil {
		t.Fatalf("second GetAPIToken: %v", err)
	}
	if tok1 != tok2 {
		t.Error("token not stable across calls")
	}

	info, err := os.Stat(filepath.Join(dir, "api_token"))
	if err != nil {
		t.Fatalf("stat token file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("token file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestAPITokenEnvOverride(t *testing.T) {
	t.Setenv("SPRACHLAB_API_TOKEN", "fixed-token")

	tok, err := GetAPIToken(t.TempDir())
	if err != nil {
		t.Fatalf("GetAPIToken: %v", err)
	}
	if tok != "fixed-token" {
		t.Errorf("token = %q, want env override", tok)
	}
}
