package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeYAML(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secure-values.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadSecureValueMapParsesStrictAndEntries(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-x")
	path := writeYAML(t, `strict: true
secure_values:
  discord_token:
    static: abc123
  anthropic_api_key:
    env: ANTHROPIC_API_KEY
`)

	m, strict, err := LoadSecureValueMap(path)
	if err != nil {
		t.Fatalf("LoadSecureValueMap() error = %v", err)
	}
	if !strict {
		t.Error("strict = false, want true")
	}
	if m == nil {
		t.Fatal("expected a non-nil SecureValueMap")
	}
}

func TestLoadSecureValueMapRejectsBothStaticAndEnv(t *testing.T) {
	path := writeYAML(t, `secure_values:
  bad_entry:
    static: abc123
    env: SOME_VAR
`)
	if _, _, err := LoadSecureValueMap(path); err == nil {
		t.Fatal("expected error for an entry setting both static and env")
	}
}

func TestLoadSecureValueMapMissingFile(t *testing.T) {
	if _, _, err := LoadSecureValueMap(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}
