package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kosz78/mcp-core/jsonrpc"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadManifestDefaultsProtocolVersions(t *testing.T) {
	path := writeFile(t, `name = "echo-server"
version = "1.0.0"
`)
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	versions := m.Versions()
	if len(versions) != 1 || versions[0] != jsonrpc.ProtocolVersion20250326 {
		t.Errorf("Versions() = %v, want [%s]", versions, jsonrpc.ProtocolVersion20250326)
	}
}

func TestLoadManifestRequiresName(t *testing.T) {
	path := writeFile(t, `version = "1.0.0"`)
	if _, err := LoadManifest(path); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestManifestIsDisabled(t *testing.T) {
	path := writeFile(t, `name = "echo-server"
disabled_tools = ["slow-echo"]
`)
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if !m.IsDisabled("slow-echo") {
		t.Error("expected slow-echo to be disabled")
	}
	if m.IsDisabled("echo") {
		t.Error("echo should not be disabled")
	}
}
