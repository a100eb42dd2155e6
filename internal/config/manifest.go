// Package config loads the two configuration documents the example
// programs in cmd/ read at startup: a server manifest (TOML, following the
// teacher's own support-command TOML usage) and a client secure-value map
// (YAML, following the teacher's semantic-config YAML usage).
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/kosz78/mcp-core/jsonrpc"
)

// Manifest describes a server's identity and the protocol versions it
// accepts during initialize.
type Manifest struct {
	Name             string   `toml:"name"`
	Version          string   `toml:"version"`
	ProtocolVersions []string `toml:"protocol_versions"`
	DisabledTools    []string `toml:"disabled_tools"`
	AuditLogPath     string   `toml:"audit_log_path"`
}

// LoadManifest reads a server manifest from a TOML file.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("config: loading manifest %s: %w", path, err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("config: manifest %s: missing required \"name\"", path)
	}
	if len(m.ProtocolVersions) == 0 {
		m.ProtocolVersions = []string{string(jsonrpc.ProtocolVersion20250326)}
	}
	return &m, nil
}

// Versions converts the manifest's string list into typed
// jsonrpc.ProtocolVersion values.
func (m *Manifest) Versions() []jsonrpc.ProtocolVersion {
	out := make([]jsonrpc.ProtocolVersion, len(m.ProtocolVersions))
	for i, v := range m.ProtocolVersions {
		out[i] = jsonrpc.ProtocolVersion(v)
	}
	return out
}

// IsDisabled reports whether tool name is listed in DisabledTools.
func (m *Manifest) IsDisabled(name string) bool {
	for _, d := range m.DisabledTools {
		if d == name {
			return true
		}
	}
	return false
}
