package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/kosz78/mcp-core/client"
)

// secureValuesFile mirrors the YAML shape:
//
//	strict: true
//	secure_values:
//	  discord_token:
//	    static: abc123
//	  anthropic_api_key:
//	    env: ANTHROPIC_API_KEY
type secureValuesFile struct {
	Strict       bool                        `yaml:"strict"`
	SecureValues map[string]secureValueEntry `yaml:"secure_values"`
}

type secureValueEntry struct {
	Static string `yaml:"static"`
	Env    string `yaml:"env"`
}

// LoadSecureValueMap reads a client secure-value map from a YAML file.
// Each entry must set exactly one of "static" or "env".
func LoadSecureValueMap(path string) (m *client.SecureValueMap, strict bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("config: reading secure value map %s: %w", path, err)
	}

	var file secureValuesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, false, fmt.Errorf("config: parsing secure value map %s: %w", path, err)
	}

	m = client.NewSecureValueMap()
	for key, entry := range file.SecureValues {
		switch {
		case entry.Static != "" && entry.Env != "":
			return nil, false, fmt.Errorf("config: secure value %q sets both static and env", key)
		case entry.Static == "" && entry.Env == "":
			return nil, false, fmt.Errorf("config: secure value %q sets neither static nor env", key)
		case entry.Env != "":
			m.Set(key, client.Env(entry.Env))
		default:
			m.Set(key, client.Static(entry.Static))
		}
	}

	return m, file.Strict, nil
}
