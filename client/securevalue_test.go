package client

import (
	"os"
	"testing"

	"github.com/kosz78/mcp-core/jsonrpc"
)

func newTestClient(t *testing.T, m *SecureValueMap, strict bool) *Client {
	t.Helper()
	b := NewBuilder(nil, jsonrpc.ProtocolVersion20250326, jsonrpc.ClientInfo{Name: "t", Version: "1"})
	if m != nil {
		b.WithSecureValues(m, strict)
	}
	return b.Build()
}

func TestSubstituteRewritesNestedStringLeaves(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-x")

	m := NewSecureValueMap().
		Set("discord_token", Static("abc123")).
		Set("anthropic_api_key", Env("ANTHROPIC_API_KEY"))

	c := newTestClient(t, m, false)

	args := map[string]any{
		"token": "discord_token",
		"nested": map[string]any{
			"key":   "anthropic_api_key",
			"other": "plain",
		},
	}

	got, err := c.substitute(args)
	if err != nil {
		t.Fatalf("substitute() error = %v", err)
	}
	if got["token"] != "abc123" {
		t.Errorf("token = %v, want abc123", got["token"])
	}
	nested, ok := got["nested"].(map[string]any)
	if !ok {
		t.Fatalf("nested = %v, want map", got["nested"])
	}
	if nested["key"] != "sk-x" {
		t.Errorf("nested.key = %v, want sk-x", nested["key"])
	}
	if nested["other"] != "plain" {
		t.Errorf("nested.other = %v, want plain (untouched)", nested["other"])
	}
}

func TestSubstituteMissingEnvVarFails(t *testing.T) {
	os.Unsetenv("MCP_CORE_TEST_MISSING_VAR")
	m := NewSecureValueMap().Set("some_key", Env("MCP_CORE_TEST_MISSING_VAR"))
	c := newTestClient(t, m, false)

	_, err := c.substitute(map[string]any{"field": "some_key"})
	missingErr, ok := err.(*SecureValueMissingError)
	if !ok {
		t.Fatalf("error = %v (%T), want *SecureValueMissingError", err, err)
	}
	if missingErr.EnvVar != "MCP_CORE_TEST_MISSING_VAR" {
		t.Errorf("EnvVar = %q", missingErr.EnvVar)
	}
}

func TestSubstituteWithoutMapIsNoOp(t *testing.T) {
	c := newTestClient(t, nil, false)
	args := map[string]any{"token": "discord_token"}

	got, err := c.substitute(args)
	if err != nil {
		t.Fatalf("substitute() error = %v", err)
	}
	if got["token"] != "discord_token" {
		t.Errorf("token = %v, want unchanged", got["token"])
	}
}

func TestSubstituteIsIdempotent(t *testing.T) {
	m := NewSecureValueMap().Set("discord_token", Static("abc123"))
	c := newTestClient(t, m, false)

	first, err := c.substitute(map[string]any{"token": "discord_token"})
	if err != nil {
		t.Fatalf("first substitute() error = %v", err)
	}
	second, err := c.substitute(first)
	if err != nil {
		t.Fatalf("second substitute() error = %v", err)
	}
	if second["token"] != "abc123" {
		t.Errorf("token = %v, want abc123 unchanged on replay", second["token"])
	}
}

func TestStrictModeRejectsLeakedSecretKeyName(t *testing.T) {
	m := NewSecureValueMap().
		Set("discord_token", Static("other_key")).
		Set("other_key", Static("xyz"))
	c := newTestClient(t, m, true)

	// "discord_token" resolves to "other_key", which is itself a key name in
	// the map, so after substitution a string leaf still equals a known
	// secret key name and strict mode's re-walk must catch it.
	args := map[string]any{"label": "discord_token"}

	got, err := c.substitute(args)
	if err == nil {
		t.Fatalf("expected *StrictViolationError, got result %v", got)
	}
	if _, ok := err.(*StrictViolationError); !ok {
		t.Fatalf("error = %v (%T), want *StrictViolationError", err, err)
	}
}

func TestStrictModeAllowsCleanTree(t *testing.T) {
	m := NewSecureValueMap().Set("discord_token", Static("abc123"))
	c := newTestClient(t, m, true)

	got, err := c.substitute(map[string]any{"token": "discord_token", "other": "plain"})
	if err != nil {
		t.Fatalf("substitute() error = %v", err)
	}
	if got["token"] != "abc123" || got["other"] != "plain" {
		t.Errorf("got = %+v", got)
	}
}
