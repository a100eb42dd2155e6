package client

import (
	"fmt"
	"os"
)

// SecureValue is a tagged variant: either a static string or the name of
// an environment variable to resolve at substitution time.
type SecureValue struct {
	static string
	envVar string
	isEnv  bool
}

// Static constructs a SecureValue that always resolves to s.
func Static(s string) SecureValue { return SecureValue{static: s} }

// Env constructs a SecureValue that resolves to the current value of the
// named environment variable at substitution time.
func Env(varName string) SecureValue { return SecureValue{envVar: varName, isEnv: true} }

func (v SecureValue) resolve() (string, error) {
	if !v.isEnv {
		return v.static, nil
	}
	val, ok := os.LookupEnv(v.envVar)
	if !ok {
		return "", &SecureValueMissingError{EnvVar: v.envVar}
	}
	return val, nil
}

// SecureValueMissingError is returned when an Env-backed SecureValue's
// environment variable is unset at substitution time.
type SecureValueMissingError struct{ EnvVar string }

func (e *SecureValueMissingError) Error() string {
	return fmt.Sprintf("client: secure value env var %q is not set", e.EnvVar)
}

// StrictViolationError is returned in strict mode when, after
// substitution, a string leaf still equals a known secret key name (for
// example because a resolved secret value is itself the name of a key).
type StrictViolationError struct{ Key string }

func (e *StrictViolationError) Error() string {
	return fmt.Sprintf("client: strict mode: key %q matches a known secret name but was not substituted", e.Key)
}

// SecureValueMap maps a key name to the secret it should be rewritten to.
type SecureValueMap struct {
	values map[string]SecureValue
}

// NewSecureValueMap constructs an empty SecureValueMap.
func NewSecureValueMap() *SecureValueMap {
	return &SecureValueMap{values: make(map[string]SecureValue)}
}

// Set registers key to resolve to v.
func (m *SecureValueMap) Set(key string, v SecureValue) *SecureValueMap {
	m.values[key] = v
	return m
}

// substitute walks arguments recursively, rewriting every string leaf that
// matches a key in m to its resolved secret value. Keys are never
// rewritten; non-string leaves are untouched. Substitution is single-pass:
// a resolved value is not itself substituted again. If strict is set, a
// second pass fails with *StrictViolationError if any string leaf of the
// rewritten tree exactly equals a key in m, which happens when a resolved
// secret value collides with a key name.
func (c *Client) substitute(arguments map[string]any) (map[string]any, error) {
	if c.secureValues == nil || len(arguments) == 0 {
		return arguments, nil
	}

	rewritten, err := rewriteTree(arguments, c.secureValues)
	if err != nil {
		return nil, err
	}

	if c.strict {
		if key, found := findUnsubstitutedKey(rewritten, c.secureValues); found {
			return nil, &StrictViolationError{Key: key}
		}
	}

	out, ok := rewritten.(map[string]any)
	if !ok {
		return arguments, nil
	}
	return out, nil
}

// rewriteTree recursively rewrites string leaves matching a SecureValueMap
// key. Objects and arrays are walked in place (on copies); every other
// JSON value type is returned unchanged.
func rewriteTree(v any, m *SecureValueMap) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			rewritten, err := rewriteTree(child, m)
			if err != nil {
				return nil, err
			}
			out[k] = rewritten
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			rewritten, err := rewriteTree(child, m)
			if err != nil {
				return nil, err
			}
			out[i] = rewritten
		}
		return out, nil
	case string:
		if sv, ok := m.values[val]; ok {
			return sv.resolve()
		}
		return val, nil
	default:
		return val, nil
	}
}

// findUnsubstitutedKey recursively looks for a string leaf that equals a
// known secret key name in m. Returns the offending key and true if found.
func findUnsubstitutedKey(v any, m *SecureValueMap) (string, bool) {
	switch val := v.(type) {
	case map[string]any:
		for _, child := range val {
			if key, found := findUnsubstitutedKey(child, m); found {
				return key, true
			}
		}
	case []any:
		for _, child := range val {
			if key, found := findUnsubstitutedKey(child, m); found {
				return key, true
			}
		}
	case string:
		if _, known := m.values[val]; known {
			return val, true
		}
	}
	return "", false
}
