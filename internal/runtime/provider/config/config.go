package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	envSecretRefPrefix = "env://"
	secretRefSuffix    = "_SECRET_REF"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

// Resolver reads provider credentials and endpoints from an environment.
// A variable may hold a literal value or an "env://OTHER_VAR" reference; a
// companion NAME_SECRET_REF variable, when set, takes precedence over NAME.
type Resolver struct {
	lookup LookupFunc
}

// FromEnv resolves against the process environment.
func FromEnv() Resolver {
	return Resolver{lookup: os.LookupEnv}
}

// WithLookup resolves against a custom lookup, mostly for tests.
func WithLookup(lookup LookupFunc) Resolver {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	return Resolver{lookup: lookup}
}

// Value returns the resolved value of name, or fallback when unset.
func (r Resolver) Value(name string, fallback string) string {
	if ref := r.raw(name + secretRefSuffix); ref != "" {
		if value, err := r.SecretRef(ref); err == nil {
			return value
		}
	}
	raw := r.raw(name)
	if raw == "" {
		return fallback
	}
	if strings.HasPrefix(raw, envSecretRefPrefix) {
		value, err := r.SecretRef(raw)
		if err != nil {
			return fallback
		}
		return value
	}
	return raw
}

// Required resolves name and fails when nothing is configured.
func (r Resolver) Required(name string) (string, error) {
	value := r.Value(name, "")
	if value == "" {
		return "", fmt.Errorf("%s is not configured", strings.ToLower(name))
	}
	return value, nil
}

// Enabled parses name as a boolean flag.
func (r Resolver) Enabled(name string, fallback bool) bool {
	raw := r.Value(name, "")
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

// SecretRef resolves "env://VARIABLE_NAME" or a bare "VARIABLE_NAME".
func (r Resolver) SecretRef(ref string) (string, error) {
	name, err := parseSecretRefName(ref)
	if err != nil {
		return "", err
	}
	value := r.raw(name)
	if value == "" {
		return "", fmt.Errorf("secret_ref %q resolved empty value", name)
	}
	return value, nil
}

func (r Resolver) raw(name string) string {
	if r.lookup == nil {
		return ""
	}
	value, ok := r.lookup(name)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

// RedactSecret returns a fixed marker for non-empty secret material.
func RedactSecret(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return "***redacted***"
}

func parseSecretRefName(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return "", fmt.Errorf("secret_ref is required")
	}
	if strings.HasPrefix(trimmed, envSecretRefPrefix) {
		name := strings.TrimSpace(strings.TrimPrefix(trimmed, envSecretRefPrefix))
		if name == "" {
			return "", fmt.Errorf("secret_ref %q is missing env var name", ref)
		}
		if strings.Contains(name, "/") {
			return "", fmt.Errorf("secret_ref %q contains unsupported path separator", ref)
		}
		return name, nil
	}
	if strings.Contains(trimmed, "://") {
		return "", fmt.Errorf("secret_ref %q uses unsupported scheme", ref)
	}
	if strings.Contains(trimmed, "/") {
		return "", fmt.Errorf("secret_ref %q contains unsupported path separator", ref)
	}
	return trimmed, nil
}
