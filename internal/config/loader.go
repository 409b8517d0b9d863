package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// secretMarkers flag variable names whose values are credentials, such as
// TELEGRAM_BOT_TOKEN or GATEWAY_PASSWORD.
var secretMarkers = []string{"TOKEN", "SECRET", "PASSWORD", "PASSWD", "API_KEY", "CREDENTIAL"}

// Load reads a YAML configuration file, expands environment variables,
// and parses it into a Config struct. Values substituted for credential
// variables are collected in Config.Secrets.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded, secrets, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: expanding variables in %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.Secrets = secrets

	return &cfg, nil
}

// expandEnv replaces ${VAR} and ${VAR:-default} patterns in raw YAML bytes.
// It returns the non-empty values of credential variables, and an error
// listing every unresolved variable (no default, no env value) by line.
func expandEnv(raw []byte) ([]byte, []string, error) {
	var (
		out     []byte
		secrets []string
		errs    []error
		last    int
	)

	for _, m := range envPattern.FindAllSubmatchIndex(raw, -1) {
		out = append(out, raw[last:m[0]]...)
		last = m[1]

		name := string(raw[m[2]:m[3]])
		value, ok := os.LookupEnv(name)
		if !ok && m[4] >= 0 {
			value, ok = string(raw[m[4]:m[5]]), true
		}
		if !ok {
			line := 1 + bytes.Count(raw[:m[0]], []byte("\n"))
			errs = append(errs, fmt.Errorf("line %d: unresolved variable: %s", line, name))
			out = append(out, raw[m[0]:m[1]]...)
			continue
		}

		if value != "" && isSecretName(name) {
			secrets = append(secrets, value)
		}
		out = append(out, value...)
	}
	out = append(out, raw[last:]...)

	return out, secrets, errors.Join(errs...)
}

func isSecretName(name string) bool {
	upper := strings.ToUpper(name)
	for _, marker := range secretMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}
