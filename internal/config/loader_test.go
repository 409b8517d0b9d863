package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tgcourier.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TGCOURIER_TEST_TOKEN", "123:abc")

	path := writeConfig(t, `version: "1"
data_dir: ${TGCOURIER_TEST_DATA:-/var/lib/tgcourier}
log:
  level: debug
modules:
  channel.telegram:
    token: ${TGCOURIER_TEST_TOKEN}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Version != "1" {
		t.Errorf("Version = %q, want 1", cfg.Version)
	}
	if cfg.DataDir != "/var/lib/tgcourier" {
		t.Errorf("DataDir = %q, want default", cfg.DataDir)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}

	node, ok := cfg.Modules["channel.telegram"]
	if !ok {
		t.Fatal("channel.telegram missing from modules")
	}
	var mod struct {
		Token string `yaml:"token"`
	}
	if err := node.Decode(&mod); err != nil {
		t.Fatal(err)
	}
	if mod.Token != "123:abc" {
		t.Errorf("token = %q, want expanded value", mod.Token)
	}
	if len(cfg.Secrets) != 1 || cfg.Secrets[0] != "123:abc" {
		t.Errorf("Secrets = %q, want the expanded token only", cfg.Secrets)
	}
}

func TestLoad_UnresolvedVariable(t *testing.T) {
	path := writeConfig(t, "version: \"1\"\ntoken: ${TGCOURIER_TEST_UNSET_VAR}\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unresolved variable")
	}
	if !strings.Contains(err.Error(), "TGCOURIER_TEST_UNSET_VAR") {
		t.Errorf("error should name the variable: %v", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error should name the line: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TGCOURIER_TEST_SET", "value")

	tests := []struct {
		in   string
		want string
	}{
		{"a: ${TGCOURIER_TEST_SET}", "a: value"},
		{"a: ${TGCOURIER_TEST_NOPE:-fallback}", "a: fallback"},
		{"a: ${TGCOURIER_TEST_NOPE:-}", "a: "},
		{"a: ${TGCOURIER_TEST_SET:-ignored}", "a: value"},
		{"a: $NOT_EXPANDED", "a: $NOT_EXPANDED"},
	}

	for _, tt := range tests {
		got, _, err := expandEnv([]byte(tt.in))
		if err != nil {
			t.Errorf("expandEnv(%q): %v", tt.in, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("expandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpandEnv_CollectsSecrets(t *testing.T) {
	t.Setenv("TGCOURIER_TEST_BOT_TOKEN", "123456:ABCdef")
	t.Setenv("TGCOURIER_TEST_GATEWAY_PASSWORD", "hunter2")
	t.Setenv("TGCOURIER_TEST_LEVEL", "debug")

	raw := `token: ${TGCOURIER_TEST_BOT_TOKEN}
level: ${TGCOURIER_TEST_LEVEL}
password: ${TGCOURIER_TEST_GATEWAY_PASSWORD}
secret: ${TGCOURIER_TEST_EMPTY_SECRET:-}
`
	_, secrets, err := expandEnv([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"123456:ABCdef", "hunter2"}
	if strings.Join(secrets, ",") != strings.Join(want, ",") {
		t.Errorf("secrets = %q, want %q", secrets, want)
	}
}

func TestExpandEnv_ReportsEveryUnresolvedLine(t *testing.T) {
	raw := "a: ${TGCOURIER_TEST_MISSING_A}\nb: ok\nc: ${TGCOURIER_TEST_MISSING_C}\n"
	out, _, err := expandEnv([]byte(raw))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"line 1: unresolved variable: TGCOURIER_TEST_MISSING_A", "line 3: unresolved variable: TGCOURIER_TEST_MISSING_C"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should contain %q", err, want)
		}
	}
	if string(out) != raw {
		t.Errorf("unresolved expressions should be kept, got %q", out)
	}
}
