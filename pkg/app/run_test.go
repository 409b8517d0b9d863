package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/tgcourier/internal/config"
	"github.com/flemzord/tgcourier/internal/delivery"
	"github.com/flemzord/tgcourier/internal/security"
)

const testToken = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw0"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tgcourier.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestResolveConfigPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "tgcourier")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := filepath.Join(cfgDir, "tgcourier.yaml")
	if err := os.WriteFile(cfgPath, []byte("version: \"1\""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfgPath {
		t.Errorf("got %q, want %q", got, cfgPath)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Chdir(t.TempDir())

	if _, err := ResolveConfigPath(); err == nil {
		t.Error("expected error when no config file found")
	}
}

func TestDefaultDataDir_XDGDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got, want := DefaultDataDir(), "/custom/data/tgcourier"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDefaultDataDir_Fallback(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")

	home, _ := os.UserHomeDir()
	if got, want := DefaultDataDir(), filepath.Join(home, ".local", "share", "tgcourier"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRun_InvalidConfigPath(t *testing.T) {
	if err := Run(context.Background(), RunParams{ConfigPath: "/nonexistent/config.yaml"}); err == nil {
		t.Error("expected error for invalid config path")
	}
}

func TestRun_InvalidConfigContent(t *testing.T) {
	path := writeConfig(t, "not: valid: yaml: [")
	if err := Run(context.Background(), RunParams{ConfigPath: path}); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestRun_ValidationFailure(t *testing.T) {
	tests := map[string]string{
		"no version":   "modules:\n  channel.telegram: {}",
		"no channel":   "version: \"1\"\nmodules:\n  gateway.http: {}",
		"unknown":      "version: \"1\"\nmodules:\n  channel.telegram: {}\n  foo.bar: {}",
		"bad loglevel": "version: \"1\"\nlog:\n  level: loud\nmodules:\n  channel.telegram: {}",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if err := Run(context.Background(), RunParams{ConfigPath: writeConfig(t, body)}); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestPrepare(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, `version: "1"
data_dir: `+dataDir+`
log:
  level: debug
  format: json
modules:
  channel.telegram:
    token: "`+testToken+`"
`)

	var buf bytes.Buffer
	env, err := Prepare(RunParams{ConfigPath: path, LogOutput: &buf})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if env.ConfigPath != path {
		t.Errorf("ConfigPath = %q", env.ConfigPath)
	}
	if env.AppCtx.DataDir != dataDir {
		t.Errorf("DataDir = %q, want %q", env.AppCtx.DataDir, dataDir)
	}
	if _, ok := env.AppCtx.GetService("security.redactor"); !ok {
		t.Error("redactor service not registered")
	}

	env.Logger.Debug("calling api", "url", "https://api.telegram.org/bot"+testToken+"/getMe")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log output is not JSON: %v\n%s", err, buf.String())
	}
	if strings.Contains(buf.String(), testToken) {
		t.Errorf("token leaked into logs: %s", buf.String())
	}
	if !strings.Contains(line["url"].(string), security.RedactPlaceholder) {
		t.Errorf("url = %v, want redacted", line["url"])
	}
}

func TestPrepare_RedactsSecretsFromEnv(t *testing.T) {
	// Not shaped like a bot token, so only the literal from the env var
	// can catch it.
	const secret = "staging-relay-credential-7731"
	t.Setenv("TGCOURIER_TEST_BOT_TOKEN", secret)
	path := writeConfig(t, `version: "1"
modules:
  channel.telegram:
    token: ${TGCOURIER_TEST_BOT_TOKEN}
`)

	var buf bytes.Buffer
	env, err := Prepare(RunParams{ConfigPath: path, DataDir: t.TempDir(), LogOutput: &buf})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	env.Logger.Info("request failed", "detail", "upstream rejected "+secret)

	if strings.Contains(buf.String(), secret) {
		t.Errorf("secret leaked into logs: %s", buf.String())
	}
	if !strings.Contains(buf.String(), security.RedactPlaceholder) {
		t.Errorf("expected redaction placeholder in %s", buf.String())
	}
}

func TestPrepare_DataDirOverride(t *testing.T) {
	path := writeConfig(t, "version: \"1\"\ndata_dir: /from/config\nmodules:\n  channel.telegram: {}\n")
	override := t.TempDir()

	env, err := Prepare(RunParams{ConfigPath: path, DataDir: override, LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if env.AppCtx.DataDir != override {
		t.Errorf("DataDir = %q, want override %q", env.AppCtx.DataDir, override)
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LogConfig{Level: "WARN"}, &buf, security.NewRedactor())

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("output = %q", buf.String())
	}
}

// fakeBotAPI answers sendMessage and editMessageText like the Bot API.
type fakeBotAPI struct {
	mu      sync.Mutex
	methods []string
	texts   []string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	f.methods = append(f.methods, method)
	f.texts = append(f.texts, body.Text)
	id := len(f.methods)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getMe":
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Jira","username":"jira_bot"}}`)
	case "sendMessage", "editMessageText":
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":`+itoa(id)+`,"chat":{"id":42}}}`)
	default:
		_, _ = io.WriteString(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestCourier(t *testing.T) {
	api := &fakeBotAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	path := writeConfig(t, `version: "1"
modules:
  channel.telegram:
    token: "`+testToken+`"
    api_url: `+srv.URL+`
    default_mode: strict
`)
	env, err := Prepare(RunParams{ConfigPath: path, DataDir: t.TempDir(), LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	c, err := OpenCourier(env)
	if err != nil {
		t.Fatalf("OpenCourier: %v", err)
	}
	defer c.Close()

	mode, err := c.Mode("")
	if err != nil || mode != delivery.ModeStrict {
		t.Fatalf("default mode = %v, %v; want strict", mode, err)
	}
	if _, err := c.Mode("html"); err == nil {
		t.Error("expected error for unknown mode")
	}

	out, err := c.Send(context.Background(), delivery.SendRequest{ChatID: 42, Text: "v1.2 shipped!", Mode: mode})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(out.MessageIDs) != 1 || out.MessageIDs[0] != 1 {
		t.Errorf("MessageIDs = %v, want [1]", out.MessageIDs)
	}

	if _, err := c.Edit(context.Background(), delivery.EditRequest{ChatID: 42, MessageID: 1, Text: "done", Mode: delivery.ModeNone}); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.methods) != 2 || api.methods[0] != "sendMessage" || api.methods[1] != "editMessageText" {
		t.Errorf("methods = %v", api.methods)
	}
	if api.texts[0] != `v1\.2 shipped\!` {
		t.Errorf("sent text = %q, want escaped", api.texts[0])
	}
	if got := c.Stats(); got.Sends != 1 || got.Edits != 1 {
		t.Errorf("stats = %+v", got)
	}
}

func TestCourier_InvalidTarget(t *testing.T) {
	path := writeConfig(t, "version: \"1\"\nmodules:\n  channel.telegram:\n    token: \""+testToken+"\"\n")
	env, err := Prepare(RunParams{ConfigPath: path, DataDir: t.TempDir(), LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	c, err := OpenCourier(env)
	if err != nil {
		t.Fatalf("OpenCourier: %v", err)
	}
	defer c.Close()

	_, err = c.Send(context.Background(), delivery.SendRequest{Text: "no chat"})
	if !errors.Is(err, delivery.ErrInvalidTarget) {
		t.Errorf("err = %v, want ErrInvalidTarget", err)
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForLog(t *testing.T, logs *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(logs.String(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("log never contained %q:\n%s", want, logs.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRun_ReloadsOnFileChange(t *testing.T) {
	srv := httptest.NewServer(&fakeBotAPI{})
	defer srv.Close()

	config := func(mode string) string {
		return "version: \"1\"\nmodules:\n  channel.telegram:\n    token: \"" + testToken +
			"\"\n    api_url: " + srv.URL + "\n    default_mode: " + mode + "\n"
	}
	path := writeConfig(t, config("none"))

	logs := &syncBuffer{}
	dataDir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, RunParams{
			ConfigPath:    path,
			DataDir:       dataDir,
			LogOutput:     logs,
			WatchInterval: 20 * time.Millisecond,
		})
	}()

	waitForLog(t, logs, "all modules started")
	if err := os.WriteFile(path, []byte(config("strict")), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	waitForLog(t, logs, "default mode changed")

	// A broken file is rejected and the process keeps running.
	if err := os.WriteFile(path, []byte("version: \"2\"\n"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	waitForLog(t, logs, "reload failed")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !strings.Contains(logs.String(), "shutdown complete") {
		t.Error("missing shutdown log")
	}
}
