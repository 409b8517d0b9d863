package gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/tgcourier/internal/core"
	"github.com/flemzord/tgcourier/internal/delivery"
	"gopkg.in/yaml.v3"
)

const testBearer = "test-admin-token"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustYAMLNode(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	return doc.Content[0]
}

// fakeTransport accepts every send unless sendErr says otherwise.
type fakeTransport struct {
	mu      sync.Mutex
	sends   []delivery.SendParams
	edits   []delivery.EditParams
	sendErr func(call int) error
	editErr error
}

func (f *fakeTransport) SendMessage(_ context.Context, p delivery.SendParams) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := len(f.sends)
	f.sends = append(f.sends, p)
	if f.sendErr != nil {
		if err := f.sendErr(call); err != nil {
			return 0, err
		}
	}
	return 100 + call, nil
}

func (f *fakeTransport) EditMessageText(_ context.Context, p delivery.EditParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, p)
	return f.editErr
}

func (f *fakeTransport) sent() []delivery.SendParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]delivery.SendParams(nil), f.sends...)
}

// fakeChannel satisfies Channel with a real Deliverer over a fakeTransport.
type fakeChannel struct {
	deliverer *delivery.Deliverer
	mode      delivery.Mode
	healthErr error
}

func (c *fakeChannel) Deliverer() *delivery.Deliverer      { return c.deliverer }
func (c *fakeChannel) DefaultMode() delivery.Mode          { return c.mode }
func (c *fakeChannel) HealthCheck(_ context.Context) error { return c.healthErr }

func newFakeChannel(tr *fakeTransport) *fakeChannel {
	cfg := delivery.Config{MaxTextLength: 20, ChunkDelay: time.Millisecond}
	return &fakeChannel{deliverer: delivery.New(tr, cfg, discardLogger())}
}

// newTestHandler provisions a gateway around ch without listening and
// returns its router.
func newTestHandler(t *testing.T, ch Channel, cfg Config) (*Gateway, http.Handler) {
	t.Helper()

	g := &Gateway{config: cfg}
	if err := g.Provision(core.NewAppContext(discardLogger(), t.TempDir())); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	g.channel = ch
	if err := registerMetrics(g.registry, g.requests, ch.Deliverer().Stats); err != nil {
		t.Fatalf("registerMetrics: %v", err)
	}
	g.startedAt = time.Now()
	return g, g.buildRouter()
}

func authedConfig() Config {
	return Config{Auth: AuthConfig{BearerToken: testBearer}}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+testBearer)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
