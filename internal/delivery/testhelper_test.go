package delivery

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

func retries(n int) *int { return &n }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport replays scripted errors. sendErr and editErr are consulted
// on every call with the zero-based call number; a nil result means success.
type fakeTransport struct {
	mu      sync.Mutex
	sends   []SendParams
	edits   []EditParams
	nextID  int
	sendErr func(call int, p SendParams) error
	editErr func(call int, p EditParams) error
}

func (f *fakeTransport) SendMessage(_ context.Context, p SendParams) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := len(f.sends)
	f.sends = append(f.sends, p)
	if f.sendErr != nil {
		if err := f.sendErr(call, p); err != nil {
			return 0, err
		}
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeTransport) EditMessageText(_ context.Context, p EditParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := len(f.edits)
	f.edits = append(f.edits, p)
	if f.editErr != nil {
		return f.editErr(call, p)
	}
	return nil
}

func (f *fakeTransport) sent() []SendParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SendParams(nil), f.sends...)
}

// sleepRecorder replaces real sleeps and remembers the requested waits.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

// newTestDeliverer builds a Deliverer whose retry sleeps go to retry and
// whose inter-chunk pauses go to pacing. Neither sleeps for real.
func newTestDeliverer(tr Transport, cfg Config) (d *Deliverer, retry, pacing *sleepRecorder) {
	d = New(tr, cfg, discardLogger())
	retry = &sleepRecorder{}
	pacing = &sleepRecorder{}
	d.exec.sleep = retry.sleep
	d.sleep = pacing.sleep
	return d, retry, pacing
}
