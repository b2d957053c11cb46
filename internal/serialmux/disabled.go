package serialmux

import (
	"context"
	"net/http"
	"sync"

	"github.com/canflyzhou/Stewart-Platform/internal/monitoring"
)

// DisabledSerialMux is a no-op SerialMux implementation used when running
// without the platform attached (--no-serial). Command frames are logged
// instead of written so the solver output remains observable during
// development. Subscribers are tracked so their channels can be
// deterministically closed on Unsubscribe() or Close(), allowing readers to
// unblock predictably during shutdown.
type DisabledSerialMux struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool

	// Frames records every frame passed to WriteFrame, newest last.
	Frames []string
}

func NewDisabledSerialMux() *DisabledSerialMux {
	return &DisabledSerialMux{
		subscribers: make(map[string]chan string),
	}
}

func (d *DisabledSerialMux) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)

	d.mu.Lock()
	if d.closing {
		// If already closing, return a closed channel so callers don't block.
		close(ch)
		d.mu.Unlock()
		return id, ch
	}
	d.subscribers[id] = ch
	d.mu.Unlock()
	return id, ch
}

func (d *DisabledSerialMux) Unsubscribe(id string) {
	d.mu.Lock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
	d.mu.Unlock()
}

// WriteFrame logs the frame instead of writing it to hardware.
func (d *DisabledSerialMux) WriteFrame(frame string) error {
	d.mu.Lock()
	d.Frames = append(d.Frames, frame)
	d.mu.Unlock()
	monitoring.Logf("serial disabled; frame %s", frame)
	return nil
}

func (d *DisabledSerialMux) Reopen() error { return nil }

func (d *DisabledSerialMux) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *DisabledSerialMux) Close() error {
	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		return nil
	}
	d.closing = true
	// Close all subscriber channels
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	d.mu.Unlock()
	return nil
}

func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/serial-disabled", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("serial disabled"))
	})
}
