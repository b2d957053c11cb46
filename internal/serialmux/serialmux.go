// Package serialmux owns the serial link to the platform microcontroller.
// It writes actuator command frames with a bounded write timeout, classifies
// timeouts so the bridge can recover by reopening the device, and fans the
// firmware's telemetry lines out to multiple subscribers.
package serialmux

import (
	"bufio"
	"bytes"
	"context"
	crand "crypto/rand"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"tailscale.com/tsweb"

	"github.com/canflyzhou/Stewart-Platform/internal/monitoring"
)

var (
	// ErrWriteFailed reports a short write to the serial port.
	ErrWriteFailed = errors.New("short write to serial port")

	// ErrWriteTimeout reports a write that did not complete within the
	// configured timeout. The bridge treats this as transient: it reopens
	// the link and drops the frame rather than retrying it.
	ErrWriteTimeout = errors.New("serial write timed out")
)

// DefaultWriteTimeout bounds a single command frame write. A healthy link
// moves a frame in well under a millisecond, so anything near a second means
// the device has stalled.
const DefaultWriteTimeout = 1 * time.Second

//go:embed templates/*
var adminTemplateFS embed.FS

var sendFrameTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/send-frame.html.tmpl"))

// SerialMux is a generic serial link owner: a single writer of command
// frames plus a fan-out of telemetry lines read back from the device.
type SerialMux[T SerialPorter] struct {
	port T
	// open recreates the port after a write timeout. Captured at
	// construction so Reopen never needs the original path or mode.
	open         func() (T, error)
	writeTimeout time.Duration
	generation   int

	portMu       sync.Mutex
	writeMu      sync.Mutex
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// SerialMuxInterface defines the interface for the SerialMux type.
type SerialMuxInterface interface {
	// Subscribe creates a new channel for receiving telemetry lines from
	// the device. The channel ID identifies the channel when unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// WriteFrame writes one command frame to the serial port, exactly as
	// given (no delimiter is appended; the frame carries its own angle
	// brackets). A write exceeding the write timeout returns
	// ErrWriteTimeout.
	WriteFrame(string) error
	// Reopen closes the device and opens a fresh handle, used to recover
	// from a write timeout.
	Reopen() error
	// Monitor reads telemetry lines from the serial port and sends them to
	// subscriber channels until the context is cancelled.
	Monitor(context.Context) error
	// Close closes all subscribed channels and the serial port. Safe on
	// every exit path.
	Close() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given
	// HTTP mux served at /debug/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// NewSerialMux creates a SerialMux over an open port. The open function is
// used by Reopen to recreate the port after a fault.
func NewSerialMux[T SerialPorter](port T, open func() (T, error)) *SerialMux[T] {
	return &SerialMux[T]{
		port:         port,
		open:         open,
		writeTimeout: DefaultWriteTimeout,
		subscribers:  make(map[string]chan string),
	}
}

// SetWriteTimeout overrides the write timeout. Values <= 0 restore the
// default.
func (s *SerialMux[T]) SetWriteTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultWriteTimeout
	}
	s.writeMu.Lock()
	s.writeTimeout = d
	s.writeMu.Unlock()
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialMux[T]) Subscribe() (string, chan string) {
	id := randomID()
	// Buffered so a briefly-busy subscriber does not lose lines to the
	// non-blocking fan-out in monitorPort.
	ch := make(chan string, 16)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the serial mux.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// WriteFrame writes a command frame to the serial port. The write runs on
// its own goroutine so a wedged device surfaces as ErrWriteTimeout instead
// of stalling the frame callback forever; the abandoned write is cut loose
// when Reopen closes the port.
func (s *SerialMux[T]) WriteFrame(frame string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.portMu.Lock()
	port := s.port
	s.portMu.Unlock()

	type writeResult struct {
		n   int
		err error
	}
	done := make(chan writeResult, 1)
	go func() {
		n, err := port.Write([]byte(frame))
		done <- writeResult{n, err}
	}()

	timer := time.NewTimer(s.writeTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			return res.err
		}
		if res.n != len(frame) {
			return ErrWriteFailed
		}
		return nil
	case <-timer.C:
		return ErrWriteTimeout
	}
}

// Reopen closes the current port and opens a fresh one. The frame whose
// write faulted is not retried; the next paced frame uses the new handle.
func (s *SerialMux[T]) Reopen() error {
	s.portMu.Lock()
	defer s.portMu.Unlock()

	if err := s.port.Close(); err != nil {
		monitoring.Logf("serialmux: close before reopen: %v", err)
	}

	port, err := s.open()
	if err != nil {
		return fmt.Errorf("reopen serial port: %w", err)
	}
	s.port = port
	s.generation++
	return nil
}

// Monitor reads telemetry lines from the device and fans them out to
// subscribers. It survives Reopen by restarting its scanner on the new port
// handle; any other read failure is returned.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	for {
		s.portMu.Lock()
		port := s.port
		generation := s.generation
		s.portMu.Unlock()

		err := s.monitorPort(ctx, port)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.closingMu.Lock()
		closing := s.closing
		s.closingMu.Unlock()
		if closing {
			return nil
		}

		s.portMu.Lock()
		reopened := s.generation != generation
		s.portMu.Unlock()
		if reopened {
			// The scanner died reading a port that Reopen closed
			// underneath it. Pick up the new handle and keep going.
			continue
		}
		return err
	}
}

func (s *SerialMux[T]) monitorPort(ctx context.Context, port T) error {
	scan := bufio.NewScanner(port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// start a goroutine to read from the serial port & send any lines that
	// are scanned to lineChan, and any errors to scanErrChan.
	//
	// the blocking scan.Scan will not interfere with our outer loop awaiting
	// lines & context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			// if the channel is closed, we're done reading from the port
			if !ok {
				if err := scan.Err(); err != nil {
					return err
				}
				return nil
			}

			s.closingMu.Lock()
			if s.closing {
				s.closingMu.Unlock()
				return nil
			}
			s.closingMu.Unlock()

			s.subscriberMu.Lock()
			for _, ch := range s.subscribers {
				select {
				case ch <- line:
				default:
					// if the channel is full/blocking skip so as not to
					// block the outer loop
				}
			}
			s.subscriberMu.Unlock()
		}
	}
}

func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subscriberMu.Unlock()

	s.portMu.Lock()
	defer s.portMu.Unlock()
	return s.port.Close()
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	// Basic frame sender / live tail monitor using the two API endpoints
	// below.
	debug.HandleFunc("send-frame", "send a command frame to the platform", func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		if err := sendFrameTemplate.Execute(buf, nil); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		io.Copy(w, buf)
	})

	// API endpoint to write a raw command frame to the serial port.
	debug.HandleSilentFunc("send-frame-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		frame := strings.TrimSpace(r.FormValue("frame"))
		if frame == "" {
			http.Error(w, "Missing frame", http.StatusBadRequest)
			return
		}
		if err := s.WriteFrame(frame); err != nil {
			http.Error(w, "Failed to write frame", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, fmt.Sprintf("Wrote frame %q to serial port", frame))
	})

	// API endpoint to issue Server-Side Events (SSE) in response to
	// telemetry lines coming back from the firmware.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		// Send initial ping to establish connection
		w.Write([]byte(": ping\n\n"))
		w.(http.Flusher).Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					// Channel closed, exit gracefully
					return
				}
				_, err := w.Write([]byte(fmt.Sprintf("data: %s\n\n", payload)))
				if err != nil {
					return
				}
				w.(http.Flusher).Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	debug.HandleSilentFunc("tail.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		// serve tail.js from adminTemplateFS
		f, err := adminTemplateFS.Open("templates/tail.js")
		if err != nil {
			http.Error(w, "Failed to open tail.js", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		io.Copy(w, f)
	})
}
