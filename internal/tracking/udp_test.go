package tracking

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoopbackConn(t *testing.T) (*net.UDPConn, *net.UDPAddr) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, conn.LocalAddr().(*net.UDPAddr)
}

func TestUDPSource_DecodesDatagrams(t *testing.T) {
	t.Parallel()

	conn, addr := newLoopbackConn(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make(chan Frame, 4)
	src := &UDPSource{}
	done := make(chan error, 1)
	go func() {
		done <- src.serve(ctx, conn, func(f Frame) error {
			frames <- f
			return nil
		})
	}()

	sender, err := net.DialUDP("udp", nil, addr)
	require.NoError(t, err)
	defer sender.Close()

	_, err = sender.Write([]byte(`{"hands":[{"palm_x":42.5,"pitch":0.1,"valid":true}]}`))
	require.NoError(t, err)
	// Malformed datagram is dropped, not fatal.
	_, err = sender.Write([]byte(`{{{`))
	require.NoError(t, err)
	_, err = sender.Write([]byte(`{"hands":[]}`))
	require.NoError(t, err)

	var got []Frame
	for len(got) < 2 {
		select {
		case f := <-frames:
			got = append(got, f)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for frames")
		}
	}

	require.Len(t, got[0].Hands, 1)
	assert.Equal(t, 42.5, got[0].Hands[0].PalmX)
	assert.True(t, got[0].Hands[0].Valid)
	assert.Empty(t, got[1].Hands)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop on cancellation")
	}
}

func TestUDPSource_BadAddress(t *testing.T) {
	t.Parallel()

	src := &UDPSource{Addr: "not-an-address:::"}
	err := src.Run(context.Background(), func(Frame) error { return nil })
	assert.Error(t, err)
}
