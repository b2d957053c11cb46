package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/canflyzhou/Stewart-Platform/internal/monitoring"
)

// readDeadlineInterval bounds how long a blocked read can delay noticing
// context cancellation.
const readDeadlineInterval = 500 * time.Millisecond

// UDPSource receives tracking frames as JSON datagrams, one frame per
// datagram, from a tracker shim on the local network. This is the production
// feed: the sensor SDK runs in its own process and forwards each frame here.
type UDPSource struct {
	Addr string
}

// Run listens on the configured address and delivers decoded frames to the
// handler until the context is cancelled or the handler returns an error.
// Malformed datagrams are logged and dropped, not fatal.
func (s *UDPSource) Run(ctx context.Context, h Handler) error {
	addr, err := net.ResolveUDPAddr("udp", s.Addr)
	if err != nil {
		return fmt.Errorf("resolve tracker address %q: %w", s.Addr, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen for tracker frames: %w", err)
	}
	defer conn.Close()

	monitoring.Logf("tracking: listening for frames on %s", conn.LocalAddr())

	return s.serve(ctx, conn, h)
}

func (s *UDPSource) serve(ctx context.Context, conn *net.UDPConn, h Handler) error {
	buf := make([]byte, 65536)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Short read deadlines keep the loop responsive to cancellation.
		if err := conn.SetReadDeadline(time.Now().Add(readDeadlineInterval)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("read tracker frame: %w", err)
		}

		var frame Frame
		if err := json.Unmarshal(buf[:n], &frame); err != nil {
			monitoring.Logf("tracking: dropping malformed frame: %v", err)
			continue
		}

		if err := h(frame); err != nil {
			return err
		}
	}
}
