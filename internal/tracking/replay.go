package tracking

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/canflyzhou/Stewart-Platform/internal/monitoring"
)

// ReplaySource replays recorded tracking frames from a JSON-lines fixture
// file at a fixed frame interval. Used for development without a sensor
// attached.
type ReplaySource struct {
	Path     string
	Interval time.Duration
	// Loop restarts the fixture from the top when it runs out. When false
	// the source returns nil at end of file.
	Loop bool
}

// Run reads the fixture and delivers one frame per interval tick. Blank
// lines are skipped; a malformed line is logged and dropped so a partially
// hand-edited fixture still plays.
func (s *ReplaySource) Run(ctx context.Context, h Handler) error {
	frames, err := s.load()
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("fixture %q contains no frames", s.Path)
	}

	interval := s.Interval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	i := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := h(frames[i]); err != nil {
				return err
			}
			i++
			if i == len(frames) {
				if !s.Loop {
					return nil
				}
				i = 0
			}
		}
	}
}

func (s *ReplaySource) load() ([]Frame, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	var frames []Frame
	scan := bufio.NewScanner(f)
	line := 0
	for scan.Scan() {
		line++
		text := strings.TrimSpace(scan.Text())
		if text == "" {
			continue
		}
		var frame Frame
		if err := json.Unmarshal([]byte(text), &frame); err != nil {
			monitoring.Logf("tracking: skipping fixture line %d: %v", line, err)
			continue
		}
		frames = append(frames, frame)
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return frames, nil
}
