package tracking

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

func TestReplaySource_DeliversFramesInOrder(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, `
{"hands":[{"palm_x":1,"valid":true}]}
{"hands":[{"palm_x":2,"valid":true}]}
{"hands":[]}
`)

	src := &ReplaySource{Path: path, Interval: time.Millisecond}

	var got []Frame
	err := src.Run(context.Background(), func(f Frame) error {
		got = append(got, f)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, 1.0, got[0].Hands[0].PalmX)
	assert.Equal(t, 2.0, got[1].Hands[0].PalmX)
	assert.Empty(t, got[2].Hands)
}

func TestReplaySource_SkipsMalformedLines(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, `
{"hands":[{"palm_x":1,"valid":true}]}
not json
{"hands":[{"palm_x":2,"valid":true}]}
`)

	src := &ReplaySource{Path: path, Interval: time.Millisecond}

	count := 0
	err := src.Run(context.Background(), func(Frame) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReplaySource_HandlerErrorStopsRun(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, `{"hands":[]}
{"hands":[]}
`)

	src := &ReplaySource{Path: path, Interval: time.Millisecond}

	wantErr := errors.New("boom")
	calls := 0
	err := src.Run(context.Background(), func(Frame) error {
		calls++
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls)
}

func TestReplaySource_LoopHonoursContext(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, `{"hands":[]}
`)

	src := &ReplaySource{Path: path, Interval: time.Millisecond, Loop: true}

	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	err := src.Run(ctx, func(Frame) error {
		count++
		if count == 5 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, count, 5)
}

func TestReplaySource_EmptyFixture(t *testing.T) {
	t.Parallel()

	src := &ReplaySource{Path: writeFixture(t, "\n\n"), Interval: time.Millisecond}
	err := src.Run(context.Background(), func(Frame) error { return nil })
	assert.Error(t, err)
}
