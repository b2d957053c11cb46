package bridge

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/canflyzhou/Stewart-Platform/internal/kinematics"
	"github.com/canflyzhou/Stewart-Platform/internal/monitoring"
	"github.com/canflyzhou/Stewart-Platform/internal/serialmux"
	"github.com/canflyzhou/Stewart-Platform/internal/tracking"
)

// FrameLink is the slice of the serial mux the streamer needs: writing
// command frames and recovering the link after a write timeout.
type FrameLink interface {
	WriteFrame(string) error
	Reopen() error
}

// Recorder persists what the streamer sends. *db.DB satisfies it; tests
// substitute an in-memory implementation.
type Recorder interface {
	RecordTransmission(sessionID, frame string, lengths [kinematics.NumActuators]float64) error
	RecordTimeout(sessionID string) error
}

// State is a point-in-time snapshot of the streamer, served by the HTTP
// API and the admin pages.
type State struct {
	SessionID     string                           `json:"session_id"`
	FramesSeen    uint64                           `json:"frames_seen"`
	ValidFrames   uint64                           `json:"valid_frames"`
	Transmissions uint64                           `json:"transmissions"`
	Timeouts      uint64                           `json:"timeouts"`
	LastFrame     string                           `json:"last_frame,omitempty"`
	LastLengths   [kinematics.NumActuators]float64 `json:"last_lengths"`
	LastPose      kinematics.Pose                  `json:"last_pose"`
}

// Streamer turns tracking frames into actuator command frames. Sensor
// frames arrive far faster than the platform can move, so only one frame
// in every skip window is transmitted; the rest advance a counter. A
// frame with no usable hand leaves the counter alone, which keeps the
// transmit cadence tied to hand motion rather than wall time.
type Streamer struct {
	solver   *kinematics.Solver
	link     FrameLink
	recorder Recorder
	skip     int

	mu        sync.Mutex
	sessionID string
	count     int
	state     State
}

// NewStreamer builds a streamer with a fresh session ID. recorder may be
// nil, in which case nothing is persisted.
func NewStreamer(solver *kinematics.Solver, link FrameLink, recorder Recorder, skipRate int) *Streamer {
	id := uuid.New().String()
	return &Streamer{
		solver:    solver,
		link:      link,
		recorder:  recorder,
		skip:      skipRate,
		sessionID: id,
		state:     State{SessionID: id},
	}
}

// SessionID reports the identifier new records are filed under.
func (s *Streamer) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// State returns a copy of the current streamer state.
func (s *Streamer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HandleFrame processes one tracking frame. It solves the actuator
// lengths for the rightmost valid hand and, when the skip counter has run
// out, writes the rendered command frame to the link. A write timeout is
// survivable: the event is recorded, the port is reopened, and streaming
// continues with the next frame. Any other link error is returned to the
// caller, which stops the source.
func (s *Streamer) HandleFrame(frame tracking.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.FramesSeen++

	hand, ok := frame.Rightmost()
	if !ok || !hand.Valid {
		return nil
	}
	s.state.ValidFrames++

	pose := hand.Pose()
	lengths := s.solver.Lengths(pose)
	s.state.LastPose = pose
	s.state.LastLengths = lengths

	if s.count <= s.skip {
		s.count++
		return nil
	}
	s.count = 0

	out := assembleOutput(lengths)
	if err := s.link.WriteFrame(out); err != nil {
		if !errors.Is(err, serialmux.ErrWriteTimeout) {
			return err
		}
		monitoring.Logf("bridge: write timed out, reopening port: %v", err)
		s.state.Timeouts++
		if s.recorder != nil {
			if rerr := s.recorder.RecordTimeout(s.sessionID); rerr != nil {
				monitoring.Logf("bridge: recording timeout: %v", rerr)
			}
		}
		if rerr := s.link.Reopen(); rerr != nil {
			return rerr
		}
		return nil
	}

	s.state.Transmissions++
	s.state.LastFrame = out
	monitoring.Logf("bridge: sent %s for %s", out, pose)
	if s.recorder != nil {
		if rerr := s.recorder.RecordTransmission(s.sessionID, out, lengths); rerr != nil {
			monitoring.Logf("bridge: recording transmission: %v", rerr)
		}
	}
	return nil
}
