package proctor

import (
	"context"
	"math"
	"sync"
)

// Simulated is a scripted media device for headless runs and tests. Frames,
// native face counts and noise levels are consumed in order; when a script
// runs dry the device reports a well-lit face and silence.
type Simulated struct {
	mu         sync.Mutex
	allowVideo bool
	allowAudio bool
	frames     []*Frame
	faces      []int
	native     bool
	levels     []int
	opens      int
	stops      int
}

// NewSimulated creates a device granting the given tracks.
func NewSimulated(video, audio bool) *Simulated {
	return &Simulated{allowVideo: video, allowAudio: audio}
}

// QueueFrames appends frames for the heuristic path.
func (s *Simulated) QueueFrames(frames ...*Frame) {
	s.mu.Lock()
	s.frames = append(s.frames, frames...)
	s.mu.Unlock()
}

// QueueFaces enables the native detector and appends face counts.
func (s *Simulated) QueueFaces(counts ...int) {
	s.mu.Lock()
	s.native = true
	s.faces = append(s.faces, counts...)
	s.mu.Unlock()
}

// QueueNoise appends noise levels (0-100).
func (s *Simulated) QueueNoise(levels ...int) {
	s.mu.Lock()
	s.levels = append(s.levels, levels...)
	s.mu.Unlock()
}

// Opens reports how many streams were granted.
func (s *Simulated) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// Stops reports how many streams were stopped.
func (s *Simulated) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// Open implements MediaSource.
func (s *Simulated) Open(_ context.Context, c Constraints) (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Video && !s.allowVideo {
		return nil, ErrPermissionDenied
	}
	if c.Audio && !s.allowAudio {
		return nil, ErrPermissionDenied
	}
	s.opens++
	return &simStream{dev: s, audio: c.Audio}, nil
}

// Detect implements FaceDetector once faces have been queued.
func (s *Simulated) Detect(_ context.Context, _ *Frame) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.native {
		return 0, ErrNoNativeDetector
	}
	if len(s.faces) == 0 {
		return 1, nil
	}
	n := s.faces[0]
	s.faces = s.faces[1:]
	return n, nil
}

type simStream struct {
	dev   *Simulated
	audio bool
	once  sync.Once
}

func (st *simStream) HasVideo() bool { return true }
func (st *simStream) HasAudio() bool { return st.audio }

func (st *simStream) Frame(context.Context) (*Frame, error) {
	st.dev.mu.Lock()
	defer st.dev.mu.Unlock()
	if len(st.dev.frames) == 0 {
		return SolidFrame(canvasWidth, canvasHeight, 200, 150, 120), nil
	}
	f := st.dev.frames[0]
	st.dev.frames = st.dev.frames[1:]
	return f, nil
}

func (st *simStream) FrequencyData(context.Context) ([]byte, error) {
	st.dev.mu.Lock()
	defer st.dev.mu.Unlock()
	level := 0
	if len(st.dev.levels) > 0 {
		level = st.dev.levels[0]
		st.dev.levels = st.dev.levels[1:]
	}
	return BinsForLevel(level, 128, DefaultThresholds().NoiseGain), nil
}

func (st *simStream) Stop() error {
	st.once.Do(func() {
		st.dev.mu.Lock()
		st.dev.stops++
		st.dev.mu.Unlock()
	})
	return nil
}

// SolidFrame returns a frame filled with one colour.
func SolidFrame(width, height int, r, g, b byte) *Frame {
	pix := make([]byte, width*height*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, 255
	}
	return &Frame{Width: width, Height: height, Pix: pix}
}

// BinsForLevel builds n frequency bins whose scaled average is level.
func BinsForLevel(level, n int, gain float64) []byte {
	bins := make([]byte, n)
	if level <= 0 || n == 0 {
		return bins
	}
	total := int(math.Round(float64(level) * float64(n) / gain))
	each, rest := total/n, total%n
	for i := range bins {
		v := each
		if i < rest {
			v++
		}
		if v > 255 {
			v = 255
		}
		bins[i] = byte(v)
	}
	return bins
}
