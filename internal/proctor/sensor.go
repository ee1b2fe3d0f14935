// Package proctor acquires camera and microphone streams and turns them into
// face-presence and noise-level readings. It knows nothing about exams.
package proctor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/model"
)

var (
	// ErrPermissionDenied is returned by a MediaSource that refused a request.
	ErrPermissionDenied = errors.New("media permission denied")
	// ErrCameraUnavailable means neither audio+video nor video-only could be opened.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrNoNativeDetector is returned when the runtime exposes no face detector.
	ErrNoNativeDetector = errors.New("native face detector unavailable")
	// ErrNoStream is returned when sampling without an acquired stream.
	ErrNoStream = errors.New("no media stream")
)

// Constraints describe which tracks to request.
type Constraints struct {
	Video bool `json:"video"`
	Audio bool `json:"audio"`
}

// Frame is an RGBA image, 4 bytes per pixel, row-major.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
	// NativeFaces is the face count reported by a native detector that ran
	// where the frame was captured, if any.
	NativeFaces *int
}

// Stream is an open media stream. Only the Sensor holds it.
type Stream interface {
	HasVideo() bool
	HasAudio() bool
	// Frame returns the latest video frame, or nil if video is not ready.
	Frame(ctx context.Context) (*Frame, error)
	// FrequencyData returns the latest byte frequency bins.
	FrequencyData(ctx context.Context) ([]byte, error)
	Stop() error
}

// MediaSource opens media streams.
type MediaSource interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// FaceDetector is a native face detection capability.
type FaceDetector interface {
	Detect(ctx context.Context, f *Frame) (int, error)
}

// RenderTarget receives the stream for preview rendering.
type RenderTarget interface {
	Bind(s Stream) error
}

// MediaStatus reports which tracks were granted.
type MediaStatus struct {
	Camera bool `json:"camera"`
	Audio  bool `json:"audio"`
}

// FaceReading is the outcome of one face sample.
type FaceReading struct {
	Count  int
	Status model.FaceStatus
	Native bool
}

// Sensor owns the media stream and produces readings.
type Sensor struct {
	media  MediaSource
	native FaceDetector
	th     Thresholds
	log    zerolog.Logger

	mu     sync.Mutex
	stream Stream
}

// NewSensor creates a Sensor. native may be nil.
func NewSensor(media MediaSource, native FaceDetector, th Thresholds, log zerolog.Logger) *Sensor {
	return &Sensor{
		media:  media,
		native: native,
		th:     th,
		log:    log.With().Str("component", "proctor_sensor").Logger(),
	}
}

// Acquire requests video and audio, falling back to video only. A denied
// camera is reported through MediaStatus and ErrCameraUnavailable; the
// caller decides whether that blocks the exam.
func (s *Sensor) Acquire(ctx context.Context, target RenderTarget) (MediaStatus, error) {
	stream, err := s.media.Open(ctx, Constraints{Video: true, Audio: true})
	if err != nil {
		s.log.Debug().Err(err).Msg("Audio+video request failed, retrying video only")
		stream, err = s.media.Open(ctx, Constraints{Video: true})
		if err != nil {
			s.log.Warn().Err(err).Msg("Camera denied")
			return MediaStatus{}, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
		}
	}

	s.mu.Lock()
	old := s.stream
	s.stream = stream
	s.mu.Unlock()
	if old != nil {
		_ = old.Stop()
	}

	if target != nil {
		if err := target.Bind(stream); err != nil {
			s.log.Warn().Err(err).Msg("Render target bind failed")
		}
	}

	status := MediaStatus{Camera: stream.HasVideo(), Audio: stream.HasAudio()}
	s.log.Info().Bool("camera", status.Camera).Bool("audio", status.Audio).Msg("Media acquired")
	return status, nil
}

// SampleFace captures a frame and classifies face presence.
func (s *Sensor) SampleFace(ctx context.Context) (FaceReading, error) {
	stream := s.current()
	if stream == nil {
		return FaceReading{Status: model.FaceStatusUnknown}, ErrNoStream
	}
	frame, err := stream.Frame(ctx)
	if err != nil {
		return FaceReading{Status: model.FaceStatusUnknown}, fmt.Errorf("capture frame: %w", err)
	}
	if frame == nil {
		return FaceReading{Count: 1, Status: model.FaceStatusOK}, nil
	}

	if s.native != nil {
		n, err := s.native.Detect(ctx, frame)
		if err == nil {
			return FaceReading{Count: n, Status: statusForCount(n), Native: true}, nil
		}
		if !errors.Is(err, ErrNoNativeDetector) {
			s.log.Debug().Err(err).Msg("Native detection failed, using heuristic")
		}
	}
	return AnalyzeFrame(frame, s.th), nil
}

// SampleNoise reads frequency data and returns a 0-100 level.
func (s *Sensor) SampleNoise(ctx context.Context) (int, error) {
	stream := s.current()
	if stream == nil || !stream.HasAudio() {
		return 0, ErrNoStream
	}
	bins, err := stream.FrequencyData(ctx)
	if err != nil {
		return 0, fmt.Errorf("read frequency data: %w", err)
	}
	return NoiseLevel(bins, s.th.NoiseGain), nil
}

// Release stops the stream. Calling it again is a no-op.
func (s *Sensor) Release() {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	if stream == nil {
		return
	}
	if err := stream.Stop(); err != nil {
		s.log.Warn().Err(err).Msg("Stream stop failed")
		return
	}
	s.log.Info().Msg("Media released")
}

// Active reports whether a stream is held.
func (s *Sensor) Active() bool {
	return s.current() != nil
}

func (s *Sensor) current() Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

func statusForCount(n int) model.FaceStatus {
	switch {
	case n <= 0:
		return model.FaceStatusNoFace
	case n == 1:
		return model.FaceStatusOK
	default:
		return model.FaceStatusMultiple
	}
}
