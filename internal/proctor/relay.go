package proctor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNoClient is returned when no browser is attached to a relay.
var ErrNoClient = errors.New("no proctor client attached")

// Maximum accepted frame size; the browser downsamples before sending.
const (
	MaxFrameWidth  = 640
	MaxFrameHeight = 480
)

// RelayClient is the browser side of a relay.
type RelayClient interface {
	RequestMedia(c Constraints) error
	ReleaseMedia() error
}

// Grant is the browser's answer to a media request.
type Grant struct {
	Video bool `json:"video"`
	Audio bool `json:"audio"`
}

// Relay is a media device whose camera, microphone and optional native face
// detector live in a remote browser. The browser answers media requests and
// pushes frames and frequency bins; the relay keeps only the latest of each.
type Relay struct {
	timeout time.Duration
	grants  chan Grant

	mu     sync.Mutex
	client RelayClient
	frame  *Frame
	bins   []byte
}

// NewRelay creates a relay. timeout bounds how long Open waits for the
// browser's permission answer.
func NewRelay(timeout time.Duration) *Relay {
	return &Relay{
		timeout: timeout,
		grants:  make(chan Grant, 1),
	}
}

// Attach connects a browser. A previously attached browser is replaced.
func (r *Relay) Attach(c RelayClient) {
	r.mu.Lock()
	r.client = c
	r.mu.Unlock()
}

// Detach disconnects c if it is still the attached browser.
func (r *Relay) Detach(c RelayClient) {
	r.mu.Lock()
	if r.client == c {
		r.client = nil
	}
	r.mu.Unlock()
}

// PushGrant delivers a permission answer.
func (r *Relay) PushGrant(g Grant) {
	select {
	case r.grants <- g:
	default:
	}
}

// PushFrame stores the latest frame.
func (r *Relay) PushFrame(f *Frame) {
	r.mu.Lock()
	r.frame = f
	r.mu.Unlock()
}

// PushAudio stores the latest frequency bins.
func (r *Relay) PushAudio(bins []byte) {
	r.mu.Lock()
	r.bins = append(r.bins[:0], bins...)
	r.mu.Unlock()
}

// Open implements MediaSource by asking the browser for permission.
func (r *Relay) Open(ctx context.Context, c Constraints) (Stream, error) {
	r.mu.Lock()
	client := r.client
	r.mu.Unlock()
	if client == nil {
		return nil, ErrNoClient
	}

	select {
	case <-r.grants:
	default:
	}

	if err := client.RequestMedia(c); err != nil {
		return nil, fmt.Errorf("request media: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	select {
	case g := <-r.grants:
		if !g.Video || (c.Audio && !g.Audio) {
			return nil, ErrPermissionDenied
		}
		return &relayStream{relay: r, client: client, audio: c.Audio}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("await media grant: %w", ctx.Err())
	}
}

// Detect implements FaceDetector using the count the browser's native
// detector attached to the frame.
func (r *Relay) Detect(_ context.Context, f *Frame) (int, error) {
	if f == nil || f.NativeFaces == nil {
		return 0, ErrNoNativeDetector
	}
	return *f.NativeFaces, nil
}

type relayStream struct {
	relay  *Relay
	client RelayClient
	audio  bool
	once   sync.Once
}

func (s *relayStream) HasVideo() bool { return true }
func (s *relayStream) HasAudio() bool { return s.audio }

func (s *relayStream) Frame(context.Context) (*Frame, error) {
	s.relay.mu.Lock()
	defer s.relay.mu.Unlock()
	return s.relay.frame, nil
}

func (s *relayStream) FrequencyData(context.Context) ([]byte, error) {
	s.relay.mu.Lock()
	defer s.relay.mu.Unlock()
	return append([]byte(nil), s.relay.bins...), nil
}

func (s *relayStream) Stop() error {
	var err error
	s.once.Do(func() {
		s.relay.mu.Lock()
		s.relay.frame = nil
		s.relay.bins = nil
		s.relay.mu.Unlock()
		err = s.client.ReleaseMedia()
	})
	return err
}

// DecodeFrame builds a Frame from base64 RGBA pixels sent by a browser.
func DecodeFrame(width, height int, data string, nativeFaces *int) (*Frame, error) {
	if width <= 0 || height <= 0 || width > MaxFrameWidth || height > MaxFrameHeight {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	pix, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("frame has %d bytes, want %d", len(pix), width*height*4)
	}
	return &Frame{Width: width, Height: height, Pix: pix, NativeFaces: nativeFaces}, nil
}
