// Package camera bridges a browser-owned camera to the capture core. The
// browser pushes encoded frames over the capture websocket and obeys the
// acquire and release control messages sent from here.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/capture"
	"github.com/sirupsen/logrus"
)

const DefaultFirstFrameTimeout = 10 * time.Second

const (
	MessageAcquire = "acquire"
	MessageRelease = "release"
)

var (
	ErrFirstFrameTimeout = errors.New("camera: no frame received from the browser in time")
	ErrDeviceUnavailable = errors.New("camera: device unavailable")
)

// ControlMessage is sent to the browser to start or stop its media tracks.
type ControlMessage struct {
	Type   string `json:"type"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Stats counts frames seen by a feed over its lifetime.
type Stats struct {
	Frames       uint64 `json:"frames"`
	Dropped      uint64 `json:"dropped"`
	DecodeErrors uint64 `json:"decode_errors"`
}

// Feed is the camera of one websocket connection. It implements
// capture.StreamSource; each acquisition yields its own stream.
type Feed struct {
	send              func(v any) error
	log               logrus.FieldLogger
	firstFrameTimeout time.Duration

	mu      sync.Mutex
	current *stream

	frames       atomic.Uint64
	dropped      atomic.Uint64
	decodeErrors atomic.Uint64
}

// NewFeed creates a feed that talks to the browser through send, which must
// be safe for concurrent use.
func NewFeed(send func(v any) error, log logrus.FieldLogger, firstFrameTimeout time.Duration) *Feed {
	if firstFrameTimeout <= 0 {
		firstFrameTimeout = DefaultFirstFrameTimeout
	}
	return &Feed{
		send:              send,
		log:               log,
		firstFrameTimeout: firstFrameTimeout,
	}
}

// Acquire asks the browser for a stream and waits for its first frame.
func (f *Feed) Acquire(ctx context.Context, c capture.Constraints) (capture.Stream, error) {
	s := newStream(f)

	f.mu.Lock()
	prev := f.current
	f.current = s
	f.mu.Unlock()
	if prev != nil {
		_ = prev.Stop()
	}

	if err := f.send(ControlMessage{Type: MessageAcquire, Width: c.Width, Height: c.Height}); err != nil {
		f.detach(s)
		return nil, &capture.DeviceError{Err: err}
	}

	timer := time.NewTimer(f.firstFrameTimeout)
	defer timer.Stop()

	select {
	case <-s.ready:
		f.log.WithFields(logrus.Fields{
			"width":  c.Width,
			"height": c.Height,
		}).Debug("Camera stream acquired")
		return s, nil
	case <-s.failed:
		f.detach(s)
		return nil, &capture.DeviceError{Err: s.failErr}
	case <-timer.C:
		_ = s.Stop()
		return nil, &capture.DeviceError{Err: ErrFirstFrameTimeout}
	case <-ctx.Done():
		_ = s.Stop()
		return nil, ctx.Err()
	}
}

// PushFrame decodes one encoded frame from the browser and makes it the
// latest frame of the active stream. Frames arriving with no active stream
// are dropped.
func (f *Feed) PushFrame(data []byte) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		f.decodeErrors.Add(1)
		return fmt.Errorf("camera: decode frame: %w", err)
	}

	f.mu.Lock()
	s := f.current
	f.mu.Unlock()

	if s == nil {
		f.dropped.Add(1)
		return nil
	}
	s.setFrame(img)
	f.frames.Add(1)
	return nil
}

// Fail reports that the browser could not open its camera, for example
// because permission was denied.
func (f *Feed) Fail(reason string) {
	f.mu.Lock()
	s := f.current
	f.mu.Unlock()

	if s == nil {
		f.log.WithField("reason", reason).Warn("Camera failure reported with no pending stream")
		return
	}
	s.fail(fmt.Errorf("%w: %s", ErrDeviceUnavailable, reason))
}

func (f *Feed) Stats() Stats {
	return Stats{
		Frames:       f.frames.Load(),
		Dropped:      f.dropped.Load(),
		DecodeErrors: f.decodeErrors.Load(),
	}
}

func (f *Feed) detach(s *stream) {
	f.mu.Lock()
	if f.current == s {
		f.current = nil
	}
	f.mu.Unlock()
}

// stream is one acquisition. Only the latest frame is kept.
type stream struct {
	feed *Feed

	mu      sync.Mutex
	latest  image.Image
	ready   chan struct{}
	readyOn sync.Once

	failed  chan struct{}
	failOn  sync.Once
	failErr error

	stopOnce sync.Once
	stopErr  error
}

func newStream(f *Feed) *stream {
	return &stream{
		feed:   f,
		ready:  make(chan struct{}),
		failed: make(chan struct{}),
	}
}

func (s *stream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest == nil {
		return nil, capture.ErrNoFrame
	}
	return s.latest, nil
}

// Stop tells the browser to release its camera. Only the first call sends.
func (s *stream) Stop() error {
	s.stopOnce.Do(func() {
		s.feed.detach(s)
		s.stopErr = s.feed.send(ControlMessage{Type: MessageRelease})
		s.feed.log.Debug("Camera stream released")
	})
	return s.stopErr
}

func (s *stream) setFrame(img image.Image) {
	s.mu.Lock()
	s.latest = img
	s.mu.Unlock()
	s.readyOn.Do(func() { close(s.ready) })
}

func (s *stream) fail(err error) {
	s.failOn.Do(func() {
		s.failErr = err
		close(s.failed)
	})
}
