package capture

import (
	"context"
	"errors"
	"image"
	"sync"
)

// Constraints is the resolution requested from the camera. Devices may
// deliver something else.
type Constraints struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

var DefaultConstraints = Constraints{Width: 1280, Height: 720}

// Stream is an acquired camera stream.
type Stream interface {
	// Frame returns the most recent frame, or ErrNoFrame before the first one.
	Frame() (image.Image, error)
	// Stop releases the camera hardware.
	Stop() error
}

// StreamSource acquires camera streams.
type StreamSource interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

// StreamManager owns the single stream of one session. The stream is always
// read from the manager at teardown time, never from a copy taken earlier.
type StreamManager struct {
	source StreamSource

	mu       sync.Mutex
	stream   Stream
	released bool
}

func NewStreamManager(source StreamSource) *StreamManager {
	return &StreamManager{source: source}
}

// Acquire requests a stream. Any failure other than context cancellation is
// returned as a *DeviceError. A stream that arrives after Release is stopped
// immediately.
func (m *StreamManager) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	stream, err := m.source.Acquire(ctx, c)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		var devErr *DeviceError
		if errors.As(err, &devErr) {
			return nil, devErr
		}
		return nil, &DeviceError{Err: err}
	}

	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		_ = stream.Stop()
		return nil, ErrSessionClosed
	}
	m.stream = stream
	m.mu.Unlock()

	return stream, nil
}

// Current returns the active stream or nil.
func (m *StreamManager) Current() Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream
}

// Release stops the active stream. Only the first call does anything.
func (m *StreamManager) Release() error {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return nil
	}
	m.released = true
	stream := m.stream
	m.stream = nil
	m.mu.Unlock()

	if stream == nil {
		return nil
	}
	return stream.Stop()
}
