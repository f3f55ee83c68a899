package capture

import (
	"context"
	"image"
	"sync"

	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/entity"
)

// Detector runs single-subject keypoint inference on one frame.
type Detector interface {
	EstimatePoses(ctx context.Context, frame image.Image) ([]entity.PoseEstimate, error)
	Close() error
}

// ModelLoader produces a ready Detector.
type ModelLoader interface {
	Load(ctx context.Context) (Detector, error)
}

// SharedLoader keeps the first successfully loaded detector for the life of
// the process. Sessions receive handles whose Close only drops the session's
// reference; the detector itself is closed by SharedLoader.Close. Failed
// loads are not cached.
type SharedLoader struct {
	loader ModelLoader

	mu       sync.Mutex
	detector Detector
}

func NewSharedLoader(loader ModelLoader) *SharedLoader {
	return &SharedLoader{loader: loader}
}

func (l *SharedLoader) Load(ctx context.Context) (Detector, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.detector == nil {
		d, err := l.loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		l.detector = d
	}
	return &sharedHandle{detector: l.detector}, nil
}

// Close closes the cached detector. The next Load loads a fresh one.
func (l *SharedLoader) Close() error {
	l.mu.Lock()
	d := l.detector
	l.detector = nil
	l.mu.Unlock()

	if d == nil {
		return nil
	}
	return d.Close()
}

type sharedHandle struct {
	mu       sync.Mutex
	detector Detector
}

func (h *sharedHandle) EstimatePoses(ctx context.Context, frame image.Image) ([]entity.PoseEstimate, error) {
	h.mu.Lock()
	d := h.detector
	h.mu.Unlock()

	if d == nil {
		return nil, ErrSessionClosed
	}
	return d.EstimatePoses(ctx, frame)
}

func (h *sharedHandle) Close() error {
	h.mu.Lock()
	h.detector = nil
	h.mu.Unlock()
	return nil
}
