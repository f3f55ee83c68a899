package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sync"
	"sync/atomic"

	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/entity"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testFrame() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for x := 0; x < 4; x++ {
		for y := 0; y < 2; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 100), B: 10, A: 255})
		}
	}
	return img
}

func pose(nose, leftAnkle, rightAnkle float64) entity.PoseEstimate {
	return entity.PoseEstimate{
		Score: 0.8,
		Keypoints: []entity.Keypoint{
			{Name: entity.KeypointNose, X: 10, Y: 5, Score: nose},
			{Name: "left_shoulder", X: 8, Y: 20, Score: 0.9},
			{Name: entity.KeypointLeftAnkle, X: 8, Y: 90, Score: leftAnkle},
			{Name: entity.KeypointRightAnkle, X: 12, Y: 90, Score: rightAnkle},
		},
	}
}

type fakeStream struct {
	mu    sync.Mutex
	frame image.Image
	stops atomic.Int32
}

func (s *fakeStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil, ErrNoFrame
	}
	return s.frame, nil
}

func (s *fakeStream) setFrame(img image.Image) {
	s.mu.Lock()
	s.frame = img
	s.mu.Unlock()
}

func (s *fakeStream) Stop() error {
	s.stops.Add(1)
	return nil
}

type fakeSource struct {
	stream   *fakeStream
	err      error
	acquires atomic.Int32
	block    chan struct{}
}

func (s *fakeSource) Acquire(ctx context.Context, _ Constraints) (Stream, error) {
	s.acquires.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.stream, nil
}

type fakeDetector struct {
	mu     sync.Mutex
	poses  []entity.PoseEstimate
	err    error
	calls  atomic.Int32
	closes atomic.Int32
}

func (d *fakeDetector) EstimatePoses(_ context.Context, _ image.Image) ([]entity.PoseEstimate, error) {
	d.mu.Lock()
	poses, err := d.poses, d.err
	d.mu.Unlock()
	d.calls.Add(1)
	if err != nil {
		return nil, err
	}
	return poses, nil
}

func (d *fakeDetector) set(poses ...entity.PoseEstimate) {
	d.mu.Lock()
	d.poses = poses
	d.err = nil
	d.mu.Unlock()
}

func (d *fakeDetector) fail(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDetector) Close() error {
	d.closes.Add(1)
	return nil
}

type fakeLoader struct {
	detector *fakeDetector
	err      error
	loads    atomic.Int32
}

func (l *fakeLoader) Load(context.Context) (Detector, error) {
	l.loads.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return l.detector, nil
}

var errDenied = errors.New("permission denied")

// recorder collects callback activity of one session.
type recorder struct {
	mu       sync.Mutex
	statuses []Status
	errs     []error
	images   []*Image
	previews []string
	closes   int
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnStatus: func(st Status) {
			r.mu.Lock()
			r.statuses = append(r.statuses, st)
			r.mu.Unlock()
		},
		OnCapture: func(img *Image, preview string) {
			r.mu.Lock()
			r.images = append(r.images, img)
			r.previews = append(r.previews, preview)
			r.mu.Unlock()
		},
		OnClose: func() {
			r.mu.Lock()
			r.closes++
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) captured() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.images)
}

func (r *recorder) closed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

func (r *recorder) lastStatus() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return Status{}
	}
	return r.statuses[len(r.statuses)-1]
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.statuses))
	for _, st := range r.statuses {
		out = append(out, st.Message)
	}
	return out
}

func (r *recorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}
