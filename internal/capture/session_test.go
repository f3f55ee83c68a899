package capture

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	poll    = time.Millisecond
)

type sessionFixture struct {
	clock    *timeutil.MockClock
	stream   *fakeStream
	source   *fakeSource
	detector *fakeDetector
	loader   *fakeLoader
	rec      *recorder
	session  *Session
}

func newFixture(t *testing.T) *sessionFixture {
	t.Helper()
	stream := &fakeStream{frame: testFrame()}
	det := &fakeDetector{}
	return &sessionFixture{
		clock:    timeutil.NewMockClock(time.Unix(1_700_000_000, 0)),
		stream:   stream,
		source:   &fakeSource{stream: stream},
		detector: det,
		loader:   &fakeLoader{detector: det},
		rec:      &recorder{},
	}
}

func (f *sessionFixture) open(ctx context.Context) *Session {
	cfg := Config{
		TickInterval: 50 * time.Millisecond,
		Clock:        f.clock,
		Logger:       quietLogger(),
	}
	f.session = Open(ctx, f.source, f.loader, cfg, f.rec.callbacks())
	return f.session
}

func (f *sessionFixture) waitSampling(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return f.clock.ActiveTickers() == 1 }, waitFor, poll)
}

func (f *sessionFixture) waitStatus(t *testing.T, msg string) {
	t.Helper()
	require.Eventually(t, func() bool { return f.rec.lastStatus().Message == msg }, waitFor, poll)
}

// tick advances the clock by one interval and waits until the sampler has
// consumed the tick or stopped.
func (f *sessionFixture) tick(t *testing.T) {
	t.Helper()
	before := f.detector.calls.Load()
	f.clock.Advance(50 * time.Millisecond)
	require.Eventually(t, func() bool {
		return f.detector.calls.Load() > before || f.clock.ActiveTickers() == 0
	}, waitFor, poll)
}

func isDone(s *Session) bool {
	select {
	case <-s.Done():
		return true
	default:
		return false
	}
}

func TestSession_AutoCaptureAfterHold(t *testing.T) {
	f := newFixture(t)
	f.detector.set(pose(0.9, 0.9, 0.9))
	s := f.open(context.Background())
	f.waitSampling(t)

	require.Eventually(t, func() bool {
		f.clock.Advance(50 * time.Millisecond)
		return f.rec.captured() > 0
	}, waitFor, poll)
	require.Eventually(t, func() bool { return isDone(s) }, waitFor, poll)

	msgs := f.rec.messages()
	assert.Equal(t, StatusInitializing, msgs[0])
	assert.Contains(t, msgs, StatusStartingCamera)
	assert.Contains(t, msgs, StatusLoadingModel)
	assert.Contains(t, msgs, StatusHoldSteady)
	assert.Equal(t, "Hold steady... 0", msgs[len(msgs)-1])

	assert.Equal(t, 1, f.rec.captured())
	assert.Equal(t, 0, f.rec.closed())
	assert.EqualValues(t, 1, f.stream.stops.Load())
	assert.True(t, strings.HasPrefix(f.rec.previews[0], "data:image/png;base64,"))

	calls := f.detector.calls.Load()
	for i := 0; i < 20; i++ {
		f.clock.Advance(50 * time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, calls, f.detector.calls.Load())
	assert.Equal(t, 1, f.rec.captured())
	assert.Equal(t, 0, f.clock.ActiveTickers())
}

func TestSession_MissingFeetNeverCaptures(t *testing.T) {
	f := newFixture(t)
	f.detector.set(pose(0.9, 0.1, 0.9))
	s := f.open(context.Background())
	f.waitSampling(t)

	for i := 0; i < 100; i++ {
		f.tick(t)
	}

	assert.Equal(t, StatusShowFeet, f.rec.lastStatus().Message)
	assert.False(t, f.rec.lastStatus().PoseValid)
	assert.Equal(t, StateInvalid, s.State())
	assert.Equal(t, 0, f.rec.captured())
	s.Close()
}

func TestSession_NoPersonDetected(t *testing.T) {
	f := newFixture(t)
	s := f.open(context.Background())
	f.waitSampling(t)

	f.tick(t)
	f.waitStatus(t, StatusNoPerson)

	s.mu.Lock()
	_, anchored := s.machine.Anchor()
	s.mu.Unlock()
	assert.False(t, anchored)
	s.Close()
}

func TestSession_InterruptionRestartsCountdown(t *testing.T) {
	f := newFixture(t)
	f.detector.set(pose(0.9, 0.9, 0.9))
	s := f.open(context.Background())
	f.waitSampling(t)

	for i := 0; i < 30; i++ {
		f.tick(t)
	}
	assert.Equal(t, StateValidating, s.State())

	f.detector.set(pose(0.9, 0.9, 0.0))
	f.tick(t)
	f.waitStatus(t, StatusShowFeet)

	f.detector.set(pose(0.9, 0.9, 0.9))
	f.tick(t)
	f.waitStatus(t, StatusHoldSteady)
	f.tick(t)
	f.waitStatus(t, "Hold steady... 3")
	assert.Equal(t, 0, f.rec.captured())
	s.Close()
}

func TestSession_CancelDuringCountdown(t *testing.T) {
	f := newFixture(t)
	f.detector.set(pose(0.9, 0.9, 0.9))
	s := f.open(context.Background())
	f.waitSampling(t)

	for i := 0; i < 20; i++ {
		f.tick(t)
	}
	s.Close()
	s.Close()

	require.Eventually(t, func() bool { return isDone(s) }, waitFor, poll)
	assert.Equal(t, 1, f.rec.closed())
	assert.Equal(t, 0, f.rec.captured())
	assert.EqualValues(t, 1, f.stream.stops.Load())
	assert.EqualValues(t, 1, f.detector.closes.Load())
	require.Eventually(t, func() bool { return f.clock.ActiveTickers() == 0 }, waitFor, poll)

	assert.ErrorIs(t, s.Capture(), ErrSessionClosed)
}

func TestSession_ParentContextCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	s := f.open(ctx)
	f.waitSampling(t)

	cancel()

	require.Eventually(t, func() bool { return isDone(s) }, waitFor, poll)
	assert.Equal(t, 1, f.rec.closed())
	assert.EqualValues(t, 1, f.stream.stops.Load())
}

func TestSession_DeviceErrorClosesWithoutCapture(t *testing.T) {
	f := newFixture(t)
	f.source.err = errDenied
	s := f.open(context.Background())

	require.Eventually(t, func() bool { return isDone(s) }, waitFor, poll)
	assert.Equal(t, 1, f.rec.closed())
	assert.Equal(t, 0, f.rec.captured())
	assert.NotContains(t, f.rec.messages(), StatusLoadingModel)
	assert.Equal(t, 0, f.clock.ActiveTickers())

	errs := f.rec.errors()
	require.Len(t, errs, 1)
	var devErr *DeviceError
	assert.ErrorAs(t, errs[0], &devErr)
}

func TestSession_ManualCaptureWithoutModel(t *testing.T) {
	f := newFixture(t)
	f.loader.err = assert.AnError
	s := f.open(context.Background())

	f.waitStatus(t, StatusGuidanceUnavailable)
	assert.False(t, isDone(s))

	errs := f.rec.errors()
	require.Len(t, errs, 1)
	var loadErr *ModelLoadError
	assert.ErrorAs(t, errs[0], &loadErr)

	require.NoError(t, s.Capture())
	assert.Equal(t, 1, f.rec.captured())
	assert.Equal(t, 0, f.rec.closed())
	assert.EqualValues(t, 1, f.stream.stops.Load())
	assert.True(t, isDone(s))
	assert.EqualValues(t, 0, f.detector.calls.Load())
}

func TestSession_EncodeErrorRearms(t *testing.T) {
	f := newFixture(t)
	f.stream.setFrame(nil)
	f.detector.set(pose(0.9, 0.9, 0.9))
	s := f.open(context.Background())
	f.waitSampling(t)

	err := s.Capture()
	var encErr *EncodeError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, StatusCaptureFailed, f.rec.lastStatus().Message)
	assert.Equal(t, StateInvalid, s.State())
	assert.False(t, isDone(s))
	assert.EqualValues(t, 0, f.stream.stops.Load())

	f.stream.setFrame(testFrame())
	require.Eventually(t, func() bool {
		f.clock.Advance(50 * time.Millisecond)
		return f.rec.captured() > 0
	}, waitFor, poll)

	require.Eventually(t, func() bool { return f.clock.ActiveTickers() == 0 }, waitFor, poll)
	assert.Equal(t, 1, f.rec.captured())
	assert.EqualValues(t, 1, f.stream.stops.Load())
}

func TestSession_CaptureWhileTriggered(t *testing.T) {
	f := newFixture(t)
	f.loader.err = assert.AnError
	s := f.open(context.Background())
	f.waitStatus(t, StatusGuidanceUnavailable)

	s.mu.Lock()
	s.machine.Trigger()
	s.mu.Unlock()

	assert.ErrorIs(t, s.Capture(), ErrAlreadyCapturing)
	s.Close()
}

func TestSession_StatusesNeverGoBackwards(t *testing.T) {
	f := newFixture(t)
	f.detector.set(pose(0.9, 0.9, 0.9))
	f.open(context.Background())
	f.waitSampling(t)

	require.Eventually(t, func() bool {
		f.clock.Advance(50 * time.Millisecond)
		return f.rec.captured() > 0
	}, waitFor, poll)

	seen := map[string]bool{}
	for _, msg := range f.rec.messages() {
		if msg == StatusInitializing || msg == StatusStartingCamera {
			assert.False(t, seen[StatusLoadingModel], "%q after loading model", msg)
		}
		seen[msg] = true
	}
}

func TestSession_InferenceErrorSkipsTick(t *testing.T) {
	f := newFixture(t)
	f.detector.fail(assert.AnError)
	s := f.open(context.Background())
	f.waitSampling(t)

	for i := 0; i < 5; i++ {
		f.tick(t)
	}
	assert.Equal(t, StatusLoadingModel, f.rec.lastStatus().Message)
	assert.Empty(t, f.rec.errors())
	assert.False(t, isDone(s))

	f.detector.set()
	f.tick(t)
	f.waitStatus(t, StatusNoPerson)
	s.Close()
}
