package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/entity"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/timeutil"
	"github.com/sirupsen/logrus"
)

const DefaultTickInterval = 33 * time.Millisecond

type Config struct {
	Constraints Constraints
	// TickInterval paces the sampler loop, one inference per tick.
	TickInterval time.Duration
	HoldDuration time.Duration
	Clock        timeutil.Clock
	Logger       logrus.FieldLogger
}

func DefaultConfig() Config {
	return Config{
		Constraints:  DefaultConstraints,
		TickInterval: DefaultTickInterval,
		HoldDuration: HoldDuration,
		Clock:        timeutil.RealClock{},
		Logger:       logrus.StandardLogger(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Constraints.Width <= 0 || c.Constraints.Height <= 0 {
		c.Constraints = d.Constraints
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.HoldDuration <= 0 {
		c.HoldDuration = d.HoldDuration
	}
	if c.Clock == nil {
		c.Clock = d.Clock
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	return c
}

// Callbacks connect a session to its caller. OnCapture is called at most
// once, and never together with OnClose for the same session.
type Callbacks struct {
	OnStatus  func(Status)
	OnCapture func(img *Image, previewURL string)
	OnClose   func()
	OnError   func(error)
}

// Session is one open capture UI: it owns the camera stream, the detector
// handle, the countdown machine and the sampler loop.
type Session struct {
	id      string
	cfg     Config
	cb      Callbacks
	log     *logrus.Entry
	streams *StreamManager
	loader  ModelLoader

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	machine  *Machine
	detector Detector
	loopGen  uint64
	seq      uint64
	finished bool

	emitMu    sync.Mutex
	published uint64
	status    Status
}

// Open starts a session. Camera acquisition and model loading run in the
// background; progress is reported through cb.OnStatus.
func Open(ctx context.Context, source StreamSource, loader ModelLoader, cfg Config, cb Callbacks) *Session {
	cfg = cfg.withDefaults()
	sctx, cancel := context.WithCancel(ctx)

	s := &Session{
		id:      uuid.NewString(),
		cfg:     cfg,
		cb:      cb,
		streams: NewStreamManager(source),
		loader:  loader,
		ctx:     sctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		machine: NewMachine(cfg.HoldDuration),
	}
	s.log = cfg.Logger.WithField("session_id", s.id)

	s.announce(Status{Message: StatusInitializing})
	go s.watchParent()
	go s.start()

	return s
}

func (s *Session) ID() string { return s.id }

// Done is closed once every resource of the session has been released.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.State()
}

// Status returns the last published status.
func (s *Session) Status() Status {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	return s.status
}

// Close cancels the session and calls OnClose. Safe to call at any time and
// more than once.
func (s *Session) Close() {
	if !s.finish() {
		return
	}
	s.log.Debug("Capture session cancelled")
	s.teardown()
	if s.cb.OnClose != nil {
		s.cb.OnClose()
	}
}

// Capture takes the picture now, without waiting for the countdown. It works
// with or without pose guidance.
func (s *Session) Capture() error {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if !s.machine.Trigger() {
		s.mu.Unlock()
		return ErrAlreadyCapturing
	}
	seq := s.nextSeqLocked()
	s.mu.Unlock()

	s.log.Info("Manual capture requested")
	s.publish(seq, Status{Message: StatusCapturing, PoseValid: true, State: StateTriggered})
	return s.deliver()
}

func (s *Session) watchParent() {
	select {
	case <-s.ctx.Done():
		s.Close()
	case <-s.done:
	}
}

type loadResult struct {
	detector Detector
	err      error
}

func (s *Session) start() {
	s.announce(Status{Message: StatusStartingCamera})

	loaded := make(chan loadResult, 1)
	go func() {
		d, err := s.loader.Load(s.ctx)
		loaded <- loadResult{detector: d, err: err}
	}()

	if _, err := s.streams.Acquire(s.ctx, s.cfg.Constraints); err != nil {
		go discardDetector(loaded)

		var devErr *DeviceError
		if errors.As(err, &devErr) {
			s.log.WithError(err).Warn("Camera acquisition failed")
			s.abort(devErr)
		}
		return
	}

	s.announce(Status{Message: StatusLoadingModel})

	var res loadResult
	select {
	case res = <-loaded:
	case <-s.ctx.Done():
		go discardDetector(loaded)
		return
	}

	if res.err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.log.WithError(res.err).Warn("Pose model unavailable, continuing without guidance")
		s.report(&ModelLoadError{Err: res.err})
		s.announce(Status{Message: StatusGuidanceUnavailable})
		return
	}

	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		_ = res.detector.Close()
		return
	}
	s.detector = res.detector
	gen := s.nextLoopLocked()
	s.mu.Unlock()

	go s.run(res.detector, gen)
}

func discardDetector(loaded <-chan loadResult) {
	if res := <-loaded; res.detector != nil {
		_ = res.detector.Close()
	}
}

// run is the sampler loop. Each tick finishes its inference before the next
// tick is read, so at most one inference is in flight.
func (s *Session) run(det Detector, gen uint64) {
	ticker := s.cfg.Clock.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C():
			if !s.sample(det, gen, now) {
				return
			}
		}
	}
}

// sample runs one tick and reports whether the loop should keep going.
func (s *Session) sample(det Detector, gen uint64, now time.Time) bool {
	s.mu.Lock()
	active := s.activeLocked(gen)
	s.mu.Unlock()
	if !active {
		return false
	}

	poses, err := s.infer(det, s.streams.Current())
	if err != nil {
		if s.ctx.Err() != nil {
			return false
		}
		s.log.WithError(err).Debug("Skipping sampling tick")
		return true
	}

	s.mu.Lock()
	if !s.activeLocked(gen) {
		s.mu.Unlock()
		return false
	}
	t := s.machine.Observe(Assess(poses), now)
	seq := s.nextSeqLocked()
	s.mu.Unlock()

	s.publish(seq, Status{Message: t.Status, PoseValid: t.PoseValid, State: t.State})

	if t.Trigger {
		s.log.Info("Pose held steady, capturing")
		_ = s.deliver()
		return false
	}
	return true
}

func (s *Session) infer(det Detector, stream Stream) ([]entity.PoseEstimate, error) {
	if stream == nil {
		return nil, &InferenceError{Err: ErrNoFrame}
	}
	frame, err := stream.Frame()
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	poses, err := det.EstimatePoses(s.ctx, frame)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	return poses, nil
}

// deliver runs the frame capturer on a triggered session and hands the image
// to the caller. On failure the session is re-armed for another attempt.
func (s *Session) deliver() error {
	img, err := CaptureFrame(s.streams.Current())
	if err != nil {
		if !s.rearm() {
			return ErrSessionClosed
		}
		s.log.WithError(err).Warn("Frame capture failed")
		s.report(err)
		return err
	}

	if !s.finish() {
		return ErrSessionClosed
	}
	if err := s.streams.Release(); err != nil {
		s.log.WithError(err).Warn("Failed to release camera stream")
	}
	s.log.WithFields(logrus.Fields{
		"width":  img.Width,
		"height": img.Height,
		"bytes":  len(img.Data),
	}).Info("Frame captured")

	if s.cb.OnCapture != nil {
		s.cb.OnCapture(img, img.PreviewURL())
	}
	s.teardown()
	return nil
}

// rearm puts a triggered session back to sampling. It reports false if the
// session has already finished.
func (s *Session) rearm() bool {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return false
	}
	s.machine.Rearm()
	seq := s.nextSeqLocked()
	det := s.detector
	var gen uint64
	if det != nil {
		gen = s.nextLoopLocked()
	}
	s.mu.Unlock()

	s.publish(seq, Status{Message: StatusCaptureFailed, State: StateInvalid})
	if det != nil {
		go s.run(det, gen)
	}
	return true
}

func (s *Session) abort(err error) {
	if !s.finish() {
		return
	}
	s.report(err)
	s.teardown()
	if s.cb.OnClose != nil {
		s.cb.OnClose()
	}
}

// finish marks the session as ended. Only the first caller gets true and
// becomes responsible for teardown.
func (s *Session) finish() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return false
	}
	s.finished = true
	s.loopGen++
	return true
}

func (s *Session) teardown() {
	s.cancel()

	if err := s.streams.Release(); err != nil {
		s.log.WithError(err).Warn("Failed to release camera stream")
	}

	s.mu.Lock()
	det := s.detector
	s.detector = nil
	s.mu.Unlock()

	if det != nil {
		if err := det.Close(); err != nil {
			s.log.WithError(err).Warn("Failed to close pose detector")
		}
	}
	close(s.done)
}

func (s *Session) report(err error) {
	if s.cb.OnError != nil {
		s.cb.OnError(err)
	}
}

func (s *Session) activeLocked(gen uint64) bool {
	return !s.finished && gen == s.loopGen && s.machine.State() != StateTriggered
}

func (s *Session) nextSeqLocked() uint64 {
	s.seq++
	return s.seq
}

func (s *Session) nextLoopLocked() uint64 {
	s.loopGen++
	return s.loopGen
}

func (s *Session) announce(st Status) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	st.State = s.machine.State()
	seq := s.nextSeqLocked()
	s.mu.Unlock()

	s.publish(seq, st)
}

// publish emits a status unless a later one has already gone out.
func (s *Session) publish(seq uint64, st Status) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	if seq <= s.published {
		return
	}
	s.published = seq
	s.status = st
	if s.cb.OnStatus != nil {
		s.cb.OnStatus(st)
	}
}
