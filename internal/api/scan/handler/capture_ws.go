package scanHandler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/api/scan"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/capture"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/middleware"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/camera"
	contextPkg "github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/context"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/response"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	writeTimeout = 10 * time.Second

	msgCameraDenied = "Could not access the camera. Please allow permissions."
	msgCaptureRetry = "Capture failed. Try again."
)

var errConnClosed = errors.New("capture connection closed")

// captureConn is one browser connected to the capture websocket. It owns a
// camera feed and a modal; at most one capture session is open at a time.
type captureConn struct {
	h      *ScanHandler
	conn   *websocket.Conn
	log    *logrus.Entry
	userID string

	ctx    context.Context
	cancel context.CancelFunc

	feed  *camera.Feed
	modal *capture.Modal

	writeMu sync.Mutex
	closed  bool

	mu       sync.Mutex
	closing  bool
	sessions []*capture.Session
	analyses sync.WaitGroup
}

func (h *ScanHandler) handleCaptureWebSocket(c *websocket.Conn) {
	requestID, _ := c.Locals(middleware.RequestIDKey).(string)
	userID, _ := c.Locals(middleware.UserIDKey).(string)

	ctx := contextPkg.WithRequestID(context.Background(), requestID)
	if userID != "" {
		ctx = contextPkg.WithUserID(ctx, userID)
	}
	ctx, cancel := context.WithCancel(ctx)

	cc := &captureConn{
		h:      h,
		conn:   c,
		userID: userID,
		ctx:    ctx,
		cancel: cancel,
		log: h.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"user_id":    userID,
		}),
	}
	cc.feed = camera.NewFeed(cc.send, cc.log, h.opts.FirstFrameTimeout)

	cfg := h.opts.Session
	cfg.Logger = cc.log
	cc.modal = capture.NewModal(cc.feed, h.loader, cfg)

	cc.log.Info("Capture WebSocket client connected")
	defer cc.log.Info("Capture WebSocket client disconnected")

	c.SetPingHandler(func(data string) error {
		cc.writeMu.Lock()
		defer cc.writeMu.Unlock()
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			cc.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	cc.open()
	cc.readLoop()
	cc.shutdown()
}

func (cc *captureConn) readLoop() {
	for {
		if err := cc.conn.SetReadDeadline(time.Now().Add(cc.h.opts.ReadTimeout)); err != nil {
			cc.log.Errorf("Error setting read deadline: %v", err)
			return
		}

		messageType, message, err := cc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				cc.log.Errorf("Capture WebSocket error: %v", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			if err := cc.feed.PushFrame(message); err != nil {
				cc.log.WithError(err).Debug("Dropping undecodable frame")
			}
		case websocket.TextMessage:
			cc.handleText(message)
		default:
			cc.log.Warnf("Received unexpected message type: %d", messageType)
		}
	}
}

func (cc *captureConn) handleText(message []byte) {
	var msg scan.ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		cc.log.WithError(err).Warn("Malformed capture message")
		cc.sendError(scan.MessageError, "malformed message", false)
		return
	}

	switch msg.Type {
	case scan.MessageCapture:
		// encode failures are reported through OnError
		if err := cc.modal.Capture(); errors.Is(err, capture.ErrSessionClosed) {
			cc.sendError(scan.MessageError, "no capture in progress", false)
		}
	case scan.MessageCancel:
		cc.modal.Close()
	case scan.MessageRetry:
		cc.open()
	case scan.MessageDeviceError:
		cc.feed.Fail(msg.Error)
	default:
		cc.log.WithField("type", msg.Type).Warn("Unknown capture message")
	}
}

// open starts a fresh capture session, closing any previous one.
func (cc *captureConn) open() {
	cc.mu.Lock()
	if cc.closing {
		cc.mu.Unlock()
		return
	}
	cc.mu.Unlock()

	s := cc.modal.Open(cc.ctx, cc.callbacks())

	cc.mu.Lock()
	cc.sessions = append(cc.sessions, s)
	cc.mu.Unlock()
}

func (cc *captureConn) callbacks() capture.Callbacks {
	return capture.Callbacks{
		OnStatus: func(st capture.Status) {
			_ = cc.send(scan.StatusMessage{Type: scan.MessageStatus, Status: st})
		},
		OnCapture: func(img *capture.Image, preview string) {
			_ = cc.send(scan.CapturedMessage{
				Type:    scan.MessageCaptured,
				Preview: preview,
				Width:   img.Width,
				Height:  img.Height,
			})

			cc.mu.Lock()
			if cc.closing {
				cc.mu.Unlock()
				return
			}
			cc.analyses.Add(1)
			cc.mu.Unlock()

			go cc.analyze(img)
		},
		OnClose: func() {
			_ = cc.send(scan.ClosedMessage{Type: scan.MessageClosed, Reason: "cancelled"})
		},
		OnError: func(err error) {
			var (
				devErr   *capture.DeviceError
				modelErr *capture.ModelLoadError
				encErr   *capture.EncodeError
			)
			switch {
			case errors.As(err, &devErr):
				cc.sendError(scan.MessageDeviceError, msgCameraDenied, true)
			case errors.As(err, &modelErr):
				cc.log.WithError(err).Warn("Pose guidance unavailable for session")
			case errors.As(err, &encErr):
				cc.sendError(scan.MessageError, msgCaptureRetry, false)
			default:
				cc.log.WithError(err).Warn("Capture session error")
			}
		},
	}
}

func (cc *captureConn) analyze(img *capture.Image) {
	defer cc.analyses.Done()

	ctx, cancel := context.WithTimeout(cc.ctx, cc.h.opts.AnalysisTimeout)
	defer cancel()

	result, err := cc.h.scanService.AnalyzeCapture(ctx, cc.userID, img)
	if err != nil {
		if cc.ctx.Err() != nil {
			return
		}
		cc.log.WithError(err).Warn("Captured image analysis failed")
		cc.sendError(scan.MessageError, clientMessage(err), true)
		return
	}

	_ = cc.send(scan.MetricsMessage{Type: scan.MessageMetrics, Scan: scan.NewScanResponse(result)})
}

// shutdown closes the session and waits for everything that may still write
// to the connection.
func (cc *captureConn) shutdown() {
	cc.mu.Lock()
	cc.closing = true
	sessions := cc.sessions
	cc.mu.Unlock()

	cc.modal.Close()
	cc.cancel()
	for _, s := range sessions {
		<-s.Done()
	}
	cc.analyses.Wait()

	cc.writeMu.Lock()
	cc.closed = true
	cc.writeMu.Unlock()

	stats := cc.feed.Stats()
	cc.log.WithFields(logrus.Fields{
		"frames":        stats.Frames,
		"dropped":       stats.Dropped,
		"decode_errors": stats.DecodeErrors,
	}).Debug("Capture feed closed")
}

// send writes one JSON message. It is safe for concurrent use and turns into
// a no-op once the handler has returned.
func (cc *captureConn) send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	cc.writeMu.Lock()
	defer cc.writeMu.Unlock()

	if cc.closed {
		return errConnClosed
	}
	if err := cc.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if err := cc.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		cc.log.WithError(err).Debug("Error writing capture message")
		return err
	}
	return nil
}

func (cc *captureConn) sendError(kind, message string, fallback bool) {
	_ = cc.send(scan.ErrorMessage{Type: kind, Error: message, Fallback: fallback})
}

// clientMessage is the text shown to the user for a failed analysis.
func clientMessage(err error) string {
	var respErr *response.Error
	if errors.As(err, &respErr) {
		return respErr.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "analysis timed out"
	}
	return "failed to analyze image"
}
