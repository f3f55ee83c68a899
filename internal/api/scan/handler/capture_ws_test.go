package scanHandler

import (
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/api/scan"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/capture"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/camera"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsMessage struct {
	Type      string             `json:"type"`
	Status    string             `json:"status"`
	PoseValid bool               `json:"pose_valid"`
	Preview   string             `json:"preview"`
	Error     string             `json:"error"`
	Fallback  bool               `json:"fallback"`
	Scan      *scan.ScanResponse `json:"scan"`
}

// browser plays the client side of the capture websocket.
type browser struct {
	t      *testing.T
	conn   *websocket.Conn
	stop   chan struct{}

	writeMu sync.Mutex
	seen   []wsMessage
}

func dialCapture(t *testing.T, base, query string) *browser {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(base+"/api/v1/scan/capture/ws"+query, nil)
	require.NoError(t, err)

	b := &browser{t: t, conn: conn, stop: make(chan struct{})}
	t.Cleanup(func() {
		close(b.stop)
		_ = conn.Close()
	})
	return b
}

// streamFrames sends a frame every few milliseconds until stopped.
func (b *browser) streamFrames(frame []byte) {
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-b.stop:
				return
			case <-ticker.C:
				if err := b.write(websocket.BinaryMessage, frame); err != nil {
					return
				}
			}
		}
	}()
}

func (b *browser) write(messageType int, data []byte) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.conn.WriteMessage(messageType, data)
}

func (b *browser) send(text string) {
	b.t.Helper()
	require.NoError(b.t, b.write(websocket.TextMessage, []byte(text)))
}

// until reads messages until one of type want arrives.
func (b *browser) until(want string) wsMessage {
	b.t.Helper()
	require.NoError(b.t, b.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg wsMessage
		_, data, err := b.conn.ReadMessage()
		require.NoError(b.t, err, "waiting for %q, saw %v", want, b.types())
		require.NoError(b.t, json.Unmarshal(data, &msg))
		b.seen = append(b.seen, msg)
		if msg.Type == want {
			return msg
		}
	}
}

func (b *browser) untilStatus(want string) {
	b.t.Helper()
	for {
		if msg := b.until(scan.MessageStatus); msg.Status == want {
			return
		}
	}
}

func (b *browser) types() []string {
	out := make([]string, 0, len(b.seen))
	for _, m := range b.seen {
		out = append(out, m.Type)
	}
	return out
}

func (b *browser) statuses() []string {
	var out []string
	for _, m := range b.seen {
		if m.Type == scan.MessageStatus {
			out = append(out, m.Status)
		}
	}
	return out
}

func TestCaptureWebSocket_AutoCaptureAndAnalysis(t *testing.T) {
	svc := newFakeScanService()
	base := serve(t, newTestApp(t, svc))

	b := dialCapture(t, base, "?token="+bearer(t, "user-42"))
	acquire := b.until(camera.MessageAcquire)
	assert.Equal(t, camera.MessageAcquire, acquire.Type)
	b.streamFrames(pngBytes(t))

	captured := b.until(scan.MessageCaptured)
	assert.Contains(t, captured.Preview, "data:image/png;base64,")

	metrics := b.until(scan.MessageMetrics)
	require.NotNil(t, metrics.Scan)
	assert.Equal(t, "scan-1", metrics.Scan.ID)
	assert.Equal(t, "camera", string(metrics.Scan.Source))

	assert.Contains(t, b.types(), camera.MessageRelease)
	assert.NotContains(t, b.types(), scan.MessageClosed)

	st := b.statuses()
	require.NotEmpty(t, st)
	assert.Equal(t, capture.StatusInitializing, st[0])
	assert.Contains(t, st, capture.StatusLoadingModel)
	assert.Contains(t, st, capture.StatusHoldSteady)

	assert.Equal(t, []string{"user-42"}, svc.seenUsers())
}

func TestCaptureWebSocket_DeviceErrorFallsBack(t *testing.T) {
	base := serve(t, newTestApp(t, newFakeScanService()))

	b := dialCapture(t, base, "")
	b.until(camera.MessageAcquire)
	b.send(`{"type":"device_error","error":"NotAllowedError"}`)

	msg := b.until(scan.MessageDeviceError)
	assert.True(t, msg.Fallback)
	assert.Equal(t, msgCameraDenied, msg.Error)

	b.until(scan.MessageClosed)
	assert.NotContains(t, b.statuses(), capture.StatusLoadingModel)
	assert.NotContains(t, b.types(), scan.MessageCaptured)
}

func TestCaptureWebSocket_CancelThenRetry(t *testing.T) {
	base := serve(t, newTestApp(t, newFakeScanService()))

	b := dialCapture(t, base, "")
	b.until(camera.MessageAcquire)

	b.send(`{"type":"cancel"}`)
	b.until(scan.MessageClosed)

	b.send(`{"type":"capture"}`)
	msg := b.until(scan.MessageError)
	assert.Equal(t, "no capture in progress", msg.Error)

	b.send(`{"type":"retry"}`)
	b.until(camera.MessageAcquire)
	b.streamFrames(pngBytes(t))
	b.until(scan.MessageMetrics)
}

func TestCaptureWebSocket_ManualCapture(t *testing.T) {
	svc := newFakeScanService()
	base := serve(t, newTestAppWith(t, svc, func(o *CaptureOptions) {
		o.Session.HoldDuration = time.Hour
	}))

	b := dialCapture(t, base, "")
	b.until(camera.MessageAcquire)
	b.streamFrames(pngBytes(t))
	b.untilStatus(capture.StatusLoadingModel)

	b.send(`{"type":"capture"}`)

	b.until(scan.MessageCaptured)
	b.until(scan.MessageMetrics)
	assert.Contains(t, b.statuses(), capture.StatusCapturing)
	assert.Equal(t, []string{""}, svc.seenUsers())
}
