// Package pose talks to the remote keypoint service that hosts the MoveNet
// SinglePose Lightning model.
package pose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/capture"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/entity"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const (
	ModelName    = "movenet"
	ModelVariant = "singlepose_lightning"

	messageLoad  = "load"
	messageReady = "ready"
	messageError = "error"
)

var (
	ErrNotConfigured = errors.New("pose: POSE_SERVICE_URL is not set")
	ErrClosed        = errors.New("pose: client closed")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	JPEGQuality      int
}

func ConfigFromEnv() Config {
	return Config{URL: os.Getenv("POSE_SERVICE_URL")}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = 80
	}
	return c
}

type loadMessage struct {
	Type    string `json:"type"`
	Model   string `json:"model"`
	Variant string `json:"variant"`
}

type serviceMessage struct {
	Type  string                `json:"type"`
	Error string                `json:"error,omitempty"`
	Poses []entity.PoseEstimate `json:"poses"`
}

// Loader dials the pose service. A returned Client is ready for inference.
type Loader struct {
	cfg Config
	log *logrus.Logger
}

func NewLoader(cfg Config, log *logrus.Logger) *Loader {
	return &Loader{cfg: cfg.withDefaults(), log: log}
}

func (l *Loader) Load(ctx context.Context) (capture.Detector, error) {
	c := &Client{
		cfg:  l.cfg,
		log:  l.log,
		done: make(chan struct{}),
	}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Client is a connection to the pose service. Calls are serialised; a broken
// connection is dropped and re-dialed by the next call.
type Client struct {
	cfg Config
	log *logrus.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	closeOnce sync.Once
	done      chan struct{}
}

func (c *Client) connect(ctx context.Context) error {
	if c.cfg.URL == "" {
		return ErrNotConfigured
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = c.cfg.HandshakeTimeout

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to pose service: %w", err)
	}

	if err := c.handshake(ctx, conn); err != nil {
		conn.Close()
		return err
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.cfg.WriteTimeout))
		if err != nil {
			c.log.WithError(err).Warn("Error sending pong to pose service")
		}
		return nil
	})

	c.conn = conn
	go c.keepAlive(conn)

	c.log.WithFields(logrus.Fields{
		"model":   ModelName,
		"variant": ModelVariant,
	}).Info("Pose model ready")
	return nil
}

func (c *Client) handshake(ctx context.Context, conn *websocket.Conn) error {
	conn.SetWriteDeadline(deadline(ctx, c.cfg.WriteTimeout))
	payload, err := json.Marshal(loadMessage{Type: messageLoad, Model: ModelName, Variant: ModelVariant})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to request pose model: %w", err)
	}

	conn.SetReadDeadline(deadline(ctx, c.cfg.HandshakeTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read pose model status: %w", err)
	}

	var msg serviceMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("invalid pose model status: %w", err)
	}
	switch msg.Type {
	case messageReady:
		return nil
	case messageError:
		return fmt.Errorf("pose service refused model: %s", msg.Error)
	default:
		return fmt.Errorf("unexpected pose model status %q", msg.Type)
	}
}

// EstimatePoses sends frame as JPEG and returns the detected subjects, most
// confident first.
func (c *Client) EstimatePoses(ctx context.Context, frame image.Image) ([]entity.PoseEstimate, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: c.cfg.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.conn == nil {
		if err := c.connect(ctx); err != nil {
			return nil, err
		}
	}
	conn := c.conn

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	conn.SetWriteDeadline(deadline(ctx, c.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("error sending frame: %w", err)
	}

	conn.SetReadDeadline(deadline(ctx, c.cfg.ReadTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("error reading poses: %w", err)
	}

	var msg serviceMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("error parsing poses: %w", err)
	}
	if msg.Type == messageError {
		return nil, fmt.Errorf("pose service error: %s", msg.Error)
	}
	return msg.Poses, nil
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.dropLocked()
	return nil
}

func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}
		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.cfg.WriteTimeout))
		if err != nil {
			c.log.WithError(err).Warn("Ping to pose service failed, marking connection as dead")
			c.dropLocked()
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

func deadline(ctx context.Context, d time.Duration) time.Time {
	t := time.Now().Add(d)
	if dl, ok := ctx.Deadline(); ok && dl.Before(t) {
		return dl
	}
	return t
}
