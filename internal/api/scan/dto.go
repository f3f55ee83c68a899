package scan

import (
	"time"

	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/capture"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/entity"
)

type AnalyzeRequest struct {
	// Image is raw base64 or a data URL.
	Image string `json:"image" validate:"required"`
}

// ScanResponse flattens the metrics next to the scan fields, matching the
// object the dashboard reads.
type ScanResponse struct {
	ID       string            `json:"id"`
	Source   entity.ScanSource `json:"source"`
	ImageURL string            `json:"image_url,omitempty"`
	entity.BodyMetrics
	CreatedAt time.Time `json:"created_at"`
}

type HistoryResponse struct {
	Scans []ScanResponse `json:"scans"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

func NewScanResponse(s *entity.BodyScan) ScanResponse {
	return ScanResponse{
		ID:          s.ID,
		Source:      s.Source,
		ImageURL:    s.ImageURL,
		BodyMetrics: s.Metrics,
		CreatedAt:   s.CreatedAt,
	}
}

// Capture websocket messages.
const (
	MessageStatus      = "status"
	MessageCaptured    = "captured"
	MessageMetrics     = "metrics"
	MessageError       = "error"
	MessageDeviceError = "device_error"
	MessageClosed      = "closed"

	MessageCapture = "capture"
	MessageCancel  = "cancel"
	MessageRetry   = "retry"
)

// ClientMessage is a text message from the browser. Frames arrive as binary
// messages and are not wrapped.
type ClientMessage struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

type StatusMessage struct {
	Type string `json:"type"`
	capture.Status
}

type CapturedMessage struct {
	Type    string `json:"type"`
	Preview string `json:"preview"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

type MetricsMessage struct {
	Type string       `json:"type"`
	Scan ScanResponse `json:"scan"`
}

type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	// Fallback tells the browser to offer manual upload instead.
	Fallback bool `json:"fallback,omitempty"`
}

type ClosedMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}
