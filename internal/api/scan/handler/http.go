package scanHandler

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	scanService "github.com/hanzlakhalid7/Ketoslim-with-ai/internal/api/scan/service"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/capture"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/middleware"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/camera"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/utils"
	"github.com/sirupsen/logrus"
)

// CaptureOptions tunes the capture websocket.
type CaptureOptions struct {
	Session capture.Config
	// FirstFrameTimeout bounds how long the browser may take to start its
	// camera after an acquire message.
	FirstFrameTimeout time.Duration
	AnalysisTimeout   time.Duration
	ReadTimeout       time.Duration
}

func DefaultCaptureOptions() CaptureOptions {
	return CaptureOptions{
		Session:           capture.DefaultConfig(),
		FirstFrameTimeout: camera.DefaultFirstFrameTimeout,
		AnalysisTimeout:   60 * time.Second,
		ReadTimeout:       2 * time.Minute,
	}
}

type ScanHandler struct {
	log         *logrus.Logger
	validator   *validator.Validate
	middleware  middleware.Middleware
	scanService scanService.IScanService
	utils       utils.IUtils
	loader      capture.ModelLoader
	opts        CaptureOptions
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	ss scanService.IScanService,
	utils utils.IUtils,
	loader capture.ModelLoader,
	opts CaptureOptions,
) *ScanHandler {
	d := DefaultCaptureOptions()
	if opts.FirstFrameTimeout <= 0 {
		opts.FirstFrameTimeout = d.FirstFrameTimeout
	}
	if opts.AnalysisTimeout <= 0 {
		opts.AnalysisTimeout = d.AnalysisTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = d.ReadTimeout
	}

	return &ScanHandler{
		log:         log,
		validator:   validate,
		middleware:  middleware,
		scanService: ss,
		utils:       utils,
		loader:      loader,
		opts:        opts,
	}
}

func (h *ScanHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	scans := srv.Group("/scan")

	scans.Use("/capture/ws", h.middleware.NewOptionalTokenMiddleware, wsMiddleware)
	scans.Get("/capture/ws", websocket.New(h.handleCaptureWebSocket))

	scans.Post("/analyze", h.middleware.NewOptionalTokenMiddleware, h.AnalyzeImage)
	scans.Get("/history", h.middleware.NewTokenMiddleware, h.GetHistory)
	scans.Get("/:id", h.middleware.NewOptionalTokenMiddleware, h.GetScan)
	scans.Delete("/:id", h.middleware.NewTokenMiddleware, h.DeleteScan)
}
