package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/database/migrations"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/database/postgres"
	scanHandler "github.com/hanzlakhalid7/Ketoslim-with-ai/internal/api/scan/handler"
	scanRepository "github.com/hanzlakhalid7/Ketoslim-with-ai/internal/api/scan/repository"
	scanService "github.com/hanzlakhalid7/Ketoslim-with-ai/internal/api/scan/service"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/capture"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/middleware"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/gemini"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/pose"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/redis"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/s3"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/utils"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine       *fiber.App
	db           *sqlx.DB
	log          *logrus.Logger
	middleware   middleware.Middleware
	validator    *validator.Validate
	utils        utils.IUtils
	handlers     []handler
	redisServer  redis.IRedis
	geminiClient gemini.IGemini
	s3Client     s3.ItfS3
	poseLoader   *capture.SharedLoader
	captureOpts  scanHandler.CaptureOptions
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{
		captureOpts: scanHandler.DefaultCaptureOptions(),
	}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.db == nil {
		return nil, fmt.Errorf("database is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

// WithDatabase connects to Postgres and applies pending migrations unless
// DB_AUTO_MIGRATE is "false".
func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}

		if os.Getenv("DB_AUTO_MIGRATE") != "false" {
			if err := migrations.Up(db.DB); err != nil {
				_ = db.Close()
				return fmt.Errorf("failed to migrate database: %w", err)
			}
		}

		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

// WithS3Client enables image uploads. Without a bucket the server still
// runs and stores scans without pictures.
func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if errors.Is(err, s3.ErrNoBucket) {
			if s.log != nil {
				s.log.Warn("AWS_BUCKET_NAME not set, scan images will not be stored")
			}
			return nil
		}
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

// WithGeminiClient enables body analysis. Without an API key capture still
// works but every analysis fails.
func WithGeminiClient(ctx context.Context) ServerOption {
	return func(s *Server) error {
		client, err := gemini.NewGeminiClient(ctx)
		if errors.Is(err, gemini.ErrNoAPIKey) {
			if s.log != nil {
				s.log.Warn("GEMINI_API_KEY not set, body analysis is disabled")
			}
			return nil
		}
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to create Gemini client: %v", err)
			}
			return fmt.Errorf("failed to create Gemini client: %w", err)
		}
		s.geminiClient = client
		return nil
	}
}

// WithPoseLoader connects capture sessions to the pose service. The model
// connection is shared by all sessions.
func WithPoseLoader() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before pose loader")
		}
		s.poseLoader = capture.NewSharedLoader(pose.NewLoader(pose.ConfigFromEnv(), s.log))
		return nil
	}
}

// WithCaptureOptions reads CAPTURE_TICK_MS and CAPTURE_ACQUIRE_TIMEOUT_MS.
func WithCaptureOptions() ServerOption {
	return func(s *Server) error {
		opts := scanHandler.DefaultCaptureOptions()

		tick, err := envMillis("CAPTURE_TICK_MS")
		if err != nil {
			return err
		}
		if tick > 0 {
			opts.Session.TickInterval = tick
		}

		acquire, err := envMillis("CAPTURE_ACQUIRE_TIMEOUT_MS")
		if err != nil {
			return err
		}
		if acquire > 0 {
			opts.FirstFrameTimeout = acquire
		}

		if s.log != nil {
			opts.Session.Logger = s.log
		}
		s.captureOpts = opts
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Scan domain
	scanRepo := scanRepository.New(s.db, s.log)
	scanServices := scanService.NewScanService(s.log, scanRepo, s.geminiClient, s.s3Client, s.redisServer, s.validator, s.utils)

	var loader capture.ModelLoader = unavailableLoader{}
	if s.poseLoader != nil {
		loader = s.poseLoader
	}
	scanHandlers := scanHandler.New(s.log, s.validator, s.middleware, scanServices, s.utils, loader, s.captureOpts)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, scanHandlers)
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	router := s.engine.Group("/api/v1", s.middleware.NewRateLimiter)
	for _, h := range s.handlers {
		h.Start(router)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops accepting connections and releases every client the server
// opened.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.engine.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("fiber: %w", err))
	}
	if s.poseLoader != nil {
		if err := s.poseLoader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pose loader: %w", err))
		}
	}
	if s.geminiClient != nil {
		if err := s.geminiClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("gemini: %w", err))
		}
	}
	if s.redisServer != nil {
		if err := s.redisServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}

func envMillis(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// unavailableLoader stands in when no pose service is wired; sessions fall
// back to manual capture.
type unavailableLoader struct{}

func (unavailableLoader) Load(context.Context) (capture.Detector, error) {
	return nil, pose.ErrNotConfigured
}
