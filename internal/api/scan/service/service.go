package scanService

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/api/scan"
	scanRepository "github.com/hanzlakhalid7/Ketoslim-with-ai/internal/api/scan/repository"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/capture"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/entity"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/gemini"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/redis"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/s3"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/utils"
	"github.com/sirupsen/logrus"
)

// CacheTTL is how long an analysed scan stays in Redis.
const CacheTTL = 24 * time.Hour

type IScanService interface {
	// AnalyzeBody runs the vision model over one image and stores the result.
	AnalyzeBody(ctx context.Context, userID string, source entity.ScanSource, image []byte, contentType string) (*entity.BodyScan, error)
	AnalyzeCapture(ctx context.Context, userID string, img *capture.Image) (*entity.BodyScan, error)
	// GetScan returns a scan the caller may see: its own, or an anonymous one.
	GetScan(ctx context.Context, id, userID string) (*entity.BodyScan, error)
	GetHistory(ctx context.Context, userID string, page, limit int) (*scan.HistoryResponse, error)
	DeleteScan(ctx context.Context, id, userID string) error
}

type scanService struct {
	log       *logrus.Logger
	scanRepo  scanRepository.Repository
	gemini    gemini.IGemini
	s3Client  s3.ItfS3
	cache     redis.IRedis
	validator *validator.Validate
	utils     utils.IUtils
	now       func() time.Time
}

// NewScanService wires the analysis pipeline. s3Client and cache may be nil,
// in which case uploads and caching are skipped.
func NewScanService(
	log *logrus.Logger,
	scanRepo scanRepository.Repository,
	gemini gemini.IGemini,
	s3Client s3.ItfS3,
	cache redis.IRedis,
	validator *validator.Validate,
	utils utils.IUtils,
) IScanService {
	return &scanService{
		log:       log,
		scanRepo:  scanRepo,
		gemini:    gemini,
		s3Client:  s3Client,
		cache:     cache,
		validator: validator,
		utils:     utils,
		now:       time.Now,
	}
}
