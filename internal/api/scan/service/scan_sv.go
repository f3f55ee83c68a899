package scanService

import (
	"context"
	"errors"
	"fmt"

	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/api/scan"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/capture"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/entity"
	contextPkg "github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/context"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/redis"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/response"
	"github.com/sirupsen/logrus"
)

var errNoAnalyzer = errors.New("image analysis is not configured")

func (s *scanService) AnalyzeCapture(ctx context.Context, userID string, img *capture.Image) (*entity.BodyScan, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, scan.ErrInvalidImage
	}
	return s.AnalyzeBody(ctx, userID, entity.ScanSourceCamera, img.Data, img.ContentType)
}

func (s *scanService) AnalyzeBody(ctx context.Context, userID string, source entity.ScanSource, image []byte, contentType string) (*entity.BodyScan, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if len(image) == 0 {
		return nil, scan.ErrInvalidImage
	}
	if s.gemini == nil {
		return nil, response.Wrap(scan.ErrAnalysisFailed, errNoAnalyzer)
	}

	text, err := s.gemini.AnalyzeImage(ctx, image, contentType, bodyAnalysisPrompt)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Gemini analysis failed")
		return nil, response.Wrap(scan.ErrAnalysisFailed, err)
	}

	metrics, err := ParseMetrics(text)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"content":    text,
		}).Error("Failed to parse content")
		return nil, response.Wrap(scan.ErrUnparsableResult, err)
	}

	metrics.Normalize()
	if err := s.validator.Struct(metrics); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Implausible metrics from model")
		return nil, response.Wrap(scan.ErrImplausibleResult, err)
	}

	now := s.now()
	scanID, err := s.utils.NewULIDFromTimestamp(now)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate ULID")
		return nil, err
	}

	result := &entity.BodyScan{
		ID:        scanID,
		UserID:    userID,
		Source:    source,
		Metrics:   metrics,
		CreatedAt: now,
	}
	result.ImageURL = s.upload(requestID, result, image, contentType)

	repo, err := s.scanRepo.NewClient(true)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		s.discardImage(requestID, result.ImageURL)
		return nil, response.Wrap(scan.ErrSaveScan, err)
	}
	defer repo.Rollback()

	if err := repo.Scans.CreateScan(ctx, *result); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create scan")
		s.discardImage(requestID, result.ImageURL)
		return nil, response.Wrap(scan.ErrSaveScan, err)
	}

	if err := repo.Commit(); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to commit transaction")
		s.discardImage(requestID, result.ImageURL)
		return nil, response.Wrap(scan.ErrSaveScan, err)
	}

	s.cacheScan(ctx, requestID, result)

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"scan_id":    result.ID,
		"source":     result.Source,
	}).Info("Body scan stored")

	return s.presigned(requestID, result), nil
}

func (s *scanService) GetScan(ctx context.Context, id, userID string) (*entity.BodyScan, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if s.cache != nil {
		cached, err := s.cache.GetScan(ctx, id)
		if err == nil {
			if !visibleTo(cached, userID) {
				return nil, scan.ErrScanNotFound
			}
			return s.presigned(requestID, cached), nil
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"scan_id":    id,
				"error":      err.Error(),
			}).Warn("Scan cache read failed")
		}
	}

	repo, err := s.scanRepo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, err
	}

	found, err := repo.Scans.GetScanByID(ctx, id)
	if err != nil {
		if errors.Is(err, scan.ErrScanNotFound) {
			return nil, scan.ErrScanNotFound
		}
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"scan_id":    id,
			"error":      err.Error(),
		}).Error("Failed to get scan")
		return nil, err
	}

	s.cacheScan(ctx, requestID, &found)
	if !visibleTo(&found, userID) {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"scan_id":    id,
			"user_id":    userID,
		}).Warn("Scan requested by non-owner")
		return nil, scan.ErrScanNotFound
	}
	return s.presigned(requestID, &found), nil
}

// DeleteScan removes a scan owned by userID together with its cached copy and
// stored image. Anonymous scans have no owner and cannot be deleted.
func (s *scanService) DeleteScan(ctx context.Context, id, userID string) error {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.scanRepo.NewClient(true)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return err
	}
	defer repo.Rollback()

	found, err := repo.Scans.GetScanByID(ctx, id)
	if err != nil {
		if errors.Is(err, scan.ErrScanNotFound) {
			return scan.ErrScanNotFound
		}
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"scan_id":    id,
			"error":      err.Error(),
		}).Error("Failed to get scan")
		return err
	}
	if userID == "" || found.UserID != userID {
		return scan.ErrScanNotFound
	}

	if err := repo.Scans.DeleteScan(ctx, id); err != nil {
		if errors.Is(err, scan.ErrScanNotFound) {
			return scan.ErrScanNotFound
		}
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"scan_id":    id,
			"error":      err.Error(),
		}).Error("Failed to delete scan")
		return err
	}

	if err := repo.Commit(); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to commit transaction")
		return err
	}

	if s.cache != nil {
		if err := s.cache.DeleteScan(ctx, id); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"scan_id":    id,
				"error":      err.Error(),
			}).Warn("Failed to evict cached scan")
		}
	}
	s.discardImage(requestID, found.ImageURL)

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"scan_id":    id,
	}).Info("Body scan deleted")
	return nil
}

func visibleTo(sc *entity.BodyScan, userID string) bool {
	return sc.UserID == "" || sc.UserID == userID
}

func (s *scanService) GetHistory(ctx context.Context, userID string, page, limit int) (*scan.HistoryResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.scanRepo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	offset := (page - 1) * limit

	scans, total, err := repo.Scans.GetScansByUserID(ctx, userID, limit, offset)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"page":       page,
			"limit":      limit,
			"error":      err.Error(),
		}).Error("Failed to get scan history")
		return nil, err
	}

	res := &scan.HistoryResponse{
		Scans: make([]scan.ScanResponse, 0, len(scans)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for i := range scans {
		res.Scans = append(res.Scans, scan.NewScanResponse(s.presigned(requestID, &scans[i])))
	}
	return res, nil
}

// upload stores the image and returns its URL. A failed upload keeps the
// scan; it is only stored without a picture.
func (s *scanService) upload(requestID string, sc *entity.BodyScan, image []byte, contentType string) string {
	if s.s3Client == nil {
		return ""
	}

	owner := sc.UserID
	if owner == "" {
		owner = "anonymous"
	}
	key := fmt.Sprintf("scans/%s/%s.%s", owner, sc.ID, extension(contentType))

	url, err := s.s3Client.UploadBytes(key, image, contentType)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"key":        key,
			"error":      err.Error(),
		}).Warn("Failed to upload scan image")
		return ""
	}
	return url
}

// discardImage removes an uploaded image that no stored scan points to.
func (s *scanService) discardImage(requestID, url string) {
	if url == "" || s.s3Client == nil {
		return
	}
	if err := s.s3Client.DeleteFile(url); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"image_url":  url,
			"error":      err.Error(),
		}).Warn("Failed to delete scan image")
	}
}

func (s *scanService) cacheScan(ctx context.Context, requestID string, sc *entity.BodyScan) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetScan(ctx, sc, CacheTTL); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"scan_id":    sc.ID,
			"error":      err.Error(),
		}).Warn("Failed to cache scan")
	}
}

// presigned returns a copy of sc whose image URL can be fetched directly.
func (s *scanService) presigned(requestID string, sc *entity.BodyScan) *entity.BodyScan {
	out := *sc
	if out.ImageURL == "" || s.s3Client == nil {
		return &out
	}

	url, err := s.s3Client.PresignUrl(out.ImageURL)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"id":         out.ID,
			"image_url":  out.ImageURL,
			"error":      err.Error(),
		}).Warn("Failed to create presigned URL for image")
		return &out
	}
	out.ImageURL = url
	return &out
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	}
	return "img"
}
