package scanHandler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/api/scan"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/entity"
	contextPkg "github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/context"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/handlerUtil"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/log"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/response"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/utils"
	"golang.org/x/net/context"
)

// AnalyzeImage is the manual upload path: a multipart "image" file or a JSON
// body carrying base64 image data.
func (h *ScanHandler) AnalyzeImage(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.opts.AnalysisTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing analyze image request")

	var (
		data        []byte
		contentType string
		err         error
	)

	if strings.HasPrefix(ctx.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		file, ferr := ctx.FormFile("image")
		if ferr != nil {
			return errHandler.HandleValidationError(ctx, requestID, errors.New("image file is required"), ctx.Path())
		}
		data, contentType, err = h.utils.ReadImageFile(file)
	} else {
		var req scan.AnalyzeRequest
		if err := ctx.BodyParser(&req); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}
		if err := h.validator.Struct(req); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}
		data, contentType, err = h.utils.DecodeBase64Image(req.Image)
	}
	if err != nil {
		return errHandler.Handle(ctx, requestID, imageError(err), ctx.Path(), "analyze_image")
	}

	result, err := h.scanService.AnalyzeBody(c, h.middleware.GetUserID(ctx), entity.ScanSourceUpload, data, contentType)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "analyze_image")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, scan.NewScanResponse(result))
	}
}

func (h *ScanHandler) GetScan(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	id := ctx.Params("id")
	if id == "" {
		return errHandler.HandleValidationError(ctx, requestID, errors.New("scan ID is required"), ctx.Path())
	}

	result, err := h.scanService.GetScan(c, id, h.middleware.GetUserID(ctx))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_scan")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, scan.NewScanResponse(result))
	}
}

func (h *ScanHandler) DeleteScan(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	userID := h.middleware.GetUserID(ctx)
	if userID == "" {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	id := ctx.Params("id")
	if id == "" {
		return errHandler.HandleValidationError(ctx, requestID, errors.New("scan ID is required"), ctx.Path())
	}

	if err := h.scanService.DeleteScan(c, id, userID); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "delete_scan")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusNoContent, nil)
	}
}

func (h *ScanHandler) GetHistory(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	userID := h.middleware.GetUserID(ctx)
	if userID == "" {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	page, _ := strconv.Atoi(ctx.Query("page", "1"))
	limit, _ := strconv.Atoi(ctx.Query("limit", "10"))

	res, err := h.scanService.GetHistory(c, userID, page, limit)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_scan_history")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
	}
}

func imageError(err error) error {
	switch {
	case errors.Is(err, utils.ErrFileTooLarge):
		return response.Wrap(scan.ErrImageTooLarge, err)
	case errors.Is(err, utils.ErrNoFile),
		errors.Is(err, utils.ErrNotAnImage),
		errors.Is(err, utils.ErrInvalidBase64):
		return response.Wrap(scan.ErrInvalidImage, err)
	}
	return err
}
