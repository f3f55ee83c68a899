package scan

import (
	"net/http"

	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/response"
)

var (
	ErrScanNotFound      = response.NewError(http.StatusNotFound, "scan not found")
	ErrInvalidImage      = response.NewError(http.StatusBadRequest, "invalid image")
	ErrImageTooLarge     = response.NewError(http.StatusRequestEntityTooLarge, "image too large, maximum size is 5MB")
	ErrAnalysisFailed    = response.NewError(http.StatusBadGateway, "failed to analyze image")
	ErrUnparsableResult  = response.NewError(http.StatusBadGateway, "failed to parse AI response")
	ErrImplausibleResult = response.NewError(http.StatusUnprocessableEntity, "AI response failed validation")
	ErrSaveScan          = response.NewError(http.StatusInternalServerError, "failed to save scan")
	ErrCameraUnavailable = response.NewError(http.StatusServiceUnavailable, "camera capture unavailable")
)
