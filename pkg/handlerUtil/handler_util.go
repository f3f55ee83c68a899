package handlerUtil

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/capture"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/log"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/response"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// known maps errors that do not carry their own status code.
var known = []struct {
	match   func(error) bool
	status  int
	code    string
	message string
}{
	{
		match:   func(err error) bool { return errors.Is(err, capture.ErrSessionClosed) },
		status:  fiber.StatusConflict,
		code:    "SESSION_CLOSED",
		message: "No capture in progress",
	},
	{
		match:   func(err error) bool { return errors.Is(err, capture.ErrAlreadyCapturing) },
		status:  fiber.StatusConflict,
		code:    "ALREADY_CAPTURING",
		message: "A capture is already in progress",
	},
	{
		match: func(err error) bool {
			var devErr *capture.DeviceError
			return errors.As(err, &devErr)
		},
		status:  fiber.StatusServiceUnavailable,
		code:    "CAMERA_UNAVAILABLE",
		message: "Could not access the camera",
	},
	{
		match:   func(err error) bool { return errors.Is(err, context.DeadlineExceeded) },
		status:  fiber.StatusRequestTimeout,
		code:    "TIMEOUT",
		message: utils.StatusMessage(fiber.StatusRequestTimeout),
	},
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		fields["code"] = respErr.Code
		if respErr.Code >= fiber.StatusInternalServerError {
			traceID := log.ErrorWithTraceID(h.logger, fields, "Operation failed with error response")
			return c.Status(respErr.Code).JSON(fiber.Map{
				"error":    respErr.Error(),
				"trace_id": traceID,
			})
		}
		h.logger.WithFields(fields).Warn("Operation failed with error response")
		return c.Status(respErr.Code).JSON(fiber.Map{"error": respErr.Error()})
	}

	for _, k := range known {
		if k.match(err) {
			h.logger.WithFields(fields).Warn(k.message)
			return c.Status(k.status).JSON(ErrorResponse{
				Error: k.message,
				Code:  k.code,
			})
		}
	}

	traceID := log.ErrorWithTraceID(h.logger, fields, "Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":    "An unexpected error occurred",
		"trace_id": traceID,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Validation failed: " + err.Error(),
		"code":  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(utils.StatusMessage(fiber.StatusRequestTimeout))
}

func (h *ErrorHandler) HandleUnauthorized(c *fiber.Ctx, requestID string, message string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"path":       c.Path(),
		"message":    message,
	}).Warn("Unauthorized access")

	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": message,
		"code":  "UNAUTHORIZED",
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
