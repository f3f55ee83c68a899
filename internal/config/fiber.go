package config

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/utils"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

// BodyLimit admits one maximum-size image sent as base64 JSON, which is about
// a third larger than the raw bytes, plus room for the multipart envelope.
const BodyLimit = utils.DefaultMaxImageSize*4/3 + 64*1024

func NewFiber(logger *logrus.Logger) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:           "Ketoslim Scan",
			BodyLimit:         BodyLimit,
			DisableKeepalive:  false,
			StrictRouting:     true,
			CaseSensitive:     true,
			EnablePrintRoutes: false,
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
			ErrorHandler:      errorHandler(logger),
		})

	return app
}

// errorHandler answers errors no route handled itself (unknown routes,
// oversized bodies, failed upgrades) in the same JSON shape as handlerUtil.
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		entry := logger.WithFields(logrus.Fields{
			"path":   ctx.Path(),
			"method": ctx.Method(),
			"status": code,
			"error":  err.Error(),
		})
		if code >= fiber.StatusInternalServerError {
			entry.Error("Unhandled request error")
			return ctx.Status(code).JSON(fiber.Map{"error": "An unexpected error occurred"})
		}
		entry.Debug("Request rejected")
		return ctx.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}
