package config

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/utils"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNewFiber_BodyLimitFitsLargestBase64Image(t *testing.T) {
	app := NewFiber(quietLogger())

	limit := app.Config().BodyLimit
	assert.Equal(t, BodyLimit, limit)
	assert.Greater(t, limit, utils.DefaultMaxImageSize*4/3)
}

func TestNewFiber_ErrorsAreJSON(t *testing.T) {
	app := NewFiber(quietLogger())
	app.Get("/boom", func(*fiber.Ctx) error { return errors.New("database exploded") })
	app.Get("/gone", func(*fiber.Ctx) error { return fiber.ErrUpgradeRequired })

	tests := []struct {
		path       string
		wantStatus int
		wantError  string
	}{
		{path: "/missing", wantStatus: http.StatusNotFound},
		{path: "/gone", wantStatus: http.StatusUpgradeRequired, wantError: fiber.ErrUpgradeRequired.Message},
		{path: "/boom", wantStatus: http.StatusInternalServerError, wantError: "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.StatusCode)
			assert.Contains(t, res.Header.Get("Content-Type"), "application/json")

			var body map[string]any
			require.NoError(t, jsoniter.NewDecoder(res.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			}
		})
	}
}
