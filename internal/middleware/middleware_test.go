package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwtPkg "github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/jwt"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*fiber.App, Middleware) {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	m := New(l)

	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Get("/private", m.NewTokenMiddleware, func(c *fiber.Ctx) error {
		return c.SendString(m.GetUserID(c))
	})
	app.Get("/optional", m.NewOptionalTokenMiddleware, func(c *fiber.Ctx) error {
		return c.SendString("user=" + m.GetUserID(c))
	})
	return app, m
}

func body(t *testing.T, res *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(b)
}

func TestTokenMiddleware(t *testing.T) {
	t.Setenv(AccessTokenSecret, "s3cret")
	app, _ := newTestApp(t)

	token, _, err := jwtPkg.Sign(map[string]interface{}{"id": "user-7"}, time.Hour, AccessTokenSecret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "user-7", body(t, res))
	assert.NotEmpty(t, res.Header.Get(RequestIDKey))

	res, err = app.Test(httptest.NewRequest(http.MethodGet, "/private?token="+token, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = app.Test(httptest.NewRequest(http.MethodGet, "/private", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	res, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestOptionalTokenMiddleware(t *testing.T) {
	t.Setenv(AccessTokenSecret, "s3cret")
	app, _ := newTestApp(t)

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/optional", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "user=", body(t, res))

	res, err = app.Test(httptest.NewRequest(http.MethodGet, "/optional?token=bad", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRequestIDIsEchoed(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/optional", nil)
	req.Header.Set(RequestIDKey, "req-123")
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "req-123", res.Header.Get(RequestIDKey))
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	r := newRateLimiter(1, 1, time.Minute)
	now := time.Now()

	a := r.GetLimiterFrom("10.0.0.1", now)
	assert.Same(t, a, r.GetLimiterFrom("10.0.0.1", now))
	assert.True(t, a.AllowN(now, 1))
	assert.False(t, a.AllowN(now, 1))

	r.GetLimiterFrom("10.0.0.2", now.Add(2*time.Minute))
	assert.Equal(t, 1, r.size())
}

func TestSanitizeRequestBody(t *testing.T) {
	out := sanitizeRequestBody("application/json", []byte(`{"image":"AAAAAAAA","token":"abc","note":"hi"}`))
	assert.Contains(t, out, `"image":"[8 chars]"`)
	assert.Contains(t, out, `"token":"[SECRET]"`)
	assert.Contains(t, out, `"note":"hi"`)

	assert.Equal(t, "[multipart body]", sanitizeRequestBody("multipart/form-data; boundary=x", []byte("--x")))
	assert.Equal(t, "[non-JSON body]", sanitizeRequestBody("text/plain", []byte("hello")))
}
