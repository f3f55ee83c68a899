package middleware

import (
	"github.com/gofiber/fiber/v2"
	jwtPkg "github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/jwt"
	"github.com/sirupsen/logrus"
)

const (
	AccessTokenSecret = "JWT_ACCESS_TOKEN_SECRET"
	UserIDKey         = "user_id"
)

// NewTokenMiddleware rejects requests without a valid access token.
func (m *middleware) NewTokenMiddleware(ctx *fiber.Ctx) error {
	userID, err := m.authenticate(ctx)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"request_id": m.GetRequestID(ctx),
			"path":       ctx.Path(),
			"client_ip":  ctx.IP(),
			"error":      err.Error(),
		}).Warn("Token verification failed")
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized, access token invalid or expired",
		})
	}

	ctx.Locals(UserIDKey, userID)
	return ctx.Next()
}

// NewOptionalTokenMiddleware attaches the user when a valid token is present
// and lets anonymous requests through. A token that is present but invalid
// is still rejected.
func (m *middleware) NewOptionalTokenMiddleware(ctx *fiber.Ctx) error {
	if ctx.Get("Authorization") == "" && ctx.Query("token") == "" {
		return ctx.Next()
	}
	return m.NewTokenMiddleware(ctx)
}

func (m *middleware) authenticate(ctx *fiber.Ctx) (string, error) {
	token, err := jwtPkg.VerifyTokenHeader(ctx, AccessTokenSecret)
	if err != nil {
		return "", err
	}

	userID, err := jwtPkg.UserID(token)
	if err != nil {
		return "", err
	}

	m.log.WithFields(logrus.Fields{
		"request_id": m.GetRequestID(ctx),
		"user_id":    userID,
	}).Debug("Authentication successful")
	return userID, nil
}
