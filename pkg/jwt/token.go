package jwtPkg

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

var (
	ErrMissingToken   = errors.New("empty Authorization header")
	ErrInvalidFormat  = errors.New("invalid Authorization format")
	ErrNoSecret       = errors.New("JWT secret not configured")
	ErrMissingSubject = errors.New("token has no user id")
)

// Sign issues an HS256 token. Tokens are issued by the account service; this
// is used by tools and tests that need one locally.
func Sign(data map[string]interface{}, expiresIn time.Duration, secretEnvKey string) (string, int64, error) {
	secret := os.Getenv(secretEnvKey)
	if secret == "" {
		return "", 0, ErrNoSecret
	}

	expiredAt := time.Now().Add(expiresIn).Unix()
	claims := jwt.MapClaims{"exp": expiredAt}
	for k, v := range data {
		claims[k] = v
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", 0, err
	}
	return token, expiredAt, nil
}

// VerifyTokenHeader verifies the bearer token of the request. Browsers cannot
// set headers on websocket upgrades, so a "token" query parameter is accepted
// as well.
func VerifyTokenHeader(c *fiber.Ctx, secretEnvKey string) (*jwt.Token, error) {
	log := logrus.WithField("func", "VerifyTokenHeader")

	accessToken := c.Query("token")
	if accessToken == "" {
		header := c.Get("Authorization")
		if header == "" {
			return nil, ErrMissingToken
		}

		parts := strings.Split(header, "Bearer ")
		if len(parts) != 2 {
			log.WithField("header_parts", len(parts)).Debug("Invalid Authorization format")
			return nil, ErrInvalidFormat
		}
		accessToken = strings.TrimSpace(parts[1])
	}

	if accessToken == "" {
		return nil, ErrMissingToken
	}
	return VerifyToken(accessToken, os.Getenv(secretEnvKey))
}

func VerifyToken(accessToken string, secret string) (*jwt.Token, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}

	token, err := jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// UserID reads the user id claim, "id" or the standard "sub".
func UserID(token *jwt.Token) (string, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrMissingSubject
	}
	if id, ok := claims["id"].(string); ok && id != "" {
		return id, nil
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	return "", ErrMissingSubject
}
