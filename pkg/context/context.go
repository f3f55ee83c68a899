package context

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

type key string

const (
	RequestIDKey = "request_id"
	userIDKey    = key("user_id")
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the authenticated user, or "" for anonymous requests.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// FromFiberCtx carries the request id and the authenticated user of a fiber
// request into a fresh context.
func FromFiberCtx(c *fiber.Ctx) context.Context {
	return Inherit(context.Background(), c)
}

// Inherit is FromFiberCtx on top of parent, for work that must stop with
// parent.
func Inherit(parent context.Context, c *fiber.Ctx) context.Context {
	requestID, ok := c.Locals("X-Request-ID").(string)
	if !ok || requestID == "" {
		requestID = c.Get("X-Request-ID")
		if requestID == "" {
			requestID = "unknown"
		}
	}

	ctx := WithRequestID(parent, requestID)
	if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
		ctx = WithUserID(ctx, userID)
	}
	return ctx
}
