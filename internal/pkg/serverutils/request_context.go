package serverutils

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestContextMiddleware replaces the user context with one that is cancelled
// when timeout elapses or when base is done, whichever comes first. Values already
// on the user context (trace spans) are kept. A non-positive timeout only ties the
// request to base.
func RequestContextMiddleware(base context.Context, timeout time.Duration) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		var (
			reqCtx context.Context
			cancel context.CancelFunc
		)
		if timeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx.UserContext(), timeout)
		} else {
			reqCtx, cancel = context.WithCancel(ctx.UserContext())
		}
		defer cancel()

		if base.Err() != nil {
			cancel()
		} else {
			stop := context.AfterFunc(base, cancel)
			defer stop()
		}

		ctx.SetUserContext(reqCtx)
		return ctx.Next()
	}
}
