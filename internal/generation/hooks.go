package generation

import (
	"context"
	"time"
)

// RetryHook observes provider retries made on behalf of a request.
type RetryHook func(call string, attempt int, delay time.Duration, err error)

type retryHookKey struct{}

// ContextWithRetryHook returns a context whose generation requests report
// each retry to fn.
func ContextWithRetryHook(ctx context.Context, fn RetryHook) context.Context {
	return context.WithValue(ctx, retryHookKey{}, fn)
}

func retryHookFrom(ctx context.Context) RetryHook {
	fn, _ := ctx.Value(retryHookKey{}).(RetryHook)
	return fn
}
