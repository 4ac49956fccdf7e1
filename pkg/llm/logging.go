package llm

import (
	"context"
	"time"

	"refinery/pkg/logx"
)

// LoggingMiddleware logs every completion with model, duration, and outcome
// under the "llm" debug domain.
func LoggingMiddleware(logger *logx.Logger) Middleware {
	return func(next Client) Client {
		return WrapClient(
			func(ctx context.Context, in Request) (Response, error) {
				start := time.Now()
				resp, err := next.Complete(ctx, in)
				elapsed := time.Since(start)
				if err != nil {
					logger.Warn("completion failed on %s after %s: %v", next.GetModelName(), elapsed, err)
					return resp, err
				}
				logger.DebugDomain("llm", "completion on %s: %d messages in, %d chars out, stop=%s, %s",
					next.GetModelName(), len(in.Messages), len(resp.Content), resp.StopReason, elapsed)
				return resp, nil
			},
			next.GetModelName,
		)
	}
}
