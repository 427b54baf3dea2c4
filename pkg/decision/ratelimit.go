package decision

import (
	"context"

	"golang.org/x/time/rate"
)

type limitedCompleter struct {
	next    Completer
	limiter *rate.Limiter
}

// RateLimited wraps a completer so that it issues at most rps requests per
// second with the given burst. A non-positive rps disables limiting.
func RateLimited(next Completer, rps float64, burst int) Completer {
	if next == nil || rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &limitedCompleter{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Complete blocks until the limiter admits the request.
func (c *limitedCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return c.next.Complete(ctx, p)
}
