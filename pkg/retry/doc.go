// Package retry provides backoff strategies and a small retry loop for
// transient network failures.
//
// The FetchLoop uses Wait for its pauses between batches; the proxy
// rotator uses Do with a Doubling backoff against the provider's rotate
// endpoint and a Constant one while verifying the fresh exit IP.
//
//	ip, err := retry.DoWithResult(ctx, func(ctx context.Context) (string, error) {
//		return lookupIP(ctx)
//	}, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.Constant(time.Second),
//	})
//
// Auth, not-found and parsing errors are not retried by DefaultRetryIf,
// and neither are context cancellations.
package retry
