// Package retry retries transient API failures with backoff.
//
// Only errors typed by e621dl/pkg/errors as network, rate limit or server
// errors are retried by default. Rate limit errors can use a slower backoff
// than the rest.
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
//	    return client.get(ctx, url, &out)
//	})
package retry
