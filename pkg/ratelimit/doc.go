// Package ratelimit keeps e621dl under the API's request budget.
//
// The e621 API asks clients to stay at or below two requests per second.
// The client uses a SlidingWindow over one second; a TokenBucket is also
// available for bursty callers. Wait honours context cancellation so an
// interrupted session does not hang on the limiter.
//
//	limiter := ratelimit.New(2)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
