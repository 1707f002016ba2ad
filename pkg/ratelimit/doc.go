// Package ratelimit throttles outbound Graph API calls.
//
// The Graph API enforces per-user call budgets over a rolling window, so
// the transport client checks a sliding window limiter before every
// request instead of reacting to 429s after the fact.
//
// All rate limiters implement the Limiter interface:
//   - Allow() bool - Check if a request is allowed
//   - Wait(ctx) error - Block until a request is allowed or ctx is done
//   - Reset() - Reset the limiter state
//
// Usage:
//
//	// 180 calls per hour, leaving headroom under the platform budget
//	limiter := ratelimit.NewSlidingWindow(180, time.Hour)
//
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//	// Proceed with request
package ratelimit
