// Package retry provides backoff and retry logic for transient failures
// in storage and Graph API operations, plus the cancellable Wait used for
// pacing between accounts, posts and result pages.
//
// Basic usage:
//
//	// Simple retry with defaults
//	err := retry.Do(func() error {
//		return storage.Insert(ctx, "instagram_posts", record, nil)
//	}, nil)
//
//	// Custom configuration
//	cfg := &retry.Config{
//		MaxAttempts: 5,
//		Backoff: &retry.ExponentialBackoff{
//			BaseDelay:    2 * time.Second,
//			MaxDelay:     30 * time.Second,
//			Multiplier:   2.0,
//			JitterFactor: 0.1,
//		},
//		RetryIf: retry.DefaultRetryIf,
//		Logger:  logger.GetLogger(),
//	}
//	err := retry.Do(operation, cfg)
//
// Auth, not-found and validation errors are never retried; network,
// rate-limit and server errors are.
package retry
