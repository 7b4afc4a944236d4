// Package retry provides automatic retry logic with exponential backoff
// and error classification for database operations.
//
// # Example Usage
//
//	executor := retry.NewExecutor(logger).WithClassifier(retry.NewClassifier())
//
//	outcome := retry.Do(ctx, executor, retry.ConnectionPolicy(), "connect",
//	    func(ctx context.Context) (*pgxpool.Pool, error) {
//	        return pgxpool.New(ctx, dsn)
//	    })
//	if !outcome.Success {
//	    return outcome.Err
//	}
//
// # Policies
//
// A Policy computes min(maxDelay, baseDelay * multiplier^(attempt-1)) for
// each retry, optionally perturbed by up to 25% in either direction. Three
// presets cover connections, queries and everything else.
//
// # Error Classification
//
// The Classifier maps errors to connection, authentication, timeout,
// validation or unknown. Typed pgx and network errors are inspected first;
// message fragments are the fallback. Authentication and validation
// failures are never retryable.
//
// # Thread Safety
//
// Policy values are immutable. Executor and Classifier instances are safe for
// concurrent use. WithClassifier() and WithObserver() return new executors.
package retry
