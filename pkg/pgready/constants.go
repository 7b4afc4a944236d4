package pgready

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // All checks passed
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration or environment
	ExitConnectionError = 11 // Failed to connect to database
	ExitStartupFailed   = 12 // Startup checks failed for more than one reason
)

const (
	// DefaultLogCapacity is the number of entries the diagnostic ring buffer keeps.
	DefaultLogCapacity = 1000

	// DefaultProbeTimeout bounds the whole live connectivity probe, retries included.
	DefaultProbeTimeout = 2 * time.Minute

	// DefaultBreakerFailureThreshold is the failure count that opens a circuit.
	DefaultBreakerFailureThreshold = 5

	// DefaultBreakerResetTimeout is how long an open circuit waits after the last
	// failure before letting a trial call through.
	DefaultBreakerResetTimeout = 60 * time.Second

	// DefaultBreakerMonitoringPeriod is the quiet period after which a closed
	// circuit forgets earlier failures.
	DefaultBreakerMonitoringPeriod = 120 * time.Second

	// MaskedPassword replaces passwords in anything that is logged or printed.
	MaskedPassword = "****"

	// EnvProductionKey is checked (along with NODE_ENV and APP_ENV) to decide
	// whether validation runs in production mode.
	EnvProductionKey = "PGREADY_ENV"
)
