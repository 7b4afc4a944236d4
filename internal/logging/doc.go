// Package logging provides concrete implementations of the pgready.Logger interface.
//
// Available implementations:
//   - Logger: keeps the most recent entries in a bounded ring buffer, echoes each
//     entry to stderr through a tint slog handler and derives statistics and exports
//   - NullLogger: Discards all messages (useful for testing)
//
// All logger implementations are safe for concurrent use by multiple goroutines.
package logging
