package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/vvka-141/pgready/pkg/pgready"
)

// Sink receives Warn and Error entries in production mode.
// It is called outside the buffer lock and must not block for long.
type Sink func(entry pgready.LogEntry)

// Logger keeps the most recent entries in a bounded buffer and echoes each one
// to the console. Safe for concurrent use by multiple goroutines.
type Logger struct {
	capacity     int
	production   bool
	consoleLevel pgready.Level
	consoleOut   io.Writer
	noColor      bool
	sink         Sink
	now          func() time.Time

	console *slog.Logger

	mu      sync.Mutex
	entries []pgready.LogEntry
}

// Option configures a Logger.
type Option func(*Logger)

// WithCapacity bounds the buffer. Values below 1 keep the default.
func WithCapacity(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.capacity = n
		}
	}
}

// WithProduction enables production mode: Debug entries never reach the
// console and Warn/Error entries are handed to the sink.
func WithProduction(production bool) Option {
	return func(l *Logger) {
		l.production = production
	}
}

// WithConsole redirects console output. A nil writer disables it.
func WithConsole(w io.Writer) Option {
	return func(l *Logger) {
		l.consoleOut = w
	}
}

// WithConsoleLevel sets the lowest level echoed to the console.
func WithConsoleLevel(level pgready.Level) Option {
	return func(l *Logger) {
		l.consoleLevel = level
	}
}

// WithNoColor disables ANSI colors in console output.
func WithNoColor(noColor bool) Option {
	return func(l *Logger) {
		l.noColor = noColor
	}
}

// WithSink installs the production hook for Warn and Error entries.
func WithSink(s Sink) Option {
	return func(l *Logger) {
		l.sink = s
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		l.now = now
	}
}

// New creates a Logger writing to stderr at Info level with
// pgready.DefaultLogCapacity entries.
func New(opts ...Option) *Logger {
	l := &Logger{
		capacity:     pgready.DefaultLogCapacity,
		consoleLevel: pgready.LevelInfo,
		consoleOut:   os.Stderr,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.production && l.consoleLevel < pgready.LevelInfo {
		l.consoleLevel = pgready.LevelInfo
	}
	if l.consoleOut != nil {
		l.console = newConsole(l.consoleOut, l.consoleLevel, l.noColor)
	}
	l.entries = make([]pgready.LogEntry, 0, min(l.capacity, 64))
	return l
}

// Capacity returns the maximum number of retained entries.
func (l *Logger) Capacity() int {
	return l.capacity
}

// Production reports whether the logger runs in production mode.
func (l *Logger) Production() bool {
	return l.production
}

// Log appends an entry. It implements pgready.Logger.
func (l *Logger) Log(level pgready.Level, category pgready.Category, message string, opts ...pgready.LogOption) {
	entry := pgready.LogEntry{
		Level:    level,
		Category: category,
		Message:  message,
	}
	for _, opt := range opts {
		opt(&entry)
	}
	entry.Timestamp = l.now()

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	if over := len(l.entries) - l.capacity; over > 0 {
		l.entries = append(l.entries[:0], l.entries[over:]...)
	}
	l.mu.Unlock()

	if l.console != nil {
		writeConsole(l.console, entry)
	}
	if l.production && l.sink != nil && level >= pgready.LevelWarn {
		l.sink(entry)
	}
}

// LogConnection appends a connection entry.
func (l *Logger) LogConnection(level pgready.Level, message string, opts ...pgready.LogOption) {
	l.Log(level, pgready.CategoryConnection, message, opts...)
}

// LogQuery appends a query entry. The SQL text is recorded under "query" and
// the execution time as the entry duration.
func (l *Logger) LogQuery(level pgready.Level, sql string, d time.Duration, opts ...pgready.LogOption) {
	opts = append([]pgready.LogOption{pgready.WithField("query", sql), pgready.WithDuration(d)}, opts...)
	l.Log(level, pgready.CategoryQuery, "query executed", opts...)
}

// LogTransaction appends a transaction entry.
func (l *Logger) LogTransaction(level pgready.Level, message string, opts ...pgready.LogOption) {
	l.Log(level, pgready.CategoryTransaction, message, opts...)
}

// LogMigration appends a migration entry.
func (l *Logger) LogMigration(level pgready.Level, message string, opts ...pgready.LogOption) {
	l.Log(level, pgready.CategoryMigration, message, opts...)
}

// LogValidation appends a validation entry.
func (l *Logger) LogValidation(level pgready.Level, message string, opts ...pgready.LogOption) {
	l.Log(level, pgready.CategoryValidation, message, opts...)
}

// Recent returns up to n of the newest entries in insertion order. When levels
// are given only entries at those levels are considered. n <= 0 means all.
func (l *Logger) Recent(n int, levels ...pgready.Level) []pgready.LogEntry {
	return l.tail(n, func(e *pgready.LogEntry) bool {
		if len(levels) == 0 {
			return true
		}
		for _, lvl := range levels {
			if e.Level == lvl {
				return true
			}
		}
		return false
	})
}

// ByCategory returns up to n of the newest entries in category.
func (l *Logger) ByCategory(category pgready.Category, n int) []pgready.LogEntry {
	return l.tail(n, func(e *pgready.LogEntry) bool {
		return e.Category == category
	})
}

// ErrorsOnly returns up to n of the newest Error entries.
func (l *Logger) ErrorsOnly(n int) []pgready.LogEntry {
	return l.Recent(n, pgready.LevelError)
}

// Clear drops every buffered entry.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}

// Len returns the number of buffered entries.
func (l *Logger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// tail walks the buffer backwards collecting matches, then restores insertion order.
func (l *Logger) tail(n int, match func(*pgready.LogEntry) bool) []pgready.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 {
		n = len(l.entries)
	}
	out := make([]pgready.LogEntry, 0, min(n, len(l.entries)))
	for i := len(l.entries) - 1; i >= 0 && len(out) < n; i-- {
		if match(&l.entries[i]) {
			out = append(out, copyEntry(l.entries[i]))
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (l *Logger) snapshot() []pgready.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]pgready.LogEntry, len(l.entries))
	for i, e := range l.entries {
		out[i] = copyEntry(e)
	}
	return out
}

func copyEntry(e pgready.LogEntry) pgready.LogEntry {
	if e.Context != nil {
		ctx := make(map[string]any, len(e.Context))
		for k, v := range e.Context {
			ctx[k] = v
		}
		e.Context = ctx
	}
	return e
}

var _ pgready.Logger = (*Logger)(nil)
