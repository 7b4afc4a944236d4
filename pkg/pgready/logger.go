package pgready

import (
	"fmt"
	"strings"
	"time"
)

// Level is the severity of a log entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the lowercase name used in exports.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	lvl, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = lvl
	return nil
}

// ParseLevel converts a level name ("debug", "info", "warn"/"warning", "error").
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q: %w", s, ErrInvalidConfig)
}

// Category groups log entries by the kind of database activity they describe.
type Category int

const (
	CategoryConnection Category = iota
	CategoryQuery
	CategoryTransaction
	CategoryMigration
	CategoryValidation
)

// Categories lists every category in declaration order.
var Categories = []Category{
	CategoryConnection,
	CategoryQuery,
	CategoryTransaction,
	CategoryMigration,
	CategoryValidation,
}

func (c Category) String() string {
	switch c {
	case CategoryConnection:
		return "connection"
	case CategoryQuery:
		return "query"
	case CategoryTransaction:
		return "transaction"
	case CategoryMigration:
		return "migration"
	case CategoryValidation:
		return "validation"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	for _, cat := range Categories {
		if cat.String() == strings.ToLower(string(text)) {
			*c = cat
			return nil
		}
	}
	return fmt.Errorf("unknown log category %q: %w", text, ErrInvalidConfig)
}

// LogEntry is one record in the diagnostic log.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      Level          `json:"level"`
	Category   Category       `json:"category"`
	Message    string         `json:"message"`
	Context    map[string]any `json:"context,omitempty"`
	DurationMs *float64       `json:"durationMs,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// LogOption decorates a LogEntry before it is appended.
type LogOption func(*LogEntry)

// WithContext merges key/value pairs into the entry context.
func WithContext(fields map[string]any) LogOption {
	return func(e *LogEntry) {
		if len(fields) == 0 {
			return
		}
		if e.Context == nil {
			e.Context = make(map[string]any, len(fields))
		}
		for k, v := range fields {
			e.Context[k] = v
		}
	}
}

// WithField sets a single context key.
func WithField(key string, value any) LogOption {
	return WithContext(map[string]any{key: value})
}

// WithDuration records how long the logged operation took.
func WithDuration(d time.Duration) LogOption {
	return func(e *LogEntry) {
		ms := float64(d.Microseconds()) / 1000
		e.DurationMs = &ms
	}
}

// WithError attaches the error message. A nil error is ignored.
func WithError(err error) LogOption {
	return func(e *LogEntry) {
		if err != nil {
			e.Error = err.Error()
		}
	}
}

// Logger receives categorized diagnostic entries.
// Implementations must be safe for concurrent use by multiple goroutines.
type Logger interface {
	Log(level Level, category Category, message string, opts ...LogOption)
}
