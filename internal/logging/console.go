package logging

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/lmittmann/tint"
	"github.com/vvka-141/pgready/pkg/pgready"
)

// consoleTimeFormat matches the short clock used in interactive output.
const consoleTimeFormat = time.TimeOnly

func newConsole(w io.Writer, level pgready.Level, noColor bool) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      slogLevel(level),
		TimeFormat: consoleTimeFormat,
		NoColor:    noColor,
	}))
}

func slogLevel(l pgready.Level) slog.Level {
	switch l {
	case pgready.LevelDebug:
		return slog.LevelDebug
	case pgready.LevelWarn:
		return slog.LevelWarn
	case pgready.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// writeConsole renders one entry. Context keys are sorted so lines are stable.
func writeConsole(console *slog.Logger, e pgready.LogEntry) {
	attrs := make([]slog.Attr, 0, len(e.Context)+3)
	attrs = append(attrs, slog.String("category", e.Category.String()))
	for _, k := range slices.Sorted(maps.Keys(e.Context)) {
		attrs = append(attrs, slog.Any(k, e.Context[k]))
	}
	if e.DurationMs != nil {
		attrs = append(attrs, slog.Float64("duration_ms", *e.DurationMs))
	}
	if e.Error != "" {
		attrs = append(attrs, tint.Err(errString(e.Error)))
	}
	console.LogAttrs(context.Background(), slogLevel(e.Level), e.Message, attrs...)
}

type errString string

func (e errString) Error() string { return string(e) }
