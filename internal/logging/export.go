package logging

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vvka-141/pgready/pkg/pgready"
)

// ExportFormat selects the serialization used by Export.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// csvHeader is the first row of every CSV export.
var csvHeader = []string{"timestamp", "level", "category", "message", "duration", "error"}

// ParseExportFormat accepts "json" or "csv", case-insensitively.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q (expected json or csv): %w", s, pgready.ErrInvalidConfig)
}

// Export serializes the buffered entries. JSON yields an array of entries;
// CSV yields a header row and one record per entry with RFC 4180 quoting.
func (l *Logger) Export(format ExportFormat) ([]byte, error) {
	entries := l.snapshot()

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode log entries: %w", err)
		}
		return data, nil

	case FormatCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write(csvHeader); err != nil {
			return nil, fmt.Errorf("failed to write csv header: %w", err)
		}
		for _, e := range entries {
			if err := w.Write(csvRecord(e)); err != nil {
				return nil, fmt.Errorf("failed to write csv record: %w", err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("failed to flush csv: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unknown export format %q: %w", format, pgready.ErrInvalidConfig)
	}
}

func csvRecord(e pgready.LogEntry) []string {
	duration := ""
	if e.DurationMs != nil {
		duration = strconv.FormatFloat(*e.DurationMs, 'f', -1, 64)
	}
	return []string{
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Level.String(),
		e.Category.String(),
		e.Message,
		duration,
		e.Error,
	}
}
