package logging

import (
	"time"

	"github.com/vvka-141/pgready/pkg/pgready"
)

// errorWindow is the trailing window counted by Stats.RecentErrors.
const errorWindow = time.Hour

// Stats summarizes the buffered entries.
type Stats struct {
	Total      int            `json:"total"`
	ByLevel    map[string]int `json:"byLevel"`
	ByCategory map[string]int `json:"byCategory"`

	// RecentErrors counts Error entries within the trailing hour.
	RecentErrors int `json:"recentErrors"`

	// AverageDurationMs is the mean over entries that carry a duration, 0 when none do.
	AverageDurationMs float64 `json:"averageDurationMs"`
}

// Stats computes summary statistics over the current buffer.
func (l *Logger) Stats() Stats {
	entries := l.snapshot()
	cutoff := l.now().Add(-errorWindow)

	s := Stats{
		Total:      len(entries),
		ByLevel:    make(map[string]int),
		ByCategory: make(map[string]int),
	}

	var durationSum float64
	var durations int
	for _, e := range entries {
		s.ByLevel[e.Level.String()]++
		s.ByCategory[e.Category.String()]++
		if e.Level == pgready.LevelError && !e.Timestamp.Before(cutoff) {
			s.RecentErrors++
		}
		if e.DurationMs != nil {
			durationSum += *e.DurationMs
			durations++
		}
	}
	if durations > 0 {
		s.AverageDurationMs = durationSum / float64(durations)
	}
	return s
}
