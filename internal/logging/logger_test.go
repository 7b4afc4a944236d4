package logging

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/pgready/pkg/pgready"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time { return c.t }

func newQuietLogger(opts ...Option) *Logger {
	return New(append([]Option{WithConsole(nil)}, opts...)...)
}

func TestLogger_RingBufferKeepsNewest(t *testing.T) {
	const capacity = 10
	logger := newQuietLogger(WithCapacity(capacity))

	for i := 0; i < capacity+5; i++ {
		logger.LogConnection(pgready.LevelInfo, fmt.Sprintf("entry %d", i))
	}

	recent := logger.Recent(capacity)
	require.Len(t, recent, capacity)
	for i, e := range recent {
		assert.Equal(t, fmt.Sprintf("entry %d", i+5), e.Message)
	}
	assert.Equal(t, capacity, logger.Stats().Total)
	assert.Equal(t, capacity, logger.Len())
}

func TestLogger_DefaultCapacity(t *testing.T) {
	logger := newQuietLogger(WithCapacity(0))
	assert.Equal(t, pgready.DefaultLogCapacity, logger.Capacity())
}

func TestLogger_RecentFiltersByLevel(t *testing.T) {
	logger := newQuietLogger()
	logger.LogConnection(pgready.LevelInfo, "connected")
	logger.LogQuery(pgready.LevelWarn, "SELECT 1", 5*time.Millisecond)
	logger.LogTransaction(pgready.LevelError, "rollback")
	logger.LogValidation(pgready.LevelWarn, "sslmode missing")

	warnings := logger.Recent(0, pgready.LevelWarn)
	require.Len(t, warnings, 2)
	assert.Equal(t, "query executed", warnings[0].Message)
	assert.Equal(t, "sslmode missing", warnings[1].Message)

	last := logger.Recent(1, pgready.LevelWarn, pgready.LevelError)
	require.Len(t, last, 1)
	assert.Equal(t, "sslmode missing", last[0].Message)

	assert.Len(t, logger.Recent(0), 4)
}

func TestLogger_ByCategoryAndErrorsOnly(t *testing.T) {
	logger := newQuietLogger()
	logger.LogConnection(pgready.LevelError, "refused", pgready.WithError(errors.New("econnrefused")))
	logger.LogMigration(pgready.LevelInfo, "applied 3")
	logger.LogConnection(pgready.LevelInfo, "connected")
	logger.LogQuery(pgready.LevelError, "SELECT broken", time.Millisecond)

	conn := logger.ByCategory(pgready.CategoryConnection, 10)
	require.Len(t, conn, 2)
	assert.Equal(t, "refused", conn[0].Message)
	assert.Equal(t, "econnrefused", conn[0].Error)

	migrations := logger.ByCategory(pgready.CategoryMigration, 10)
	require.Len(t, migrations, 1)

	errs := logger.ErrorsOnly(1)
	require.Len(t, errs, 1)
	assert.Equal(t, pgready.CategoryQuery, errs[0].Category)
}

func TestLogger_ReadersReturnCopies(t *testing.T) {
	logger := newQuietLogger()
	logger.LogConnection(pgready.LevelInfo, "connected", pgready.WithField("host", "db"))

	got := logger.Recent(1)
	got[0].Context["host"] = "mutated"

	assert.Equal(t, "db", logger.Recent(1)[0].Context["host"])
}

func TestLogger_Stats(t *testing.T) {
	clock := &stepClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	logger := newQuietLogger(WithClock(clock.now))

	logger.LogConnection(pgready.LevelError, "old failure")
	clock.t = clock.t.Add(2 * time.Hour)
	logger.LogConnection(pgready.LevelError, "fresh failure")
	logger.LogQuery(pgready.LevelInfo, "SELECT 1", 10*time.Millisecond)
	logger.LogQuery(pgready.LevelInfo, "SELECT 2", 30*time.Millisecond)
	logger.LogValidation(pgready.LevelWarn, "no duration")

	stats := logger.Stats()
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, map[string]int{"error": 2, "info": 2, "warn": 1}, stats.ByLevel)
	assert.Equal(t, map[string]int{"connection": 2, "query": 2, "validation": 1}, stats.ByCategory)
	assert.Equal(t, 1, stats.RecentErrors)
	assert.InDelta(t, 20.0, stats.AverageDurationMs, 0.001)
}

func TestLogger_StatsEmpty(t *testing.T) {
	stats := newQuietLogger().Stats()
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.AverageDurationMs)
}

func TestLogger_Clear(t *testing.T) {
	logger := newQuietLogger()
	logger.LogConnection(pgready.LevelInfo, "a")
	logger.LogConnection(pgready.LevelInfo, "b")

	logger.Clear()
	assert.Empty(t, logger.Recent(0))
	assert.Zero(t, logger.Stats().Total)
}

func TestLogger_ConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithConsole(&buf), WithNoColor(true), WithConsoleLevel(pgready.LevelDebug))

	logger.LogConnection(pgready.LevelInfo, "connected", pgready.WithField("host", "db.internal"))
	logger.LogConnection(pgready.LevelDebug, "handshake details")
	logger.LogQuery(pgready.LevelError, "SELECT 1", 0, pgready.WithError(errors.New("boom")))

	out := buf.String()
	assert.Contains(t, out, "INF connected")
	assert.Contains(t, out, "category=connection")
	assert.Contains(t, out, "host=db.internal")
	assert.Contains(t, out, "DBG handshake details")
	assert.Contains(t, out, "ERR query executed")
	assert.Contains(t, out, "err=boom")
}

func TestLogger_ProductionSuppressesDebugOnConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithConsole(&buf), WithNoColor(true),
		WithProduction(true), WithConsoleLevel(pgready.LevelDebug))

	logger.LogConnection(pgready.LevelDebug, "handshake details")
	logger.LogConnection(pgready.LevelInfo, "connected")

	assert.NotContains(t, buf.String(), "handshake details")
	assert.Contains(t, buf.String(), "connected")
	// buffered regardless of console level
	assert.Len(t, logger.Recent(0), 2)
}

func TestLogger_SinkOnlyInProduction(t *testing.T) {
	tests := []struct {
		name       string
		production bool
		want       []string
	}{
		{"production", true, []string{"slow", "down"}},
		{"development", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			logger := newQuietLogger(WithProduction(tt.production), WithSink(func(e pgready.LogEntry) {
				got = append(got, e.Message)
			}))

			logger.LogConnection(pgready.LevelInfo, "connected")
			logger.LogConnection(pgready.LevelWarn, "slow")
			logger.LogConnection(pgready.LevelDebug, "noise")
			logger.LogConnection(pgready.LevelError, "down")

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogger_ExportJSON(t *testing.T) {
	clock := &stepClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	logger := newQuietLogger(WithClock(clock.now))
	logger.LogQuery(pgready.LevelInfo, "SELECT 1", 1500*time.Microsecond)
	logger.LogConnection(pgready.LevelError, "refused", pgready.WithError(errors.New("econnrefused")))

	data, err := logger.Export(FormatJSON)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "query", decoded[0]["category"])
	assert.Equal(t, 1.5, decoded[0]["durationMs"])
	assert.Equal(t, "error", decoded[1]["level"])
	assert.Equal(t, "econnrefused", decoded[1]["error"])
	assert.Equal(t, "2026-03-01T12:00:00Z", decoded[1]["timestamp"])
}

func TestLogger_ExportCSVEscapesFields(t *testing.T) {
	logger := newQuietLogger()
	logger.LogValidation(pgready.LevelWarn, `value "x", then y`,
		pgready.WithError(errors.New("bad, \"quoted\" error")))

	data, err := logger.Export(FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"value ""x"", then y"`)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "warn", records[1][1])
	assert.Equal(t, "validation", records[1][2])
	assert.Equal(t, `value "x", then y`, records[1][3])
	assert.Equal(t, "", records[1][4])
	assert.Equal(t, `bad, "quoted" error`, records[1][5])
}

func TestParseExportFormat(t *testing.T) {
	f, err := ParseExportFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseExportFormat("xml")
	assert.ErrorIs(t, err, pgready.ErrInvalidConfig)

	_, err = newQuietLogger().Export("xml")
	assert.ErrorIs(t, err, pgready.ErrInvalidConfig)
}

func TestLogger_ConcurrentSafety(t *testing.T) {
	logger := newQuietLogger(WithCapacity(50))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				logger.LogConnection(pgready.LevelInfo, fmt.Sprintf("worker %d", id))
				_ = logger.Recent(5)
				_ = logger.Stats()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, logger.Len())
}

func TestNullLogger_DiscardsAllMessages(t *testing.T) {
	var logger pgready.Logger = NewNullLogger()
	assert.NotPanics(t, func() {
		logger.Log(pgready.LevelError, pgready.CategoryConnection, "ignored")
	})
}
