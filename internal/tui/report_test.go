package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vvka-141/pgready/internal/db"
	"github.com/vvka-141/pgready/internal/envcheck"
	"github.com/vvka-141/pgready/internal/logging"
	"github.com/vvka-141/pgready/internal/startup"
)

func TestRenderReport_Ready(t *testing.T) {
	out := RenderReport(startup.Report{
		RunID:             "abc",
		DurationMs:        42,
		Environment:       envcheck.Report{IsValid: true},
		DatabaseConnected: true,
		ProbeAttempts:     1,
		Warnings:          []string{"STRIPE_SECRET_KEY: not set; payments is disabled"},
	})

	assert.Contains(t, out, "run abc")
	assert.Contains(t, out, "connected (1 attempt)")
	assert.Contains(t, out, "payments is disabled")
	assert.Contains(t, out, "READY")
	assert.NotContains(t, out, "NOT READY")
}

func TestRenderReport_Skipped(t *testing.T) {
	out := RenderReport(startup.Report{
		Production:   true,
		Environment:  envcheck.Report{Missing: []string{"DATABASE_URL"}},
		ProbeSkipped: true,
		Errors:       []string{"DATABASE_URL: required variable is not set"},
	})

	assert.Contains(t, out, "production")
	assert.Contains(t, out, "invalid")
	assert.Contains(t, out, "missing: DATABASE_URL")
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "NOT READY")
}

func TestRenderReport_ProbeFailed(t *testing.T) {
	out := RenderReport(startup.Report{
		Environment:   envcheck.Report{IsValid: true},
		ProbeAttempts: 6,
		ErrorCategory: "connection",
		UserMessage:   "dial tcp: connection refused",
	})

	assert.Contains(t, out, "connection failure after 6 attempts")
	assert.Contains(t, out, "dial tcp: connection refused")
}

func TestRenderEnvironment(t *testing.T) {
	out := RenderEnvironment(envcheck.Report{
		Missing:  []string{"NEXTAUTH_SECRET"},
		Errors:   []string{"NEXTAUTH_SECRET: required variable is not set"},
		Warnings: []string{"RESEND_API_KEY: not set; email is disabled"},
	})

	assert.Contains(t, out, "invalid")
	assert.Contains(t, out, "missing: NEXTAUTH_SECRET")
	assert.Contains(t, out, "email is disabled")
}

func TestRenderValidation(t *testing.T) {
	out := RenderValidation("postgresql://u:****@h:5432/db", db.Validate("postgresql://u:p@ss@h:5432/db"))

	assert.Contains(t, out, "postgresql://u:****@h:5432/db")
	assert.Contains(t, out, "valid")
	assert.Contains(t, out, "percent-encoded")
}

func TestRenderStats(t *testing.T) {
	out := RenderStats(logging.Stats{
		Total:             3,
		ByLevel:           map[string]int{"warn": 1, "info": 2},
		ByCategory:        map[string]int{"connection": 3},
		AverageDurationMs: 12.5,
	})

	assert.Contains(t, out, "3 entries")
	assert.Contains(t, out, "avg 12.5ms")
	assert.Contains(t, out, "levels: info=2 warn=1")
	assert.Contains(t, out, "categories: connection=3")
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "1 attempt", plural(1, "attempt"))
	assert.Equal(t, "0 attempts", plural(0, "attempt"))
	assert.Equal(t, "2 entries", plural(2, "entry"))
}
