package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vvka-141/pgready/internal/db"
	"github.com/vvka-141/pgready/internal/envcheck"
	"github.com/vvka-141/pgready/internal/logging"
	"github.com/vvka-141/pgready/internal/startup"
)

// RenderReport formats a startup report for the terminal.
func RenderReport(r startup.Report) string {
	var b strings.Builder

	mode := "development"
	if r.Production {
		mode = "production"
	}
	b.WriteString(TitleStyle.Render("pgready startup check"))
	b.WriteString(" ")
	b.WriteString(SubtitleStyle.Render(fmt.Sprintf("(%s, run %s, %dms)", mode, r.RunID, r.DurationMs)))
	b.WriteString("\n\n")

	envStatus := SuccessStyle.Render(SymbolCheck + " valid")
	if !r.Environment.IsValid {
		envStatus = ErrorStyle.Render(SymbolCross + " invalid")
	}
	writeSection(&b, "Environment", envStatus)
	if len(r.Environment.Missing) > 0 {
		writeDetail(&b, MutedStyle.Render("missing: "+strings.Join(r.Environment.Missing, ", ")))
	}

	var dbStatus string
	switch {
	case r.ProbeSkipped:
		dbStatus = MutedStyle.Render(SymbolSkipped + " skipped")
	case r.DatabaseConnected:
		dbStatus = SuccessStyle.Render(fmt.Sprintf("%s connected (%s)", SymbolCheck, plural(r.ProbeAttempts, "attempt")))
	default:
		dbStatus = ErrorStyle.Render(fmt.Sprintf("%s %s failure after %s", SymbolCross, r.ErrorCategory, plural(r.ProbeAttempts, "attempt")))
	}
	writeSection(&b, "Database", dbStatus)
	if r.UserMessage != "" {
		writeDetail(&b, r.UserMessage)
	}

	if len(r.Errors) > 0 {
		b.WriteString("\n")
		for _, msg := range r.Errors {
			writeDetail(&b, ErrorStyle.Render(SymbolCross)+" "+msg)
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n")
		for _, msg := range r.Warnings {
			writeDetail(&b, WarningStyle.Render(SymbolWarning)+" "+msg)
		}
	}

	b.WriteString("\n")
	if r.Ready() {
		b.WriteString(SuccessStyle.Bold(true).Render("READY"))
	} else {
		b.WriteString(ErrorStyle.Bold(true).Render("NOT READY"))
	}
	b.WriteString("\n")
	return b.String()
}

// RenderEnvironment formats an environment-only validation.
func RenderEnvironment(r envcheck.Report) string {
	var b strings.Builder

	status := SuccessStyle.Render(SymbolCheck + " valid")
	if !r.IsValid {
		status = ErrorStyle.Render(SymbolCross + " invalid")
	}
	writeSection(&b, "Environment", status)
	if len(r.Missing) > 0 {
		writeDetail(&b, MutedStyle.Render("missing: "+strings.Join(r.Missing, ", ")))
	}
	for _, msg := range r.Errors {
		writeDetail(&b, ErrorStyle.Render(SymbolCross)+" "+msg)
	}
	for _, msg := range r.Warnings {
		writeDetail(&b, WarningStyle.Render(SymbolWarning)+" "+msg)
	}
	return b.String()
}

// RenderValidation formats a connection string validation result. redacted
// is shown in place of the raw URL.
func RenderValidation(redacted string, r db.ValidationResult) string {
	var b strings.Builder

	status := SuccessStyle.Render(SymbolCheck + " valid")
	if !r.IsValid {
		status = ErrorStyle.Render(SymbolCross + " invalid")
	}
	writeSection(&b, "URL", redacted)
	writeSection(&b, "Status", status)
	for _, msg := range r.Errors {
		writeDetail(&b, ErrorStyle.Render(SymbolCross)+" "+msg)
	}
	for _, msg := range r.Warnings {
		writeDetail(&b, WarningStyle.Render(SymbolWarning)+" "+msg)
	}
	return b.String()
}

// RenderStats formats the diagnostic log summary shown with --verbose.
func RenderStats(s logging.Stats) string {
	var b strings.Builder
	writeSection(&b, "Log", fmt.Sprintf("%s, %d recent error(s), avg %.1fms",
		plural(s.Total, "entry"), s.RecentErrors, s.AverageDurationMs))
	if len(s.ByLevel) > 0 {
		writeDetail(&b, MutedStyle.Render("levels: "+formatCounts(s.ByLevel)))
	}
	if len(s.ByCategory) > 0 {
		writeDetail(&b, MutedStyle.Render("categories: "+formatCounts(s.ByCategory)))
	}
	return b.String()
}

func writeSection(b *strings.Builder, name, value string) {
	b.WriteString(SectionStyle.Render(name))
	b.WriteString(value)
	b.WriteString("\n")
}

func writeDetail(b *strings.Builder, text string) {
	b.WriteString(DetailStyle.Render(text))
	b.WriteString("\n")
}

func formatCounts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, " ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	if strings.HasSuffix(noun, "y") {
		return fmt.Sprintf("%d %sies", n, strings.TrimSuffix(noun, "y"))
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
