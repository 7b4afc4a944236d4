// Package startup runs the checks an application performs before it accepts
// traffic: environment validation followed by a live database probe.
//
// Run never fails; it returns a Report describing every finding. Require is
// the aborting variant for process startup: it aggregates the findings into a
// single error wrapping pgready.ErrStartupFailed.
package startup
