// Package envcheck validates the process environment an application needs
// before it starts: required keys, secret strength, the public base URL and
// DATABASE_URL, plus a scan for placeholder values left over from templates.
//
// Values are read through a Lookup so tests and the CLI can validate a .env
// file without touching the real environment.
package envcheck
