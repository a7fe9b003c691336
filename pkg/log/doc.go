// Package log provides the logging abstraction used across capam.
//
// The extraction core only depends on the Logger interface, so library
// consumers can plug in their own logging. A zerolog adapter is
// provided for the CLI and a no-op logger for tests and silent use.
package log
