package logger

import (
	"github.com/fatih/color" // Colored console output, one color per level
)

// Leveled printf-style loggers. Every message is expected to carry its own
// "[INFO]"/"[WARN]"/"[ERROR]"/"[DEBUG]" prefix and trailing newline.

// Info reports normal progress of an install in green.
var Info = color.New(color.FgGreen).PrintfFunc()

// Warn reports recoverable problems (stale mounts, failed detaches) in bright magenta.
var Warn = color.New(color.FgHiMagenta).PrintfFunc()

// Error reports a failed install or command in red.
var Error = color.New(color.FgRed).PrintfFunc()

// Debug prints cyan diagnostics (raw hdiutil output, HTTP hops) when enabled.
// It starts as a no-op so packages used before Init, such as in tests, stay quiet.
var Debug = func(format string, a ...any) {}

// Init configures the package for the current run.
// enableDebug turns on Debug output; disableColor strips ANSI codes from
// every level, which is what you want when output is piped to a file.
func Init(enableDebug, disableColor bool) {
	if disableColor {
		color.NoColor = true
	}
	if enableDebug {
		Debug = color.New(color.FgCyan).PrintfFunc()
	} else {
		Debug = func(format string, a ...any) {}
	}
}
