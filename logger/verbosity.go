package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants for the CLI's repeatable -v flag.
const (
	VerbosityUser  = 0 // no flags: results and errors only
	VerbosityInfo  = 1 // -v: progress and phase summaries
	VerbosityDebug = 2 // -vv: REST calls, retries, resolver decisions
	VerbosityTrace = 3 // -vvv: request/response bodies, full row dumps
)

// LevelForVerbosity maps a -v flag count to a zap level.
func LevelForVerbosity(verbosity int) zapcore.Level {
	switch {
	case verbosity <= VerbosityUser:
		return zapcore.WarnLevel
	case verbosity == VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// ShouldLogTrace reports whether trace-level detail (request/response bodies,
// per-row diagnostics) should be emitted at the given verbosity.
func ShouldLogTrace(verbosity int) bool {
	return verbosity >= VerbosityTrace
}
