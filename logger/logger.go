// Package logger provides ctrl-q's process-wide logging context.
//
// A package-level *zap.SugaredLogger is initialized once at CLI startup
// from the repeatable -v flag (see verbosity.go). Components should not
// reach into the package global from deep call stacks; instead they take a
// *zap.SugaredLogger (or logger.ComponentLogger(name)) injected by their
// constructor, so tests can supply an observer logger or a no-op one.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger. It is safe to use before Initialize:
// it starts as a no-op so packages that log at import/init time never panic.
var Logger *zap.SugaredLogger

func init() {
	Logger = zap.NewNop().Sugar()
}

// Initialize configures the global logger from the CLI's verbosity count.
// jsonOutput selects structured JSON lines (for piping into log tooling)
// over the calm, human-readable console encoder used on a terminal.
func Initialize(verbosity int, jsonOutput bool) error {
	level := LevelForVerbosity(verbosity)

	var core zapcore.Core
	if jsonOutput {
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "ts"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core = zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stdout), level)
	} else {
		encoderCfg := zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		encoderCfg.EncodeName = zapcore.FullNameEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(os.Stderr), level)
	}

	Logger = zap.New(core).Sugar()
	return nil
}

// ComponentLogger returns a named child logger. This is the preferred way
// to hand a logger to a constructor (transport.NewClient, qrs.New,
// importer.New, ...).
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// Cleanup flushes any buffered log entries. Errors from Sync are often
// ignorable for stdout/stderr (ENOTTY/EINVAL on some platforms) but are
// still returned so callers can decide.
func Cleanup() error {
	if Logger == nil {
		return nil
	}
	return Logger.Sync()
}
