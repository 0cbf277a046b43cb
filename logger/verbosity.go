package logger

import "go.uber.org/zap/zapcore"

// VerbosityToLevel maps the -v count to a level: none is WARN, -v is INFO,
// -vv and beyond is DEBUG.
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity <= 0:
		return zapcore.WarnLevel
	case verbosity == 1:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
