// Package logger holds the process-wide zap logger and the field names
// hireflow components log with.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is a no-op until Initialize runs, so packages can log from tests and init paths.
	Logger = zap.NewNop().Sugar()

	// JSONOutput records the mode passed to the last Initialize call.
	JSONOutput bool

	level = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// Initialize replaces Logger with a console logger, or a JSON logger when
// jsonOutput is set. Production environments are pinned to WARN.
func Initialize(jsonOutput bool) error {
	JSONOutput = jsonOutput
	if isProductionEnvironment() {
		level.SetLevel(zap.WarnLevel)
	}

	if jsonOutput {
		cfg := zap.NewProductionConfig()
		cfg.Level = level
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
		l, err := cfg.Build()
		if err != nil {
			return err
		}
		Logger = l.Sugar()
		return nil
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	// Console logs go to stderr so `--format json` output on stdout stays parseable.
	Logger = zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), level)).Sugar()
	return nil
}

// SetVerbosity adjusts the level from a -v flag count. Production stays at WARN.
func SetVerbosity(verbosity int) {
	if isProductionEnvironment() {
		return
	}
	level.SetLevel(VerbosityToLevel(verbosity))
}

func isProductionEnvironment() bool {
	switch strings.ToLower(os.Getenv("HIREFLOW_ENV")) {
	case "production", "prod":
		return true
	}
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "WARN", "ERROR":
		return true
	}
	return false
}

// Cleanup flushes buffered entries
func Cleanup() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}
