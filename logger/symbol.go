package logger

import (
	"go.uber.org/zap"

	"github.com/teranos/hireflow/sym"
)

// The subsystem symbol lives in its own field so logs can be filtered per
// subsystem without parsing messages:
//
//	t.pulseLog = logger.AddPulseSymbol(base)

func withSymbol(l *zap.SugaredLogger, symbol string) *zap.SugaredLogger {
	return l.With(FieldSymbol, symbol)
}

// PulseWarnw warns on the global logger under ꩜
func PulseWarnw(msg string, keysAndValues ...interface{}) {
	withSymbol(Logger, sym.Pulse).Warnw(msg, keysAndValues...)
}

// AddPulseSymbol tags scheduler logs (꩜)
func AddPulseSymbol(l *zap.SugaredLogger) *zap.SugaredLogger { return withSymbol(l, sym.Pulse) }

// AddPulseOpenSymbol tags startup logs (✿)
func AddPulseOpenSymbol(l *zap.SugaredLogger) *zap.SugaredLogger { return withSymbol(l, sym.PulseOpen) }

// AddPulseCloseSymbol tags shutdown logs (❀)
func AddPulseCloseSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return withSymbol(l, sym.PulseClose)
}

// AddDBSymbol tags storage logs (⊔)
func AddDBSymbol(l *zap.SugaredLogger) *zap.SugaredLogger { return withSymbol(l, sym.DB) }

// AddTransitionSymbol tags applied transitions (⟶)
func AddTransitionSymbol(l *zap.SugaredLogger) *zap.SugaredLogger { return withSymbol(l, sym.SO) }

// AddActorSymbol tags permission decisions (⌬)
func AddActorSymbol(l *zap.SugaredLogger) *zap.SugaredLogger { return withSymbol(l, sym.BY) }

// AddConfigSymbol tags configuration logs (≡)
func AddConfigSymbol(l *zap.SugaredLogger) *zap.SugaredLogger { return withSymbol(l, sym.AM) }
