package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/hireflow/logger"
	"github.com/teranos/hireflow/workflow"
)

// LogEmitter writes each event to the log
type LogEmitter struct {
	logger *zap.SugaredLogger
}

// NewLogEmitter creates a LogEmitter
func NewLogEmitter(l *zap.SugaredLogger) *LogEmitter {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	return &LogEmitter{logger: logger.AddTransitionSymbol(l.Named("notify"))}
}

// Emit implements workflow.Emitter
func (e *LogEmitter) Emit(_ context.Context, event workflow.Event) error {
	e.logger.Infow("Workflow event",
		logger.FieldJobPostID, event.JobPostID,
		logger.FieldEmployerID, event.EmployerID,
		logger.FieldAction, string(event.Action),
		logger.FieldFromStatus, string(event.FromStatus),
		logger.FieldToStatus, string(event.ToStatus),
		logger.FieldActorID, event.Actor.ID,
		"automated", event.Automated,
	)
	return nil
}
