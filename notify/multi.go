package notify

import (
	"context"

	"go.uber.org/multierr"

	"github.com/teranos/hireflow/workflow"
)

// Multi delivers to every emitter in order. One failing emitter does not stop
// the others; all failures are combined into the returned error.
type Multi []workflow.Emitter

// Emit implements workflow.Emitter
func (m Multi) Emit(ctx context.Context, event workflow.Event) error {
	var err error
	for _, em := range m {
		if em == nil {
			continue
		}
		err = multierr.Append(err, em.Emit(ctx, event))
	}
	return err
}
