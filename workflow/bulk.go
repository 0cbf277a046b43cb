package workflow

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/teranos/hireflow/logger"
)

// BulkItem is the outcome of one id in a bulk request
type BulkItem struct {
	JobPostID string `json:"job_post_id"`
	Success   bool   `json:"success"`
	From      Status `json:"from_status,omitempty"`
	To        Status `json:"to_status,omitempty"`
	ErrorKind Kind   `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BulkResult reports per-id outcomes in input order plus summary counts
type BulkResult struct {
	Action    Action     `json:"action"`
	Total     int        `json:"total"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Items     []BulkItem `json:"items"`
}

// ApplyBulk applies one action independently to each id. A failing item never
// aborts the others and there is no cross-item transaction: each item commits
// or fails on its own compare-and-swap.
//
// The returned error covers only request-level problems (non-admin actor, empty
// or oversized id list); per-item failures are reported in the result.
func (e *Engine) ApplyBulk(ctx context.Context, ids []string, action Action, actor Actor, payload Payload) (*BulkResult, error) {
	if d := e.gate.AuthorizeBulk(actor); !d.Allowed {
		e.actorLog.Warnw("Bulk action denied",
			logger.FieldAction, action,
			logger.FieldActorID, actor.ID,
			logger.FieldRole, actor.Role,
		)
		e.in.count(ctx, e.in.denials, action, actor.Role)
		return nil, newError(KindPermissionDenied, nil, action, nil, d.Reason)
	}
	if !action.Valid() {
		return nil, newError(KindValidation, nil, action, nil, "unknown action "+string(action))
	}

	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, newError(KindValidation, nil, action, nil, "no job post ids given")
	}
	if len(ids) > e.bulkMaxItems {
		return nil, newError(KindValidation, nil, action, nil,
			"bulk request exceeds "+strconv.Itoa(e.bulkMaxItems)+" items")
	}

	items := make([]BulkItem, len(ids))
	var g errgroup.Group
	g.SetLimit(e.bulkConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			// Each item validates its own copy; Validate normalizes in place
			p := payload
			items[i] = e.bulkItem(ctx, id, action, actor, p)
			return nil
		})
	}
	_ = g.Wait()

	res := &BulkResult{Action: action, Total: len(items), Items: items}
	for _, it := range items {
		if it.Success {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}

	e.logger.Infow("Bulk action complete",
		logger.FieldAction, action,
		logger.FieldActorID, actor.ID,
		logger.FieldBatchSize, res.Total,
		logger.FieldSucceeded, res.Succeeded,
		logger.FieldFailed, res.Failed,
	)
	return res, nil
}

func (e *Engine) bulkItem(ctx context.Context, id string, action Action, actor Actor, payload Payload) BulkItem {
	if err := ctx.Err(); err != nil {
		return BulkItem{JobPostID: id, Error: err.Error()}
	}
	r, err := e.Apply(ctx, id, action, actor, payload)
	if err != nil {
		return BulkItem{JobPostID: id, ErrorKind: KindOf(err), Error: err.Error()}
	}
	return BulkItem{JobPostID: id, Success: true, From: r.From, To: r.To}
}

// dedupe drops repeated ids, keeping first occurrence order
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
