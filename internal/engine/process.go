package engine

import (
	"context"
	"fmt"
	"sort"

	"courier/internal/logging"
	"courier/internal/queue"
	"courier/internal/services"
)

// Process runs a single processing pass synchronously. It returns without
// doing anything when a pass is already running or the network is down.
func (e *Engine) Process(ctx context.Context) {
	e.runPass(ctx)
}

func (e *Engine) runPass(ctx context.Context) {
	e.passMu.Lock()
	if e.inPass {
		e.passMu.Unlock()
		return
	}
	e.inPass = true
	e.passMu.Unlock()

	defer func() {
		e.passMu.Lock()
		e.inPass = false
		e.passMu.Unlock()
	}()

	if !e.monitor.Online() {
		return
	}

	started := e.clock()
	candidates := e.selectCandidates()
	completed, failed := 0, 0

	for _, id := range candidates {
		if ctx.Err() != nil {
			break
		}
		// Connectivity can drop mid-pass; stop starting new items but
		// never abort one whose remote call is already in flight.
		if !e.monitor.Online() {
			e.logger.Info("network lost mid-pass, suspending queue",
				logging.String(logging.FieldEventType, "pass_suspended"),
			)
			break
		}

		switch e.processOne(ctx, id) {
		case queue.StatusCompleted:
			completed++
		case queue.StatusFailed:
			failed++
		}
	}

	e.sweep(ctx)

	if completed+failed > 0 && e.Summary().Pending == 0 {
		if err := e.notifier.NotifyQueueDrained(ctx, completed, failed, e.clock().Sub(started)); err != nil {
			e.logger.Warn("queue drained notification failed", logging.Error(err))
		}
	}
}

// selectCandidates snapshots the ids of items eligible for this pass:
// pending with retry budget left, ordered by priority then arrival. Items
// enqueued after the snapshot wait for the next trigger.
func (e *Engine) selectCandidates() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	type candidate struct {
		id       string
		priority int
		position int
	}
	eligible := make([]candidate, 0, len(e.items))
	for pos, item := range e.items {
		if item.Status != queue.StatusPending || item.AttemptsExhausted() {
			continue
		}
		eligible = append(eligible, candidate{id: item.ID, priority: item.Priority, position: pos})
	}
	if e.priorityOrder {
		sort.SliceStable(eligible, func(a, b int) bool {
			if eligible[a].priority != eligible[b].priority {
				return eligible[a].priority < eligible[b].priority
			}
			return eligible[a].position < eligible[b].position
		})
	}

	ids := make([]string, 0, len(eligible))
	for _, c := range eligible {
		ids = append(ids, c.id)
	}
	return ids
}

// processOne runs one attempt for one item and returns the status the item
// ended the attempt in. Handler errors are recorded on the item, never
// propagated: one bad item must not block the rest of the batch.
func (e *Engine) processOne(ctx context.Context, id string) queue.Status {
	e.mu.Lock()
	item := e.findLocked(id)
	if item == nil || item.Status != queue.StatusPending {
		e.mu.Unlock()
		return ""
	}
	item.Status = queue.StatusInFlight
	item.Attempts++
	if err := e.persistLocked(ctx); err != nil {
		item.Status = queue.StatusPending
		item.Attempts--
		e.mu.Unlock()
		e.logger.Error("failed to persist in-flight transition",
			logging.Error(err),
			logging.String(logging.FieldItemID, id),
			logging.String(logging.FieldEventType, "persist_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return ""
	}
	statuses := e.statusesLocked()
	work := item.Clone()
	e.mu.Unlock()
	e.pub.Publish(statuses)

	handler := e.handlers[work.Kind]
	var handlerErr error
	if handler == nil {
		handlerErr = services.Wrap(services.ErrConfiguration, "engine", "process",
			fmt.Sprintf("no handler registered for kind %q", work.Kind), nil)
	} else {
		handlerErr = e.invoke(ctx, handler, work)
	}

	e.mu.Lock()
	item = e.findLocked(id)
	if item == nil {
		e.mu.Unlock()
		return ""
	}

	var final queue.Status
	if handlerErr == nil {
		now := e.clock()
		item.Status = queue.StatusCompleted
		item.CompletedAt = &now
		item.LastError = ""
		final = queue.StatusCompleted
	} else {
		item.LastError = services.Message(handlerErr)
		if item.AttemptsExhausted() {
			item.Status = queue.StatusFailed
			final = queue.StatusFailed
		} else {
			item.Status = queue.StatusPending
			final = queue.StatusPending
		}
	}
	if err := e.persistLocked(ctx); err != nil {
		e.logger.Error("failed to persist attempt outcome",
			logging.Error(err),
			logging.String(logging.FieldItemID, id),
			logging.String(logging.FieldEventType, "persist_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}
	statuses = e.statusesLocked()
	attempts, maxAttempts := item.Attempts, item.MaxAttempts
	kind, lastError := item.Kind, item.LastError
	e.mu.Unlock()
	e.pub.Publish(statuses)

	switch final {
	case queue.StatusCompleted:
		e.logger.Info("item completed",
			logging.String(logging.FieldItemID, id),
			logging.String(logging.FieldKind, string(kind)),
			logging.Int("attempts", attempts),
			logging.String(logging.FieldEventType, "item_completed"),
		)
	case queue.StatusFailed:
		e.logger.Error("item failed permanently",
			logging.String(logging.FieldItemID, id),
			logging.String(logging.FieldKind, string(kind)),
			logging.Int("attempts", attempts),
			logging.Int("max_attempts", maxAttempts),
			logging.String("last_error", lastError),
			logging.String(logging.FieldEventType, "item_failed"),
			logging.String(logging.FieldErrorHint, "re-arm with courier retry after fixing the cause"),
			logging.String(logging.FieldImpact, "driver action not synced"),
		)
		if err := e.notifier.NotifyItemFailed(ctx, string(kind), id, lastError); err != nil {
			e.logger.Warn("failure notification failed", logging.Error(err))
		}
	default:
		level := e.logger.Warn
		if services.IsPermanent(handlerErr) {
			// Validation failures burn the same budget but are called
			// out so operators can spot unrecoverable inputs early.
			level = e.logger.Error
		}
		level("item attempt failed, will retry",
			logging.Error(handlerErr),
			logging.String(logging.FieldItemID, id),
			logging.String(logging.FieldKind, string(kind)),
			logging.Int("attempts", attempts),
			logging.Int("max_attempts", maxAttempts),
			logging.String(logging.FieldEventType, "item_attempt_failed"),
		)
	}
	return final
}

// invoke shields the engine from handler panics the same way the progress
// publisher shields listeners.
func (e *Engine) invoke(ctx context.Context, handler HandlerFunc, item *queue.Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrTransient, "engine", "process",
				fmt.Sprintf("handler panicked: %v", r), nil)
		}
	}()
	return handler(ctx, item)
}

// sweep drops completed items older than the retention window. Failed items
// are deliberately kept until an explicit clear so the driver can see what
// needs attention.
func (e *Engine) sweep(ctx context.Context) {
	cutoff := e.clock().Add(-e.retention)

	e.mu.Lock()
	kept := e.items[:0]
	removed := 0
	for _, item := range e.items {
		if item.Status == queue.StatusCompleted && item.CompletedAt != nil && !item.CompletedAt.After(cutoff) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	if removed == 0 {
		e.mu.Unlock()
		return
	}
	e.items = kept
	if err := e.persistLocked(ctx); err != nil {
		e.logger.Error("failed to persist retention sweep",
			logging.Error(err),
			logging.String(logging.FieldEventType, "persist_failed"),
		)
	}
	statuses := e.statusesLocked()
	e.mu.Unlock()
	e.pub.Publish(statuses)

	e.logger.Debug("swept completed items",
		logging.Int("count", removed),
		logging.Duration("retention", e.retention),
	)
}

func (e *Engine) findLocked(id string) *queue.Item {
	for _, item := range e.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}
