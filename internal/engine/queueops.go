package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"courier/internal/logging"
	"courier/internal/queue"
	"courier/internal/services"
)

// EnqueueRequest describes a driver action to durably queue for upload.
type EnqueueRequest struct {
	Kind        queue.Kind
	Payload     json.RawMessage
	Destination string
	RouteID     string
	VisitIndex  int
	OrderIndex  int
	UnitIndex   int
	MaxAttempts int  // 0 selects the per-kind configured default
	Priority    *int // nil selects the per-kind priority band
}

// Enqueue persists a new item and returns its id synchronously. When the
// network is up a processing pass is triggered immediately; otherwise the
// item waits for the next online transition or poll tick.
func (e *Engine) Enqueue(ctx context.Context, req EnqueueRequest) (string, error) {
	kind, ok := queue.ParseKind(string(req.Kind))
	if !ok {
		return "", services.Wrap(services.ErrValidation, "engine", "enqueue",
			fmt.Sprintf("unknown item kind %q", req.Kind), nil)
	}
	if _, ok := e.handlers[kind]; !ok {
		return "", services.Wrap(services.ErrConfiguration, "engine", "enqueue",
			fmt.Sprintf("no handler registered for kind %q", kind), nil)
	}
	if kind.IsEvidence() && strings.TrimSpace(req.Destination) == "" {
		return "", services.Wrap(services.ErrValidation, "engine", "enqueue",
			"evidence uploads require a destination URL", nil)
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = e.defaultMaxAttempts(kind)
	}
	priority := queue.DefaultPriority(kind)
	if req.Priority != nil {
		priority = *req.Priority
	}

	now := e.clock()
	item := &queue.Item{
		ID:          queue.NewItemID(now),
		Kind:        kind,
		Payload:     req.Payload,
		Destination: req.Destination,
		RouteID:     req.RouteID,
		VisitIndex:  req.VisitIndex,
		OrderIndex:  req.OrderIndex,
		UnitIndex:   req.UnitIndex,
		CreatedAt:   now,
		MaxAttempts: maxAttempts,
		Status:      queue.StatusPending,
		Priority:    priority,
	}

	e.mu.Lock()
	e.insertLocked(item)
	err := e.persistLocked(ctx)
	if err != nil {
		e.removeLocked(item.ID)
		e.mu.Unlock()
		return "", fmt.Errorf("persist enqueued item: %w", err)
	}
	statuses := e.statusesLocked()
	e.mu.Unlock()

	e.pub.Publish(statuses)
	e.logger.Info("item enqueued",
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldKind, string(kind)),
		logging.Int("priority", priority),
		logging.Int("max_attempts", maxAttempts),
		logging.String(logging.FieldEventType, "item_enqueued"),
	)

	if e.monitor.Online() {
		e.Trigger()
	}
	return item.ID, nil
}

// Snapshot returns the UI-facing view of every item, in queue order.
func (e *Engine) Snapshot() []ItemStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusesLocked()
}

// Status returns the view of one item by id.
func (e *Engine) Status(id string) (ItemStatus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, item := range e.items {
		if item.ID == id {
			return itemStatus(item), true
		}
	}
	return ItemStatus{}, false
}

// Summary returns aggregate per-state counts.
func (e *Engine) Summary() queue.Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return queue.Summarize(e.items)
}

// ClearFinished drops completed and failed items from the queue. Pending and
// in-flight items are untouched. Idempotent: clearing an already-clean queue
// does nothing and reports zero.
func (e *Engine) ClearFinished(ctx context.Context) (int, error) {
	e.mu.Lock()
	kept := e.items[:0]
	removed := 0
	for _, item := range e.items {
		if item.Terminal() {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	if removed == 0 {
		e.mu.Unlock()
		return 0, nil
	}
	e.items = kept
	if err := e.persistLocked(ctx); err != nil {
		e.mu.Unlock()
		return 0, fmt.Errorf("persist cleared queue: %w", err)
	}
	statuses := e.statusesLocked()
	e.mu.Unlock()

	e.pub.Publish(statuses)
	e.logger.Info("finished items cleared",
		logging.Int("count", removed),
		logging.String(logging.FieldEventType, "queue_cleared"),
	)
	return removed, nil
}

// RetryFailed re-arms failed items: status back to pending with a fresh
// attempt budget. Returns the number of items re-armed and triggers a pass
// when online.
func (e *Engine) RetryFailed(ctx context.Context) (int, error) {
	e.mu.Lock()
	retried := 0
	for _, item := range e.items {
		if item.Status != queue.StatusFailed {
			continue
		}
		item.Status = queue.StatusPending
		item.Attempts = 0
		item.LastError = ""
		retried++
	}
	if retried == 0 {
		e.mu.Unlock()
		return 0, nil
	}
	if err := e.persistLocked(ctx); err != nil {
		e.mu.Unlock()
		return 0, fmt.Errorf("persist retried items: %w", err)
	}
	statuses := e.statusesLocked()
	e.mu.Unlock()

	e.pub.Publish(statuses)
	e.logger.Info("failed items re-armed",
		logging.Int("count", retried),
		logging.String(logging.FieldEventType, "queue_retry_failed"),
	)

	if e.monitor.Online() {
		e.Trigger()
	}
	return retried, nil
}

func (e *Engine) defaultMaxAttempts(kind queue.Kind) int {
	if kind.IsEvidence() {
		return e.cfg.Queue.PhotoMaxAttempts
	}
	return e.cfg.Queue.ActionMaxAttempts
}

// insertLocked places a new item in queue order. With priority ordering the
// insertion is stable: the item lands after every existing item of equal or
// higher urgency, so equal priorities stay in arrival order. FIFO mode always
// appends.
func (e *Engine) insertLocked(item *queue.Item) {
	if !e.priorityOrder {
		e.items = append(e.items, item)
		return
	}
	pos := len(e.items)
	for i := len(e.items) - 1; i >= 0; i-- {
		if e.items[i].Priority <= item.Priority {
			break
		}
		pos = i
	}
	e.items = append(e.items, nil)
	copy(e.items[pos+1:], e.items[pos:])
	e.items[pos] = item
}

func (e *Engine) removeLocked(id string) {
	for i, item := range e.items {
		if item.ID == id {
			e.items = append(e.items[:i], e.items[i+1:]...)
			return
		}
	}
}

// persistLocked writes the whole snapshot. Callers hold e.mu and must only
// publish to listeners after this returns, so subscribers never observe
// state that did not reach disk.
func (e *Engine) persistLocked(ctx context.Context) error {
	return e.store.Save(ctx, e.items)
}

func (e *Engine) statusesLocked() []ItemStatus {
	statuses := make([]ItemStatus, 0, len(e.items))
	for _, item := range e.items {
		statuses = append(statuses, itemStatus(item))
	}
	return statuses
}

func itemStatus(item *queue.Item) ItemStatus {
	return ItemStatus{
		ID:          item.ID,
		Kind:        item.Kind,
		Status:      item.Status,
		Progress:    coarseProgress(item.Status),
		Attempts:    item.Attempts,
		MaxAttempts: item.MaxAttempts,
		Priority:    item.Priority,
		CreatedAt:   item.CreatedAt,
		LastError:   item.LastError,
	}
}

// coarseProgress maps lifecycle state to the three-step progress the UI
// renders: done, working, waiting.
func coarseProgress(status queue.Status) int {
	switch status {
	case queue.StatusCompleted:
		return 100
	case queue.StatusInFlight:
		return 50
	default:
		return 0
	}
}
