package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInFlight  Status = "in-flight"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusInFlight,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Kind identifies which remote operation an item performs.
type Kind string

const (
	KindDeliveryEvidence    Kind = "delivery-evidence-upload"
	KindNonDeliveryEvidence Kind = "non-delivery-evidence-upload"
	KindDeliveryStatus      Kind = "delivery-status-set"
	KindRouteStart          Kind = "route-start"
	KindRouteStop           Kind = "route-stop"
	KindLicenseSet          Kind = "license-set"
)

var allKinds = []Kind{
	KindRouteStart,
	KindRouteStop,
	KindDeliveryStatus,
	KindLicenseSet,
	KindDeliveryEvidence,
	KindNonDeliveryEvidence,
}

// AllKinds returns the known kinds in default processing order.
func AllKinds() []Kind {
	cp := make([]Kind, len(allKinds))
	copy(cp, allKinds)
	return cp
}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	for _, kind := range allKinds {
		if kind == normalized {
			return kind, true
		}
	}
	return "", false
}

// IsEvidence reports whether a kind carries photo evidence that needs
// transcoding before upload.
func (k Kind) IsEvidence() bool {
	return k == KindDeliveryEvidence || k == KindNonDeliveryEvidence
}

// Priority bands: route lifecycle events flush before status writes, which
// flush before bulky evidence uploads.
const (
	PriorityRouteLifecycle = 0
	PriorityStatusWrite    = 10
	PriorityEvidence       = 20
)

// DefaultPriority returns the priority band for a kind.
func DefaultPriority(kind Kind) int {
	switch kind {
	case KindRouteStart, KindRouteStop:
		return PriorityRouteLifecycle
	case KindDeliveryStatus, KindLicenseSet:
		return PriorityStatusWrite
	default:
		return PriorityEvidence
	}
}

// Item represents a pending driver action persisted in the queue snapshot.
type Item struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Destination string          `json:"destination,omitempty"`
	RouteID     string          `json:"route_id,omitempty"`
	VisitIndex  int             `json:"visit_index"`
	OrderIndex  int             `json:"order_index"`
	UnitIndex   int             `json:"unit_index"`
	CreatedAt   time.Time       `json:"created_at"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Status      Status          `json:"status"`
	LastError   string          `json:"last_error,omitempty"`
	Priority    int             `json:"priority"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewItemID generates a unique item identifier: the enqueue timestamp in
// milliseconds plus a random suffix. Never reused, never mutated.
func NewItemID(now time.Time) string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}

// Terminal reports whether the item has reached a final state.
func (i *Item) Terminal() bool {
	return i.Status == StatusCompleted || i.Status == StatusFailed
}

// AttemptsExhausted reports whether the item has no retry budget left.
func (i *Item) AttemptsExhausted() bool {
	return i.Attempts >= i.MaxAttempts
}

// Clone returns a deep copy safe to hand to subscribers.
func (i *Item) Clone() *Item {
	cp := *i
	if i.Payload != nil {
		cp.Payload = make(json.RawMessage, len(i.Payload))
		copy(cp.Payload, i.Payload)
	}
	if i.CompletedAt != nil {
		completed := *i.CompletedAt
		cp.CompletedAt = &completed
	}
	return &cp
}

// Summary aggregates queue counts per lifecycle state.
type Summary struct {
	Total     int
	Pending   int
	InFlight  int
	Completed int
	Failed    int
}

// Summarize computes aggregate counts for a set of items.
func Summarize(items []*Item) Summary {
	summary := Summary{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case StatusPending:
			summary.Pending++
		case StatusInFlight:
			summary.InFlight++
		case StatusCompleted:
			summary.Completed++
		case StatusFailed:
			summary.Failed++
		}
	}
	return summary
}
