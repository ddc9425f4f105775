package netmon

import (
	"context"
	"sync/atomic"

	"courier/internal/progress"
)

// ManualMonitor is a Monitor whose state is driven by SetOnline calls.
// It backs tests and deployments where connectivity is reported by an
// external agent instead of probed.
type ManualMonitor struct {
	online atomic.Bool
	pub    *progress.Publisher[bool]
}

// NewManualMonitor returns a manual monitor seeded with the given state.
func NewManualMonitor(online bool) *ManualMonitor {
	m := &ManualMonitor{pub: progress.NewPublisher[bool]()}
	m.online.Store(online)
	return m
}

// Online reports the last state set via SetOnline.
func (m *ManualMonitor) Online() bool {
	return m.online.Load()
}

// SetOnline records the new state and notifies subscribers on transitions.
func (m *ManualMonitor) SetOnline(online bool) {
	if m.online.Swap(online) == online {
		return
	}
	m.pub.Publish(online)
}

// Subscribe registers a listener for connectivity transitions.
func (m *ManualMonitor) Subscribe(fn func(online bool)) func() {
	return m.pub.Subscribe(fn)
}

// Start is a no-op; manual monitors have no background work.
func (m *ManualMonitor) Start(ctx context.Context) error { return nil }

// Stop is a no-op.
func (m *ManualMonitor) Stop() {}
