package netmon

import "context"

// Monitor exposes a normalized boolean connectivity stream.
//
// Online must reflect the monitor's current view synchronously: the queue
// engine consults it before and during every processing pass, and a
// transition to offline must take effect before the next pass starts.
type Monitor interface {
	// Online reports the current connectivity state.
	Online() bool

	// Subscribe registers a listener invoked with the new state on every
	// transition. The returned function de-registers the listener.
	Subscribe(fn func(online bool)) (unsubscribe func())

	// Start begins watching for transitions until ctx is cancelled or
	// Stop is called.
	Start(ctx context.Context) error

	// Stop terminates watching. Safe to call more than once.
	Stop()
}
