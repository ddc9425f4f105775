// Package engine implements the offline-tolerant upload queue.
//
// The engine accepts driver actions (evidence photos, status changes, route
// lifecycle events), persists every mutation as a whole-queue snapshot, and
// replays pending items against the backend when connectivity allows.
// Processing is strictly sequential with a single-flight guard: at most one
// pass runs at a time, items are served by priority then arrival, and a
// failing item consumes one retry attempt without blocking the rest of the
// batch. Remote operations are injected as a kind-to-handler table so the
// engine itself never touches the network.
package engine
