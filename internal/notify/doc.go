// Package notify delivers queue events via ntfy push notifications.
//
// The default implementation publishes to the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set, so
// the engine can always call it unconditionally. Failure and queue-drained
// events are individually gated by configuration.
package notify
