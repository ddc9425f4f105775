// Package main hosts the courier CLI entrypoint and command graph.
//
// The Cobra-based command tree surfaces queue inspection (status, health),
// queue maintenance (clear, retry), notification testing, and configuration
// scaffolding. Mutating commands respect the daemon's single-writer lock on
// the queue snapshot and refuse to run while courierd owns it.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
