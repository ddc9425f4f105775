// Package queue defines the durable upload queue model and its SQLite-backed
// snapshot store.
//
// Items are opaque driver actions (evidence photo uploads, delivery status
// writes, route lifecycle events) that must survive process restarts. The
// store persists the entire queue as one JSON snapshot under a fixed key and
// is written by a single owner, the engine, after every mutation. Loading a
// snapshot resets any item left in-flight by an interrupted process back to
// pending so a crash mid-upload never strands work.
package queue
