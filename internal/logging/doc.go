// Package logging configures structured slog output for courier.
//
// It offers a console handler that renders compact single-line records with a
// component prefix, a JSON handler for machine consumption, and small attr
// helpers so call sites stay terse. Construct loggers through NewFromConfig
// and derive per-subsystem loggers with NewComponentLogger.
package logging
