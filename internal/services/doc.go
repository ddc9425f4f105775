// Package services defines shared error utilities consumed by the queue
// handlers and external integrations.
//
// The sentinel markers plus the Wrap helper translate failures into a
// consistent taxonomy: transient remote errors, validation errors on bad
// input, and configuration errors. The engine treats them identically for
// retry accounting but logs the classification so operators can tell a
// corrupt photo from a network blip.
package services
