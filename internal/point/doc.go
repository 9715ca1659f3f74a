// Package point holds the equipment model for FieldPoint Core: the registry
// of configured devices and points, the last-known-value cache, and the topic
// resolver shared by every query and command operation.
//
// # Registry
//
// The Registry is built once from device configuration and is immutable for
// the lifetime of a session; configuration reload builds a replacement rather
// than mutating in place. Each Point carries its resolved polling interval
// and stale timeout (point override, then device default, then agent
// fallback).
//
// # Cache
//
// The Cache stores one (value, timestamp) pair per point with entry-level
// locking, so concurrent readers (the command dispatcher, the publish
// engine) never block writes to unrelated points and never observe a value
// with a mismatched timestamp.
//
// # Resolution
//
// Resolve turns topic selectors (exact paths, container prefixes, wildcard
// segments) plus an optional regex into a concrete point set. It is a pure
// function over the registry's topic index.
package point
