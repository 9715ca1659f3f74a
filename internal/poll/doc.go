// Package poll drives periodic reads of remote groups.
//
// The scheduler ticks at a fixed cadence, computes the due points per
// group, and launches at most one poll task per group at a time. A bounded
// worker pool caps concurrency across groups. Finished tasks are delivered
// to registered completion handlers after the value cache has been updated.
package poll
