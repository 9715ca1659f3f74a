// Package remote partitions configured points into remote groups and owns
// the per-group request discipline.
//
// Points whose devices share a structurally equal connection descriptor are
// collapsed into one Group, so a physical remote hosting points from several
// configured devices is still addressed by at most one in-flight request.
// The allow_duplicate_remotes flag (agent default, per-device override) opts
// a device out of this deduplication into its own group.
//
// A Group's capacity-1 token channel is the mutual-exclusion guard promised
// by the Idle/Requesting state machine: the poll scheduler uses TryBegin
// (skip when busy) while command writes use Begin (wait behind the in-flight
// request). Whole-remote reads pass through a circuit breaker so a dead
// remote is probed at a bounded rate instead of on every tick.
package remote
