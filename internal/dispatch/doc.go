// Package dispatch executes on-demand point commands: get, set, revert and
// last. Commands resolve their target set through the registry, then claim
// the same per-group request tokens the poll scheduler uses, so at most one
// request is ever in flight to a physical remote.
package dispatch
