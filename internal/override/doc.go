// Package override blocks writes to selected devices. Operators install
// glob patterns over device topics, optionally with an expiry, and the
// command dispatcher rejects set and revert requests for matching devices
// while the pattern is live. Patterns persist across restarts.
package override
