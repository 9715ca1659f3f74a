// Package publish renders poll results into outbound publications.
//
// Two shapes exist per device: the multi-publish, emitted after every poll
// task with exactly the points that were read, and the optional all-publish,
// a periodic full snapshot from the value cache. The all-publish is withheld
// until every active point on the device has been read once, and a cycle is
// suppressed wholesale when any point's cached value has gone stale.
package publish
