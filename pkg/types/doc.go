// Package types defines shared Go types used by both the updater and server.
// HiveRecord is the canonical in-memory representation of one hive document,
// separate from how each store backend encodes it.
package types
