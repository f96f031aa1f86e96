// Package store is the document store the updater reads hives from and
// writes them back to. It exposes two core operations, list a collection and
// partially update one document's fields, behind the Store interface, with
// three backends:
//
//   - memory:   thread-safe maps, for tests and local runs
//   - redis:    one hash per document plus an ID set per collection
//   - postgres: one JSONB row per document, updated with a key merge
//
// Open(ctx, cfg) builds the backend selected by Config.Backend.
package store
