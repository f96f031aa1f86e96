// Package api implements the HTTP status API for hivewatch-server.
//
// New(store, collection) returns a Handler that serves:
//
//	GET /api/v1/health      state ok|alerting|unknown plus hive counts
//	GET /api/v1/hives       every hive, ordered by ID ([]HiveResponse)
//	GET /api/v1/hives/{id}  a single hive; 404 if unknown
//	GET /api/v1/activity    traffic and readings aggregated across hives
//	GET /api/v1/alerts      hives whose alert flag is set
//	GET /api/v1/snapshot    every hive plus generated_at
//
// All endpoints respond with Content-Type: application/json, return 405 for
// non-GET methods and 503 when the store cannot be read. Every hive carries
// diagnostics explaining its alert reasons.
//
// The API is read-only. Hive documents are written by hivewatch-updater.
package api
