// Package ws streams hive snapshots to dashboards over WebSocket.
//
// New(source, interval) creates a Hub. Hub.Run(ctx) broadcasts until ctx is
// cancelled and then closes every connection. Hub.ServeHTTP upgrades the
// request, sends the current snapshot immediately and then one per interval.
//
// Every message has the form
//
//	{"event": "snapshot", "data": <GET /api/v1/snapshot body>}
//
// The server mounts the hub at /ws/stream.
package ws
