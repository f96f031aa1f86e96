// Package config loads the hivewatch-server configuration from the `server:`,
// `store:` and `log:` sections of config.yaml (the `updater:` key is ignored).
//
// Config fields:
//   - Server.HTTPPort       port for the REST API and WebSocket hub (default 8080)
//   - Server.Collection     hive collection to read (default "ruches")
//   - Server.StreamInterval WebSocket push period (default 5s)
//   - Server.Auth.Mode      "apikey" or "none"
//   - Server.Auth.KeyEnv    environment variable holding the expected API key
//   - Server.Auth.Header    HTTP header name (default "X-API-Key")
//   - Store                 backend selection, shared with the updater
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
