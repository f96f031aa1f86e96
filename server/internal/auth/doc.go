// Package auth provides API key middleware for the hivewatch-server HTTP
// routes.
//
// APIKey(mode, header, key) wraps a handler. When mode is "apikey" and a key
// is configured, requests must carry it in header (default X-API-Key) or in
// the api_key query parameter; otherwise they get 401.
package auth
