// Package config loads and validates the hivewatch-updater configuration from
// a YAML file.
//
// Secrets (webhook URLs, the MQTT password, store credentials) are never
// stored in the file. Each is referenced by the name of an environment
// variable (*_env fields) and resolved at use time.
//
// Watch reloads the file on change; the updater applies the new log level
// without restarting.
package config
