// Package alerts decides which hives are anomalous and tells someone about it.
//
// Evaluate is the pure rule set applied to every candidate record before it is
// written: temperature bounds, activity and departure ratios, and sound
// spectrum peaks. Its reasons are stored on the record itself.
//
// Notifier watches those records across ticks and emits firing and resolved
// events to Slack, Teams, generic HTTP webhooks, or an MQTT broker.
package alerts
