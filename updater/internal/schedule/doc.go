// Package schedule triggers the hive update on a fixed wall-clock interval.
//
// Parse accepts the App Engine cron style used in deployment configs
// ("every 1 minutes", "every 2 hours") as well as plain Go durations ("30s").
//
// A Runner fires on interval boundaries counted from local midnight in its
// time zone, so "every 15 minutes" in Europe/Paris fires at :00, :15, :30 and
// :45 Paris time. Ticks never overlap: a boundary reached while the previous
// tick is still running is skipped and logged.
package schedule
