// Package updater runs one tick of the hive simulation: fetch every hive,
// derive its next simulated state, evaluate alert rules, and write the seven
// derived fields back.
//
// Writes are issued concurrently, one goroutine per hive, and Run returns only
// after all of them have settled. Every write is attempted even when others
// fail; the Report carries the outcome per hive and Run's error joins every
// failure.
package updater
