// Package simulate derives the next simulated state of a hive from its stored
// values.
//
// Simulator.Next(prior) draws, from an injected random source:
//
//	in'          = max(0, in + U{-5..10})
//	out'         = max(0, out + U{-5..10})        (independent draw)
//	total'       = in' + out'
//	temperature' = clamp(temperature + U[-2.25, 2.25), 0, 50)
//	spectrum'    = 3–5 samples, each in [0, 2.25) with 2-decimal precision
//
// Missing counts default to 0 and a missing temperature to 20. The returned
// record has no ID and no alert fields; the updater fills those in.
//
// Rand is satisfied by *math/rand.Rand, so tests pass a seeded generator (or a
// scripted fake) and production uses NewSeeded(0) for a time-based seed.
package simulate
