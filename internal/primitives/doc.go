// Package primitives provides the foundational, zero-dependency data structures
// for the simulation engine.
//
// This package uses ONLY the Go standard library. Everything else in the module
// builds on these types:
//   - Observable: a single value cell with synchronous change notification
//   - TimeStep: simulated time in integer milliseconds
//   - Reading, History, PairHistory: append-only instrument records
//   - the error taxonomy shared by the engine and the instruments
//
// Core invariants:
//   - Listeners fire exactly once per value-changing assignment, never on an
//     assignment of an equal value
//   - Records are immutable once appended; insertion order is reporting order
//   - All types are safe for concurrent use
package primitives
