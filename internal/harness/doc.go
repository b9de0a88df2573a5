// Package harness runs YAML scenarios against an rrc.Stack wired to
// recording lower-layer fakes.
//
// A scenario drives the stack through its entry points (connection
// request, RRCSetup, reconfiguration, lower-layer confirmations, timers,
// cancellation) and asserts on the resulting lifecycle trace, the final
// stack state and the calls made to the lower layers.
//
// # Determinism
//
// Every run uses:
//   - A logical clock starting at 0 (testutil.DeterministicClock)
//   - Sequential run IDs ("run-1", "run-2", ...)
//   - A fresh session in an in-memory SQLite store, unless one is supplied
//
// so the same scenario always yields a byte-identical trace. Golden files
// under testdata/golden pin those traces (see RunWithGolden).
//
// # Ticks
//
// After each step the harness ticks the stack until no deferred work is
// left, so completion hooks and join notifications land before the next
// step. Scenarios that need to observe deferred work set manual_ticks and
// use explicit tick steps.
package harness
