// Package proc implements the cooperative procedure framework of the RRC
// control plane.
//
// A Procedure is a resumable unit of protocol logic with an
// Init/Step/React/Then lifecycle over a private state machine. The Registry
// (the "callback list") holds the active procedures, at most one per Kind,
// and routes events to the one whose current state subscribes to them.
//
// Lifecycle:
//
//  1. Owner constructs a procedure with its arguments and calls Launch.
//  2. Registry reserves the Kind slot and calls Init.
//  3. Yield keeps the procedure in its slot; Repeat folds another Step into
//     the same turn; Success or Error resolve it.
//  4. Later events reach React through Trigger, and RunAll/Step advance
//     procedures not waiting on an event.
//  5. A resolved procedure leaves its slot and Then runs exactly once.
//
// CRITICAL PATTERNS:
//
// Deferred Completion:
// When a procedure resolves inside Trigger or Step, Then is queued on the
// scheduler instead of being called inline. The triggering call stack stays
// shallow and a resolving procedure can never re-enter the Registry while it
// is dispatching. Only a procedure that resolves synchronously in Init has
// Then called inline, since no dispatch is in flight for it.
//
// Joined Waiting:
// Await launches a sub-procedure or joins the one already running. When the
// target resolves, each waiter receives a Resolved event from its own deferred
// task, queued after the target's Then. Waiters never hold references to the
// target and the target never holds references to its waiters.
//
// Explicit Cancellation:
// Cancel removes a procedure, hands back whatever it carries (Carrier) and
// calls Then with a CANCELLED error, so dropping a procedure never loses its
// completion hook.
//
// Thread-safety: none. A Registry belongs to the single goroutine that drains
// its scheduler.
package proc
