// Package sched implements the task scheduler that drives an RRC stack.
//
// The scheduler owns the single logical execution context of a stack
// instance. All procedure Init/Step/React/Then calls happen on the goroutine
// that drains the scheduler, so procedures never race with each other.
//
// ARCHITECTURE:
//
// Deferred Task Queue:
// Defer appends a task to a FIFO queue and returns immediately. The task is
// never executed inside the Defer call. RunPending drains exactly the tasks
// that were queued when it started; tasks deferred while draining wait for the
// next drain. This breaks recursive call chains (a resolving procedure
// notifying another procedure which resolves in turn) into bounded ticks.
//
// Marshaling Boundary:
// Defer is safe from any goroutine. Lower layers running on their own
// goroutines (radio, timers) hand events to the stack by deferring a closure;
// Run drains the queue on one goroutine until the context is cancelled.
//
// Logical Clock:
// Clock stamps lifecycle records with a strictly increasing sequence number.
// Ordering never depends on wall-clock time.
//
// No timer logic lives here. Timer expiry reaches procedures as an ordinary
// event delivered through the procedure registry.
package sched
