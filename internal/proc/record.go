package proc

// RecordType identifies a lifecycle transition reported to observers.
type RecordType string

const (
	RecordLaunched  RecordType = "launched"  // slot reserved, Init about to run
	RecordRejected  RecordType = "rejected"  // launch into a busy slot
	RecordJoined    RecordType = "joined"    // waiter attached to a running procedure
	RecordYielded   RecordType = "yielded"   // Init/Step/React suspended
	RecordResolved  RecordType = "resolved"  // terminal outcome, slot released
	RecordCompleted RecordType = "completed" // Then has run
	RecordCancelled RecordType = "cancelled" // removed by Cancel
	RecordNotified  RecordType = "notified"  // Resolved event handed to a waiter
	RecordIgnored   RecordType = "ignored"   // event with no subscriber
)

// Record describes one lifecycle transition.
type Record struct {
	// Seq is the logical clock value at emission.
	Seq int64 `json:"seq"`

	// RunID identifies the launch. Empty for ignored events.
	RunID string `json:"run_id,omitempty"`

	// Kind is the procedure kind.
	Kind Kind `json:"kind,omitempty"`

	// Type is the transition.
	Type RecordType `json:"type"`

	// Cause is "init", "step" or the event kind that drove the transition.
	Cause string `json:"cause,omitempty"`

	// Outcome is "yield", "success", "error" or "cancelled" where relevant.
	Outcome string `json:"outcome,omitempty"`

	// Error is the failure message for error outcomes.
	Error string `json:"error,omitempty"`
}

// Observer receives lifecycle records from a Registry.
// Observers run on the registry goroutine and must not call back into it.
type Observer interface {
	Observe(rec Record)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(rec Record)

// Observe implements Observer.
func (f ObserverFunc) Observe(rec Record) { f(rec) }

// Clock stamps records. *sched.Clock satisfies it.
type Clock interface {
	Next() int64
}
