package proc

// Kind identifies a procedure type. The Registry holds at most one active
// instance per Kind.
type Kind string

// EventKind identifies the type of an event routed by the Registry.
type EventKind string

// Event is an asynchronous notification delivered to a waiting procedure.
type Event interface {
	Kind() EventKind
}

// Procedure is the capability set every concrete procedure implements.
//
// Construction arguments are passed to the concrete constructor; Init sees
// them through the receiver.
type Procedure interface {
	// Kind returns the registry slot this procedure occupies.
	Kind() Kind

	// Init validates preconditions and starts the procedure.
	Init() Outcome

	// Step advances a procedure that is not waiting on an event.
	Step() Outcome

	// Then is the completion hook. Called exactly once per launch.
	Then(result Result)
}

// Reactor is implemented by procedures that consume events.
type Reactor interface {
	Procedure

	// Subscribed reports whether the current state accepts events of kind k.
	Subscribed(k EventKind) bool

	// React consumes a subscribed event.
	React(ev Event) Outcome
}

// Carrier is implemented by procedures that own a resource (for example an
// outbound payload) which must go back to the owner on cancellation.
type Carrier interface {
	// Release hands the carried resource to the caller and forgets it.
	Release() any
}

// Resolved is delivered to every procedure joined on a target when the
// target resolves.
type Resolved struct {
	From   Kind
	Result Result
}

// ResolvedKind returns the event kind of Resolved messages sent by kind k.
func ResolvedKind(k Kind) EventKind {
	return EventKind("resolved:" + string(k))
}

// Kind implements Event.
func (r Resolved) Kind() EventKind {
	return ResolvedKind(r.From)
}
