package proc

import (
	"log/slog"

	"github.com/roach88/rrcproc/internal/sched"
)

// Deferrer queues a task for the next scheduler tick.
// *sched.TaskScheduler satisfies it.
type Deferrer interface {
	Defer(task func()) bool
}

// entry is the ownership slot of one launched procedure.
type entry struct {
	kind     Kind
	proc     Procedure
	runID    string
	waiters  []Kind // procedures joined on this one, in join order
	starting bool   // Init in progress; events are not delivered yet
	done     bool   // Then has run
}

// Registry holds the active procedures and routes events to them.
//
// INVARIANTS:
//   - At most one unresolved instance per Kind
//   - Then runs exactly once per launch, after a terminal outcome or Cancel
//   - order lists active kinds in launch order; dispatch follows it
type Registry struct {
	sched      Deferrer
	clock      Clock
	runIDs     RunIDGenerator
	observers  []Observer
	logger     *slog.Logger
	maxRepeats int

	slots map[Kind]*entry
	order []Kind
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock that stamps lifecycle records.
func WithClock(c Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// WithRunIDGenerator sets the generator for per-launch run IDs.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(r *Registry) {
		r.runIDs = g
	}
}

// WithObserver adds lifecycle observers.
func WithObserver(obs ...Observer) Option {
	return func(r *Registry) {
		r.observers = append(r.observers, obs...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithMaxRepeats sets how many Repeat outcomes one turn may fold.
//
// Default: 64 (DefaultMaxRepeats)
func WithMaxRepeats(n int) Option {
	return func(r *Registry) {
		r.maxRepeats = n
	}
}

// NewRegistry creates an empty Registry that defers completion hooks and
// join notifications through s.
func NewRegistry(s Deferrer, opts ...Option) *Registry {
	r := &Registry{
		sched:      s,
		clock:      sched.NewClock(),
		runIDs:     UUIDv7Generator{},
		logger:     slog.Default(),
		maxRepeats: DefaultMaxRepeats,
		slots:      make(map[Kind]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Launch takes ownership of p and calls its Init.
//
// Returns a BUSY error, without calling Init and without touching the
// running instance, if a procedure of the same kind is active. If Init
// resolves the procedure, Then runs before Launch returns and nothing is
// stored. Otherwise the procedure stays in its slot.
func (r *Registry) Launch(p Procedure) error {
	return r.start(p, nil)
}

// Await launches target on behalf of waiter, or joins waiter to the target
// kind if an instance is already running. Either way waiter receives a
// Resolved event once the target resolves.
//
// joined is true when an existing run was joined; target is then discarded
// without Init.
func (r *Registry) Await(waiter Kind, target Procedure) (joined bool, err error) {
	if r.Join(waiter, target.Kind()) {
		return true, nil
	}
	return false, r.start(target, []Kind{waiter})
}

// Join attaches waiter to the running procedure of kind target.
// Returns false if no such procedure is active.
func (r *Registry) Join(waiter, target Kind) bool {
	e, ok := r.slots[target]
	if !ok {
		return false
	}
	e.waiters = append(e.waiters, waiter)
	r.emit(Record{RunID: e.runID, Kind: target, Type: RecordJoined, Cause: string(waiter)})
	r.logger.Info("procedure joined",
		"kind", target,
		"waiter", waiter,
		"run_id", e.runID,
	)
	return true
}

// IsBusy reports whether a procedure of kind k is active. Pure query.
func (r *Registry) IsBusy(k Kind) bool {
	_, ok := r.slots[k]
	return ok
}

// Active returns the active kinds in launch order.
func (r *Registry) Active() []Kind {
	out := make([]Kind, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of active procedures.
func (r *Registry) Len() int {
	return len(r.slots)
}

// Trigger delivers ev to the first active procedure, in launch order, whose
// current state subscribes to ev.Kind(). Returns false, leaving the Registry
// unchanged, if no procedure is subscribed.
//
// If React resolves the procedure it leaves its slot immediately and Then is
// queued on the scheduler.
func (r *Registry) Trigger(ev Event) bool {
	for _, k := range r.order {
		e := r.slots[k]
		if rc, ok := r.subscriber(e, ev.Kind()); ok {
			r.react(e, rc, ev)
			return true
		}
	}

	r.emit(Record{Type: RecordIgnored, Cause: string(ev.Kind())})
	r.logger.Debug("event ignored: no subscriber", "event", ev.Kind())
	return false
}

// TriggerOn delivers ev to the procedure of kind k only.
// Returns false if it is not active or not subscribed to ev.Kind().
func (r *Registry) TriggerOn(k Kind, ev Event) bool {
	e, ok := r.slots[k]
	if !ok {
		return false
	}
	rc, ok := r.subscriber(e, ev.Kind())
	if !ok {
		return false
	}
	r.react(e, rc, ev)
	return true
}

// Step advances the procedure of kind k by one Step call.
// Returns false if no such procedure is active.
func (r *Registry) Step(k Kind) bool {
	e, ok := r.slots[k]
	if !ok || e.starting {
		return false
	}

	out := r.fold(e, e.proc.Step())
	if r.slots[k] != e {
		// Cancelled from inside Step.
		return true
	}
	if out.IsTerminal() {
		r.resolveDeferred(e, out, "step")
	}
	return true
}

// RunAll steps every active procedure once, in launch order.
// Procedures launched during the pass are stepped on the next pass.
func (r *Registry) RunAll() {
	for _, k := range r.Active() {
		r.Step(k)
	}
}

// Cancel removes the procedure of kind k, returns the resource it carried
// (nil unless it implements Carrier) and runs Then with a CANCELLED error.
// Joined waiters are notified with the same result.
func (r *Registry) Cancel(k Kind) (carried any, ok bool) {
	e, ok := r.slots[k]
	if !ok {
		return nil, false
	}

	r.remove(e)
	if c, isCarrier := e.proc.(Carrier); isCarrier {
		carried = c.Release()
	}

	res := Result{Err: newCancelledError(k)}
	r.emit(Record{RunID: e.runID, Kind: k, Type: RecordCancelled, Outcome: res.String()})
	r.logger.Info("procedure cancelled", "kind", k, "run_id", e.runID)

	r.complete(e, res)
	r.notifyWaiters(e, res)
	return carried, true
}

// start reserves the slot, runs Init and either keeps or resolves p.
func (r *Registry) start(p Procedure, waiters []Kind) error {
	k := p.Kind()
	if r.IsBusy(k) {
		r.emit(Record{Kind: k, Type: RecordRejected})
		r.logger.Warn("launch rejected: procedure busy", "kind", k)
		return newBusyError(k)
	}

	e := &entry{
		kind:     k,
		proc:     p,
		runID:    r.runIDs.Generate(),
		waiters:  waiters,
		starting: true,
	}
	r.slots[k] = e
	r.order = append(r.order, k)

	r.emit(Record{RunID: e.runID, Kind: k, Type: RecordLaunched})
	r.logger.Info("procedure launched", "kind", k, "run_id", e.runID)

	out := r.fold(e, p.Init())
	e.starting = false

	if r.slots[k] != e {
		// Cancelled from inside Init; Cancel already completed it.
		return nil
	}
	if !out.IsTerminal() {
		r.emit(Record{RunID: e.runID, Kind: k, Type: RecordYielded, Cause: "init", Outcome: out.String()})
		return nil
	}

	// Nothing is dispatching on behalf of p, so Then runs inline.
	r.remove(e)
	r.emitResolved(e, out, "init")
	r.complete(e, out.result())
	r.notifyWaiters(e, out.result())
	return nil
}

// subscriber returns e's Reactor if it accepts events of kind k.
func (r *Registry) subscriber(e *entry, k EventKind) (Reactor, bool) {
	if e == nil || e.starting {
		return nil, false
	}
	rc, ok := e.proc.(Reactor)
	if !ok || !rc.Subscribed(k) {
		return nil, false
	}
	return rc, true
}

// react hands ev to a subscribed procedure and handles the outcome.
func (r *Registry) react(e *entry, rc Reactor, ev Event) {
	cause := string(ev.Kind())
	out := r.fold(e, rc.React(ev))
	if r.slots[e.kind] != e {
		return
	}
	if out.IsTerminal() {
		r.resolveDeferred(e, out, cause)
		return
	}
	r.emit(Record{RunID: e.runID, Kind: e.kind, Type: RecordYielded, Cause: cause, Outcome: out.String()})
}

// fold calls Step while out is Repeat, bounded by the repeat budget.
func (r *Registry) fold(e *entry, out Outcome) Outcome {
	budget := newRepeatBudget(r.maxRepeats)
	for out.IsRepeat() {
		if err := budget.Check(e.kind); err != nil {
			r.logger.Error("repeat budget exceeded",
				"kind", e.kind,
				"run_id", e.runID,
				"limit", r.maxRepeats,
			)
			return Fail(&ProcError{
				Code:    ErrCodeStepsExceeded,
				Kind:    e.kind,
				Message: "procedure did not settle",
				Err:     err,
			})
		}
		out = e.proc.Step()
	}
	return out
}

// resolveDeferred releases the slot and queues Then on the scheduler.
func (r *Registry) resolveDeferred(e *entry, out Outcome, cause string) {
	r.remove(e)
	r.emitResolved(e, out, cause)

	res := out.result()
	r.schedule(e, func() { r.complete(e, res) })
	r.notifyWaiters(e, res)
}

// complete runs Then once.
func (r *Registry) complete(e *entry, res Result) {
	if e.done {
		return
	}
	e.done = true
	e.proc.Then(res)

	rec := Record{RunID: e.runID, Kind: e.kind, Type: RecordCompleted, Outcome: res.String()}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	r.emit(rec)
}

// notifyWaiters queues one Resolved delivery per joined waiter.
// Deliveries are queued after Then, so each waiter observes the result only
// once the target's completion hook has run.
func (r *Registry) notifyWaiters(e *entry, res Result) {
	for _, w := range e.waiters {
		w := w
		ev := Resolved{From: e.kind, Result: res}
		r.schedule(e, func() { r.deliver(w, ev) })
	}
}

// deliver hands a Resolved event to waiter w if it still waits for it.
func (r *Registry) deliver(w Kind, ev Resolved) {
	e, ok := r.slots[w]
	if !ok {
		r.logger.Debug("resolved event dropped: waiter gone", "waiter", w, "from", ev.From)
		r.emit(Record{Kind: w, Type: RecordIgnored, Cause: string(ev.Kind())})
		return
	}
	r.emit(Record{RunID: e.runID, Kind: w, Type: RecordNotified, Cause: string(ev.Kind()), Outcome: ev.Result.String()})
	if !r.TriggerOn(w, ev) {
		r.logger.Debug("resolved event ignored by waiter", "waiter", w, "from", ev.From)
	}
}

// schedule queues task; if the scheduler refuses (closed) the task runs inline
// so Then is never lost.
func (r *Registry) schedule(e *entry, task func()) {
	if r.sched.Defer(task) {
		return
	}
	r.logger.Warn("scheduler closed: running completion inline", "kind", e.kind, "run_id", e.runID)
	task()
}

func (r *Registry) remove(e *entry) {
	if r.slots[e.kind] != e {
		return
	}
	delete(r.slots, e.kind)
	for i, k := range r.order {
		if k == e.kind {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Registry) emitResolved(e *entry, out Outcome, cause string) {
	rec := Record{RunID: e.runID, Kind: e.kind, Type: RecordResolved, Cause: cause, Outcome: out.String()}
	if err := out.Err(); err != nil {
		rec.Error = err.Error()
	}
	r.emit(rec)

	if out.IsError() {
		r.logger.Warn("procedure resolved with error",
			"kind", e.kind,
			"run_id", e.runID,
			"cause", cause,
			"error", out.Err(),
		)
		return
	}
	r.logger.Info("procedure resolved",
		"kind", e.kind,
		"run_id", e.runID,
		"cause", cause,
	)
}

func (r *Registry) emit(rec Record) {
	rec.Seq = r.clock.Next()
	for _, obs := range r.observers {
		obs.Observe(rec)
	}
}
