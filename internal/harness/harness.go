package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/rrcproc/internal/codec"
	"github.com/roach88/rrcproc/internal/proc"
	"github.com/roach88/rrcproc/internal/rrc"
	"github.com/roach88/rrcproc/internal/rrc/rrctest"
	"github.com/roach88/rrcproc/internal/store"
	"github.com/roach88/rrcproc/internal/testutil"
)

// maxSettleTicks bounds the ticks run after a step. Deferred work that
// keeps rescheduling itself past this is reported as a scenario error.
const maxSettleTicks = 100

// Harness executes one scenario.
type Harness struct {
	stack  *rrc.Stack
	layers *rrctest.Layers
	packer codec.JSONCodec
	clock  *testutil.DeterministicClock
	manual bool
	logger *slog.Logger
	result *Result
}

type options struct {
	logger    *slog.Logger
	store     *store.Store
	sessionID string
	observers []proc.Observer
	procOpts  []proc.Option
}

// Option configures Run.
type Option func(*options)

// WithLogger sets the logger handed to the stack. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithStore persists the trace into st under sessionID instead of a
// throwaway in-memory store.
func WithStore(st *store.Store, sessionID string) Option {
	return func(o *options) {
		o.store = st
		o.sessionID = sessionID
	}
}

// WithObservers adds lifecycle observers, for example metrics.
func WithObservers(obs ...proc.Observer) Option {
	return func(o *options) {
		o.observers = append(o.observers, obs...)
	}
}

// WithRegistryOptions passes options to the procedure registry after the
// harness defaults, so they can replace the run ID generator or the repeat
// budget.
func WithRegistryOptions(opts ...proc.Option) Option {
	return func(o *options) {
		o.procOpts = append(o.procOpts, opts...)
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Open the trace store and create the session
// 2. Build the stack with fakes, a deterministic clock and sequential run IDs
// 3. Execute steps, ticking after each unless manual_ticks is set
// 4. Snapshot state and lower-layer calls
// 5. Evaluate assertions
//
// Failed expectations are reported in the result. An error is returned
// only when the scenario could not be executed.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	if scenario == nil {
		return nil, fmt.Errorf("invalid scenario: nil")
	}
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	o := options{logger: testutil.DiscardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	ctx := context.Background()

	st := o.store
	if st == nil {
		mem, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer mem.Close()
		st = mem
	}
	sessionID := o.sessionID
	if sessionID == "" {
		sessionID = "scenario-" + scenario.Name
	}

	digest, err := codec.DigestValue(codec.DomainTrace, scenario.Stack)
	if err != nil {
		return nil, fmt.Errorf("failed to digest stack config: %w", err)
	}
	if err := st.CreateSession(ctx, store.Session{ID: sessionID, Name: scenario.Name, ConfigDigest: digest}); err != nil {
		return nil, err
	}
	last, err := st.LastSeq(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if last > 0 {
		return nil, fmt.Errorf("session %s already holds records up to seq %d", sessionID, last)
	}

	result := NewResult()
	result.SessionID = sessionID

	recorder := store.NewRecorder(ctx, st, sessionID, o.logger)
	collect := proc.ObserverFunc(func(rec proc.Record) {
		result.Trace = append(result.Trace, rec)
	})

	prefix := scenario.RunIDPrefix
	if prefix == "" {
		prefix = "run"
	}
	clock := testutil.NewDeterministicClock()

	layers := newLayers(scenario.LowerLayers)
	rrcLayers := layers.RRC()
	rrcLayers.Codec = codec.JSONCodec{}

	observers := append([]proc.Observer{collect, recorder}, o.observers...)
	procOpts := append([]proc.Option{
		proc.WithClock(clock),
		proc.WithRunIDGenerator(proc.NewSequentialGenerator(prefix)),
		proc.WithObserver(observers...),
	}, o.procOpts...)
	stack, err := rrc.New(scenario.Stack.RRC(), rrcLayers,
		rrc.WithLogger(o.logger),
		rrc.WithRegistryOptions(procOpts...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stack: %w", err)
	}
	defer stack.Close()

	h := &Harness{
		stack:  stack,
		layers: layers,
		clock:  clock,
		manual: scenario.ManualTicks,
		logger: o.logger,
		result: result,
	}

	for i, step := range scenario.Steps {
		h.executeStep(i, step)
	}

	if err := recorder.Err(); err != nil {
		return nil, fmt.Errorf("failed to persist trace: %w", err)
	}

	result.FinalState = snapshotState(stack)
	result.Calls = snapshotCalls(layers)
	result.Digest, err = codec.DigestValue(codec.DomainTrace, result.Trace)
	if err != nil {
		return nil, fmt.Errorf("failed to digest trace: %w", err)
	}

	actx := &AssertionContext{
		Store:     st,
		SessionID: sessionID,
		Ctx:       ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func newLayers(ll LowerLayers) *rrctest.Layers {
	l := rrctest.NewLayers()
	l.PHY.RejectConfig = ll.RejectPHYConfig
	l.Configurator.FailRadioBearer = ll.FailRadioBearer
	l.Configurator.FailCellGroup = ll.FailCellGroup
	l.Configurator.FailSKCounter = ll.FailSKCounter
	return l
}

// executeStep performs one step and checks its direct expectations.
func (h *Harness) executeStep(index int, st Step) {
	label := fmt.Sprintf("steps[%d] %s", index, st.Action)
	h.logger.Debug("executing step", "index", index, "action", st.Action, "seq", h.clock.Current())

	var (
		err       error
		delivered *bool
		carried   *string
	)
	deliver := func(ok bool) { delivered = &ok }

	switch st.Action {
	case ActionConnectionRequest:
		var cause rrc.EstablishmentCause
		if cause, err = rrc.ParseEstablishmentCause(st.Cause); err == nil {
			err = h.stack.ConnectionRequest(cause, []byte(st.NAS))
		}

	case ActionCancel:
		nas, ok := h.stack.CancelConnectionRequest()
		deliver(ok)
		s := string(nas)
		carried = &s

	case ActionCellSelect:
		res := rrc.CellSelectResult{Found: st.Found}
		if st.Cell != nil {
			res.Cell = *st.Cell
		}
		deliver(h.stack.CellSelectCompleted(res))

	case ActionSetup:
		err = h.stack.HandleSetup(*st.RadioBearer, *st.CellGroup)

	case ActionReconfiguration:
		var msg rrc.ReconfigMessage
		msg, err = h.reconfigMessage(st)
		var initiator rrc.Initiator
		if err == nil {
			initiator, err = rrc.ParseInitiator(st.Initiator)
		}
		if err == nil {
			err = h.stack.HandleReconfiguration(initiator, msg)
		}

	case ActionConfigComplete:
		deliver(h.stack.SetConfigComplete(st.OK == nil || *st.OK))

	case ActionTimer:
		deliver(h.stack.TimerExpired(st.Timer))

	case ActionTick:
		h.stack.Tick()

	case ActionPLMN:
		h.stack.SetPLMNSelected(*st.OK)
	}

	h.checkStep(label, st.Expect, err, delivered, carried)

	if !h.manual && st.Action != ActionTick {
		h.settle(label)
	}
}

// reconfigMessage builds the message of a reconfiguration step.
func (h *Harness) reconfigMessage(st Step) (rrc.ReconfigMessage, error) {
	msg := rrc.ReconfigMessage{
		CriticalExtension: st.CriticalExtension == nil || *st.CriticalExtension,
		EndcReleaseAndAdd: st.EndcReleaseAndAdd,
		SKCounter:         st.SKCounter,
		RadioBearer:       st.RadioBearer,
	}

	switch {
	case st.CellGroup != nil:
		blob, err := h.packer.PackCellGroupConfig(*st.CellGroup)
		if err != nil {
			return rrc.ReconfigMessage{}, fmt.Errorf("pack cell group: %w", err)
		}
		msg.SecondaryCellGroup = blob
	case st.RawCellGroup != "":
		msg.SecondaryCellGroup = []byte(st.RawCellGroup)
	}
	return msg, nil
}

func (h *Harness) checkStep(label string, exp *StepExpect, err error, delivered *bool, carried *string) {
	if exp == nil {
		exp = &StepExpect{}
	}

	switch {
	case err != nil && exp.Error == "":
		h.result.AddError(fmt.Sprintf("%s: unexpected error: %v", label, err))
	case err == nil && exp.Error != "":
		h.result.AddError(fmt.Sprintf("%s: expected error %s, got none", label, exp.Error))
	case err != nil && string(proc.CodeOf(err)) != exp.Error:
		h.result.AddError(fmt.Sprintf("%s: expected error %s, got %v", label, exp.Error, err))
	}

	if exp.Delivered != nil {
		switch {
		case delivered == nil:
			h.result.AddError(fmt.Sprintf("%s: delivered does not apply", label))
		case *delivered != *exp.Delivered:
			h.result.AddError(fmt.Sprintf("%s: expected delivered=%t, got %t", label, *exp.Delivered, *delivered))
		}
	}

	if exp.Carried != nil {
		switch {
		case carried == nil:
			h.result.AddError(fmt.Sprintf("%s: carried does not apply", label))
		case *carried != *exp.Carried:
			h.result.AddError(fmt.Sprintf("%s: expected carried %q, got %q", label, *exp.Carried, *carried))
		}
	}
}

// settle ticks until no deferred work is left.
func (h *Harness) settle(label string) {
	sched := h.stack.Scheduler()
	for i := 0; i < maxSettleTicks; i++ {
		if sched.Len() == 0 {
			return
		}
		h.stack.Tick()
	}
	h.result.AddError(fmt.Sprintf("%s: deferred work did not settle after %d ticks", label, maxSettleTicks))
}

// ErrScenarioFailed is returned by RunFile when assertions fail.
var ErrScenarioFailed = errors.New("scenario failed")

// RunFile loads and runs the scenario at path.
// Returns ErrScenarioFailed, with the result, if any expectation failed.
func RunFile(path string, opts ...Option) (*Scenario, *Result, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	result, err := Run(scenario, opts...)
	if err != nil {
		return scenario, nil, err
	}
	if !result.Pass {
		return scenario, result, fmt.Errorf("%w: %s", ErrScenarioFailed, scenario.Name)
	}
	return scenario, result, nil
}
