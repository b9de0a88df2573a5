package rrc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/rrcproc/internal/proc"
	"github.com/roach88/rrcproc/internal/sched"
)

// Config is the initial state of a Stack.
type Config struct {
	// Carrier and SSB form the PHY configuration used for cell selection
	// and pushed to the PHY when configuring the serving cell.
	Carrier Carrier
	SSB     SSBConfig

	// ServingCell is the cell measured as serving at startup.
	ServingCell PhyCell

	// Camped marks the serving cell as suitable. When false, cell
	// selection waits for a CellSelectResult.
	Camped bool

	// PLMNSelected marks a network identity as selected.
	PLMNSelected bool
}

// Stack is the RRC context shared by all procedures.
//
// A Stack is owned by one goroutine. Other goroutines hand it work through
// Post; the owner drains that work with Tick or Run.
type Stack struct {
	layers Layers
	sched  *sched.TaskScheduler
	procs  *proc.Registry
	logger *slog.Logger

	state        State
	plmnSelected bool
	phyCfgState  PhyCfgState
	phyCfg       PhyConfig
	servingCell  PhyCell
	camped       bool

	// pendingNAS is the NAS PDU handed over by the setup request, consumed
	// by the connection setup procedure.
	pendingNAS []byte
}

type stackOptions struct {
	sched    *sched.TaskScheduler
	logger   *slog.Logger
	procOpts []proc.Option
}

// Option configures a Stack.
type Option func(*stackOptions)

// WithLogger sets the logger for the stack and its registry.
func WithLogger(l *slog.Logger) Option {
	return func(o *stackOptions) {
		o.logger = l
	}
}

// WithScheduler makes the stack use an existing scheduler.
func WithScheduler(s *sched.TaskScheduler) Option {
	return func(o *stackOptions) {
		o.sched = s
	}
}

// WithRegistryOptions passes options through to the procedure registry.
func WithRegistryOptions(opts ...proc.Option) Option {
	return func(o *stackOptions) {
		o.procOpts = append(o.procOpts, opts...)
	}
}

// New creates a Stack in the idle state.
func New(cfg Config, layers Layers, opts ...Option) (*Stack, error) {
	if err := layers.validate(); err != nil {
		return nil, err
	}

	o := stackOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sched == nil {
		o.sched = sched.New(sched.WithLogger(o.logger))
	}

	procOpts := append([]proc.Option{proc.WithLogger(o.logger)}, o.procOpts...)

	return &Stack{
		layers:       layers,
		sched:        o.sched,
		procs:        proc.NewRegistry(o.sched, procOpts...),
		logger:       o.logger.With("component", "rrc"),
		state:        StateIdle,
		plmnSelected: cfg.PLMNSelected,
		phyCfg:       PhyConfig{Carrier: cfg.Carrier, SSB: cfg.SSB},
		servingCell:  cfg.ServingCell,
		camped:       cfg.Camped,
	}, nil
}

// ConnectionRequest starts connection establishment on behalf of NAS.
// The result is reported through NASNotifier.ConnectionRequestCompleted.
func (s *Stack) ConnectionRequest(cause EstablishmentCause, nas []byte) error {
	return s.procs.Launch(NewSetupRequest(s, cause, nas))
}

// CancelConnectionRequest aborts a running connection request and returns
// the NAS PDU it carried.
func (s *Stack) CancelConnectionRequest() ([]byte, bool) {
	carried, ok := s.procs.Cancel(KindSetupRequest)
	if !ok {
		return nil, false
	}
	nas, _ := carried.([]byte)
	return nas, true
}

// HandleSetup processes an RRCSetup from the network: it answers a waiting
// setup request and starts the connection setup procedure with the NAS PDU
// the request handed over. Without a request waiting for the response it
// fails with PRECONDITION_FAILED and launches nothing.
func (s *Stack) HandleSetup(rb RadioBearerConfig, cg CellGroupConfig) error {
	if !s.procs.TriggerOn(KindSetupRequest, SetupReceived{}) {
		s.logger.Warn("RRCSetup received without a connection request waiting for it")
		return proc.NewPreconditionError(KindConnectionSetup, ErrNoPendingRequest)
	}

	nas := s.pendingNAS
	s.pendingNAS = nil
	return s.procs.Launch(NewConnectionSetup(s, rb, cg, nas))
}

// HandleReconfiguration starts a reconfiguration without handover.
func (s *Stack) HandleReconfiguration(initiator Initiator, msg ReconfigMessage) error {
	return s.procs.Launch(NewReconfiguration(s, initiator, msg))
}

// CellSelectCompleted delivers a PHY cell-select result.
func (s *Stack) CellSelectCompleted(res CellSelectResult) bool {
	return s.procs.Trigger(res)
}

// SetConfigComplete delivers the PHY or MAC "configuration applied"
// confirmation.
func (s *Stack) SetConfigComplete(ok bool) bool {
	if s.phyCfgState == PhyCfgApplySpCell {
		s.logger.Info("SpCell configuration applied", "ok", ok)
		s.phyCfgState = PhyCfgIdle
	}
	return s.procs.Trigger(ConfigComplete{OK: ok})
}

// TimerExpired delivers a timer expiry.
func (s *Stack) TimerExpired(name string) bool {
	return s.procs.Trigger(TimerExpiry{Timer: name})
}

// Post hands a task to the stack goroutine. Safe for concurrent use.
func (s *Stack) Post(task func()) bool {
	return s.sched.Defer(task)
}

// Tick drains deferred tasks and steps every active procedure once.
// Returns the number of deferred tasks run.
func (s *Stack) Tick() int {
	n := s.sched.RunPending()
	s.procs.RunAll()
	return n
}

// Run processes posted tasks until ctx is cancelled or the scheduler is
// closed.
func (s *Stack) Run(ctx context.Context) error {
	return s.sched.Run(ctx)
}

// Close stops accepting posted tasks.
func (s *Stack) Close() {
	s.sched.Close()
}

// SetPLMNSelected records whether NAS selected a network identity.
func (s *Stack) SetPLMNSelected(selected bool) {
	s.plmnSelected = selected
}

// SetServingCell replaces the measured serving cell.
func (s *Stack) SetServingCell(cell PhyCell, camped bool) {
	s.servingCell = cell
	s.camped = camped
}

// Procedures returns the procedure registry.
func (s *Stack) Procedures() *proc.Registry { return s.procs }

// Scheduler returns the task scheduler.
func (s *Stack) Scheduler() *sched.TaskScheduler { return s.sched }

func (s *Stack) State() State { return s.state }
func (s *Stack) PhyConfigState() PhyCfgState { return s.phyCfgState }
func (s *Stack) PhyConfig() PhyConfig { return s.phyCfg }
func (s *Stack) ServingCell() PhyCell { return s.servingCell }
func (s *Stack) Camped() bool { return s.camped }
func (s *Stack) PLMNSelected() bool { return s.plmnSelected }
func (s *Stack) PendingNAS() []byte { return s.pendingNAS }

// String summarizes the stack for logs.
func (s *Stack) String() string {
	return fmt.Sprintf("state=%s serving=[%s] camped=%t active=%v",
		s.state, s.servingCell, s.camped, s.procs.Active())
}
