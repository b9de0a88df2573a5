package rrc

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/rrcproc/internal/proc"
)

type setupRequestState int

const (
	setupCellSelection setupRequestState = iota
	setupConfigServingCell
	setupWaitResponse
)

func (s setupRequestState) String() string {
	switch s {
	case setupCellSelection:
		return "cell_selection"
	case setupConfigServingCell:
		return "config_serving_cell"
	case setupWaitResponse:
		return "wait_response"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SetupRequest establishes an RRC connection: it waits for a cell
// selection run, configures the serving cell and sends RRCSetupRequest.
//
// The NAS PDU it carries is handed to the stack once the request is sent
// and dropped if the procedure fails.
type SetupRequest struct {
	stack  *Stack
	logger *slog.Logger
	cause  EstablishmentCause
	nas    []byte

	state      setupRequestState
	cellResult CellSearchResult
}

// NewSetupRequest creates a connection setup request bound to s.
func NewSetupRequest(s *Stack, cause EstablishmentCause, nas []byte) *SetupRequest {
	return &SetupRequest{
		stack:  s,
		logger: s.logger.With("proc", KindSetupRequest),
		cause:  cause,
		nas:    nas,
	}
}

func (p *SetupRequest) Kind() proc.Kind { return KindSetupRequest }

// CellResult returns the cell selection classification the request used.
func (p *SetupRequest) CellResult() CellSearchResult { return p.cellResult }

func (p *SetupRequest) Init() proc.Outcome {
	if !p.stack.plmnSelected {
		p.logger.Error("trying to connect but PLMN not selected")
		return proc.Fail(proc.NewPreconditionError(KindSetupRequest, ErrNoIdentity))
	}
	if p.stack.state != StateIdle {
		p.logger.Warn("requested RRC connection establishment while not idle", "state", p.stack.state.String())
		return proc.Fail(proc.NewPreconditionError(KindSetupRequest, ErrNotIdle))
	}

	p.logger.Info("initiation of connection establishment", "cause", p.cause.String())

	p.cellResult = NoCell
	p.state = setupCellSelection

	joined, err := p.stack.procs.Await(KindSetupRequest, NewCellSelection(p.stack))
	if err != nil {
		return proc.Fail(fmt.Errorf("failed to initiate cell selection: %w", err))
	}
	if joined {
		p.logger.Info("cell selection already ongoing, waiting for its result")
	}
	return proc.Yield()
}

func (p *SetupRequest) Step() proc.Outcome {
	switch p.state {
	case setupCellSelection:
		// cell selection signals back with a Resolved event
		return proc.Yield()

	case setupConfigServingCell:
		p.stack.phyCfgState = PhyCfgApplySpCell
		if !p.stack.layers.PHY.SetConfig(p.stack.phyCfg) {
			return proc.Fail(proc.NewApplyError(KindSetupRequest, "serving cell PHY config"))
		}

		p.stack.pendingNAS = p.nas
		p.stack.layers.Transmitter.SendSetupRequest(p.cause)

		p.logger.Info("waiting for RRCSetup/Reject or expiry")
		p.state = setupWaitResponse
		return proc.Yield()

	case setupWaitResponse:
		return proc.Yield()
	}
	return proc.Fail(fmt.Errorf("setup request in unknown state %s", p.state))
}

func (p *SetupRequest) Subscribed(k proc.EventKind) bool {
	switch p.state {
	case setupCellSelection:
		return k == proc.ResolvedKind(KindCellSelection)
	case setupWaitResponse:
		return k == EventSetupReceived || k == TimerKind(TimerT300)
	}
	return false
}

func (p *SetupRequest) React(ev proc.Event) proc.Outcome {
	switch e := ev.(type) {
	case proc.Resolved:
		if e.Result.IsError() {
			var cse *CellSelectionError
			if errors.As(e.Result.Err, &cse) {
				p.cellResult = cse.Result
			}
			p.logger.Warn("could not find any suitable cell to connect", "error", e.Result.Err)
			return proc.Fail(fmt.Errorf("cell selection: %w", e.Result.Err))
		}
		if res, ok := e.Result.Value.(CellSearchResult); ok {
			p.cellResult = res
		}
		p.logger.Info("configuring serving cell", "cell_result", p.cellResult.String())
		p.state = setupConfigServingCell
		return proc.Repeat()

	case SetupReceived:
		return proc.Success(p.cellResult)

	case TimerExpiry:
		return proc.Fail(proc.NewNotImplementedError(KindSetupRequest, "T300 expiry handling"))
	}
	return proc.Yield()
}

// Release hands back the NAS PDU.
func (p *SetupRequest) Release() any {
	nas := p.nas
	p.nas = nil
	p.stack.pendingNAS = nil
	return nas
}

func (p *SetupRequest) Then(r proc.Result) {
	if r.IsError() {
		p.logger.Warn("could not establish connection, deallocating NAS PDU", "error", r.Err)
		p.nas = nil
		p.stack.pendingNAS = nil
	} else {
		p.logger.Info("finished connection request successfully")
	}
	p.stack.layers.NAS.ConnectionRequestCompleted(r.IsSuccess())
}
