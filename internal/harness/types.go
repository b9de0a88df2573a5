package harness

import (
	"github.com/roach88/rrcproc/internal/proc"
	"github.com/roach88/rrcproc/internal/rrc"
	"github.com/roach88/rrcproc/internal/rrc/rrctest"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every lifecycle record in seq order.
	Trace []proc.Record `json:"trace"`

	// Errors lists failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// FinalState is the stack state after the last step.
	FinalState FinalState `json:"final_state"`

	// Calls summarizes what the lower layers were asked to do.
	Calls Calls `json:"calls"`

	// SessionID identifies the persisted trace.
	SessionID string `json:"session_id"`

	// Digest is the content hash of the canonical trace.
	Digest string `json:"digest"`
}

// FinalState is the observable stack state.
type FinalState struct {
	State          string      `json:"state"`
	PhyConfigState string      `json:"phy_config_state"`
	Camped         bool        `json:"camped"`
	ServingCell    rrc.PhyCell `json:"serving_cell"`
	Active         []string    `json:"active"`
	PendingNAS     string      `json:"pending_nas,omitempty"`
}

// Calls summarizes the recording fakes.
type Calls struct {
	CellSelects    int      `json:"cell_selects"`
	PHYConfigs     int      `json:"phy_configs"`
	Configurator   []string `json:"configurator"`
	SetupRequests  []string `json:"setup_requests"`
	SetupCompletes []string `json:"setup_completes"`
	NASCompleted   []bool   `json:"nas_completed"`
	EUTRACompleted []bool   `json:"eutra_completed"`
	EUTRAFailures  int      `json:"eutra_failures"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []proc.Record{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func snapshotState(s *rrc.Stack) FinalState {
	active := []string{}
	for _, k := range s.Procedures().Active() {
		active = append(active, string(k))
	}
	return FinalState{
		State:          s.State().String(),
		PhyConfigState: s.PhyConfigState().String(),
		Camped:         s.Camped(),
		ServingCell:    s.ServingCell(),
		Active:         active,
		PendingNAS:     string(s.PendingNAS()),
	}
}

func snapshotCalls(l *rrctest.Layers) Calls {
	c := Calls{
		CellSelects:    len(l.PHY.CellSelects),
		PHYConfigs:     len(l.PHY.Configs),
		Configurator:   append([]string{}, l.Configurator.Calls...),
		SetupRequests:  []string{},
		SetupCompletes: []string{},
		NASCompleted:   append([]bool{}, l.NAS.Completed...),
		EUTRACompleted: append([]bool{}, l.EUTRA.Completed...),
		EUTRAFailures:  l.EUTRA.Failures,
	}
	for _, cause := range l.Transmitter.SetupRequests {
		c.SetupRequests = append(c.SetupRequests, cause.String())
	}
	for _, nas := range l.Transmitter.SetupCompletes {
		c.SetupCompletes = append(c.SetupCompletes, string(nas))
	}
	return c
}
