package rrc

import (
	"log/slog"

	"github.com/roach88/rrcproc/internal/proc"
)

// ConnectionSetup applies the configuration of an RRCSetup and defers
// RRCSetupComplete until the lower layers confirm it.
type ConnectionSetup struct {
	stack  *Stack
	logger *slog.Logger
	rb     RadioBearerConfig
	cg     CellGroupConfig
	nas    []byte
}

// NewConnectionSetup creates a connection setup procedure bound to s.
func NewConnectionSetup(s *Stack, rb RadioBearerConfig, cg CellGroupConfig, nas []byte) *ConnectionSetup {
	return &ConnectionSetup{
		stack:  s,
		logger: s.logger.With("proc", KindConnectionSetup),
		rb:     rb,
		cg:     cg,
		nas:    nas,
	}
}

func (p *ConnectionSetup) Kind() proc.Kind { return KindConnectionSetup }

func (p *ConnectionSetup) Init() proc.Outcome {
	p.logger.Info("starting")

	if !p.stack.layers.Configurator.ApplyRadioBearerConfig(p.rb) {
		return proc.Fail(proc.NewApplyError(KindConnectionSetup, "radio bearer config"))
	}
	if !p.stack.layers.Configurator.ApplyCellGroupConfig(p.cg) {
		return proc.Fail(proc.NewApplyError(KindConnectionSetup, "cell group config"))
	}
	return proc.Yield()
}

func (p *ConnectionSetup) Step() proc.Outcome { return proc.Yield() }

func (p *ConnectionSetup) Subscribed(k proc.EventKind) bool {
	return k == EventConfigComplete
}

func (p *ConnectionSetup) React(ev proc.Event) proc.Outcome {
	cc, ok := ev.(ConfigComplete)
	if !ok {
		return proc.Yield()
	}
	if !cc.OK {
		p.logger.Error("connection setup failed")
		return proc.Fail(proc.NewLowerLayerError(KindConnectionSetup, "lower layers rejected setup configuration"))
	}

	nas := p.nas
	p.nas = nil
	p.stack.layers.Transmitter.SendSetupComplete(nas)
	p.stack.state = StateConnected
	return proc.Success(nil)
}

// Release hands back the NAS PDU if RRCSetupComplete was not sent yet.
func (p *ConnectionSetup) Release() any {
	nas := p.nas
	p.nas = nil
	return nas
}

func (p *ConnectionSetup) Then(r proc.Result) {
	if r.IsSuccess() {
		p.logger.Info("finished successfully")
		return
	}
	p.logger.Warn("finished with failure", "error", r.Err)
	p.nas = nil
}
