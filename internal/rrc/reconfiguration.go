package rrc

import (
	"log/slog"

	"github.com/roach88/rrcproc/internal/proc"
)

// Reconfiguration applies an RRCReconfiguration without handover.
//
// Changes are applied in a fixed order (secondary cell group, SK counter,
// radio bearers) and the first failure aborts the rest. The initiator
// recorded at Init selects the failure notification.
type Reconfiguration struct {
	stack     *Stack
	logger    *slog.Logger
	initiator Initiator
	msg       ReconfigMessage
}

// NewReconfiguration creates a reconfiguration procedure bound to s.
func NewReconfiguration(s *Stack, initiator Initiator, msg ReconfigMessage) *Reconfiguration {
	return &Reconfiguration{
		stack:     s,
		logger:    s.logger.With("proc", KindReconfiguration),
		initiator: initiator,
		msg:       msg,
	}
}

func (p *Reconfiguration) Kind() proc.Kind { return KindReconfiguration }

// Initiator returns the path that delivered the message.
func (p *Reconfiguration) Initiator() Initiator { return p.initiator }

func (p *Reconfiguration) Init() proc.Outcome {
	p.logger.Info("starting",
		"initiator", p.initiator.String(),
		"endc_release_and_add", p.msg.EndcReleaseAndAdd,
	)

	if p.msg.SecondaryCellGroup != nil {
		if !p.msg.CriticalExtension {
			p.logger.Error("reconfiguration does not contain secondary cell group config")
			return proc.Fail(proc.NewPreconditionError(KindReconfiguration, ErrMissingExtension))
		}

		cg, err := p.stack.layers.Codec.UnpackCellGroupConfig(p.msg.SecondaryCellGroup)
		if err != nil {
			p.logger.Error("could not unpack secondary cell group config", "error", err)
			return proc.Fail(proc.NewDecodeError(KindReconfiguration, "secondary cell group config", err))
		}

		p.logger.Info("applying cell group config", "cell_group_id", cg.CellGroupID)
		if !p.stack.layers.Configurator.ApplyCellGroupConfig(cg) {
			return proc.Fail(proc.NewApplyError(KindReconfiguration, "secondary cell group config"))
		}
	}

	if p.msg.SKCounter != nil {
		p.logger.Info("applying sk counter", "sk_counter", *p.msg.SKCounter)
		if !p.stack.layers.Configurator.ConfigureSKCounter(*p.msg.SKCounter) {
			return proc.Fail(proc.NewApplyError(KindReconfiguration, "sk counter"))
		}
	}

	if p.msg.RadioBearer != nil {
		p.logger.Info("applying radio bearer config")
		if !p.stack.layers.Configurator.ApplyRadioBearerConfig(*p.msg.RadioBearer) {
			return proc.Fail(proc.NewApplyError(KindReconfiguration, "radio bearer config"))
		}
	}

	return proc.Yield()
}

func (p *Reconfiguration) Step() proc.Outcome { return proc.Yield() }

func (p *Reconfiguration) Subscribed(k proc.EventKind) bool {
	return k == EventConfigComplete
}

func (p *Reconfiguration) React(ev proc.Event) proc.Outcome {
	cc, ok := ev.(ConfigComplete)
	if !ok {
		return proc.Yield()
	}
	if !cc.OK {
		p.logger.Error("NR reconfiguration failed")
		return proc.Fail(proc.NewLowerLayerError(KindReconfiguration, "NR reconfiguration failed"))
	}
	p.logger.Info("reconfiguration returned successfully")
	return proc.Success(nil)
}

func (p *Reconfiguration) Then(r proc.Result) {
	if r.IsSuccess() {
		p.logger.Info("finished successfully")
		p.stack.layers.EUTRA.ReconfigurationComplete(true)
		return
	}

	// Inability to comply with RRCReconfiguration.
	switch p.initiator {
	case InitiatorMCGSRB1:
		p.stack.layers.EUTRA.ReconfigurationFailure()
	default:
		p.logger.Warn("reconfiguration failure not implemented for initiator", "initiator", p.initiator.String())
	}
	p.logger.Warn("finished with failure", "error", r.Err)
}
