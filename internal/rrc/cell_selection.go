package rrc

import (
	"log/slog"

	"github.com/roach88/rrcproc/internal/proc"
)

type cellSelectionState int

const (
	cellSelectionWait cellSelectionState = iota
	cellSelectionServCellCamp
	cellSelectionCellConfig
	cellSelectionCellSearch
)

// CellSelection checks whether the serving cell is suitable and classifies
// the result against the cell served at launch.
//
// Only the suitability check is decided here. The camp, config and search
// states are placeholders that always yield.
type CellSelection struct {
	stack    *Stack
	logger   *slog.Logger
	state    cellSelectionState
	initCell PhyCell
	result   CellSearchResult
}

// NewCellSelection creates a cell selection procedure bound to s.
func NewCellSelection(s *Stack) *CellSelection {
	return &CellSelection{
		stack:  s,
		logger: s.logger.With("proc", KindCellSelection),
	}
}

func (p *CellSelection) Kind() proc.Kind { return KindCellSelection }

// Result returns the classification of the last completion.
func (p *CellSelection) Result() CellSearchResult { return p.result }

func (p *CellSelection) Init() proc.Outcome {
	p.initCell = p.stack.servingCell
	p.state = cellSelectionWait

	cfg := p.stack.phyCfg
	p.stack.layers.PHY.StartCellSelect(CellSelectArgs{Carrier: cfg.Carrier, SSB: cfg.SSB})

	if p.servingCellSuitable() {
		p.logger.Debug("skipping cell selection: serving cell suitable", "cell", p.initCell.String())
		return p.complete()
	}
	return proc.Yield()
}

func (p *CellSelection) Step() proc.Outcome {
	switch p.state {
	case cellSelectionWait, cellSelectionServCellCamp:
		// waits for a PHY event
		return proc.Yield()
	case cellSelectionCellConfig, cellSelectionCellSearch:
		return proc.Yield()
	}
	return proc.Fail(proc.NewNotImplementedError(KindCellSelection, "cell search state"))
}

func (p *CellSelection) Subscribed(k proc.EventKind) bool {
	return p.state == cellSelectionWait && k == EventCellSelectResult
}

func (p *CellSelection) React(ev proc.Event) proc.Outcome {
	res, ok := ev.(CellSelectResult)
	if !ok {
		return proc.Yield()
	}
	if res.Found {
		p.stack.SetServingCell(res.Cell, true)
	}
	return p.complete()
}

func (p *CellSelection) Then(r proc.Result) {
	if r.IsSuccess() {
		p.logger.Info("completed with success", "result", p.result.String())
		return
	}
	p.logger.Info("completed with failure", "error", r.Err)
}

func (p *CellSelection) servingCellSuitable() bool {
	return p.stack.camped
}

func (p *CellSelection) complete() proc.Outcome {
	if !p.servingCellSuitable() {
		p.result = NoCell
		return proc.Fail(&CellSelectionError{Result: p.result})
	}
	if p.stack.servingCell == p.initCell {
		p.result = SameCell
	} else {
		p.result = ChangedCell
	}
	return proc.Success(p.result)
}
