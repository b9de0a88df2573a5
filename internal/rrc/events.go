package rrc

import "github.com/roach88/rrcproc/internal/proc"

// Procedure kinds. One instance of each may run at a time.
const (
	KindCellSelection   proc.Kind = "cell_selection"
	KindSetupRequest    proc.Kind = "setup_request"
	KindConnectionSetup proc.Kind = "connection_setup"
	KindReconfiguration proc.Kind = "reconfiguration"
)

// Event kinds.
const (
	EventCellSelectResult proc.EventKind = "cell_select_result"
	EventConfigComplete   proc.EventKind = "config_complete"
	EventSetupReceived    proc.EventKind = "setup_received"
)

// TimerT300 guards the wait for RRCSetup after a setup request.
const TimerT300 = "T300"

// CellSelectResult reports the outcome of a PHY cell-select request.
type CellSelectResult struct {
	Found bool
	Cell  PhyCell
}

func (CellSelectResult) Kind() proc.EventKind { return EventCellSelectResult }

// ConfigComplete reports that the lower layers finished applying a
// configuration.
type ConfigComplete struct {
	OK bool
}

func (ConfigComplete) Kind() proc.EventKind { return EventConfigComplete }

// SetupReceived reports that the network answered a setup request with
// RRCSetup.
type SetupReceived struct{}

func (SetupReceived) Kind() proc.EventKind { return EventSetupReceived }

// TimerExpiry reports that the named timer fired.
type TimerExpiry struct {
	Timer string
}

// Kind returns a per-timer event kind.
func (e TimerExpiry) Kind() proc.EventKind { return TimerKind(e.Timer) }

// TimerKind returns the event kind of expiries of timer name.
func TimerKind(name string) proc.EventKind {
	return proc.EventKind("timer_expiry:" + name)
}
