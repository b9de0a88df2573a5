package rrc

import (
	"errors"
	"fmt"
)

var (
	// ErrNoIdentity is the precondition failure of a connection request
	// made before a PLMN was selected.
	ErrNoIdentity = errors.New("PLMN not selected")

	// ErrNotIdle is the precondition failure of a connection request made
	// outside the idle state.
	ErrNotIdle = errors.New("RRC connection establishment requested while not idle")

	// ErrNoSuitableCell resolves a cell selection that found nothing to camp on.
	ErrNoSuitableCell = errors.New("no suitable cell")

	// ErrNoPendingRequest rejects an RRCSetup that no setup request waits for.
	ErrNoPendingRequest = errors.New("no connection request waiting for RRCSetup")

	// ErrMissingExtension resolves a reconfiguration whose secondary cell
	// group arrived without the rrcReconfiguration critical extension.
	ErrMissingExtension = errors.New("reconfiguration does not contain secondary cell group config")
)

// CellSelectionError resolves a failed cell selection. Joined waiters
// recover the classification with errors.As.
type CellSelectionError struct {
	Result CellSearchResult
}

func (e *CellSelectionError) Error() string {
	return fmt.Sprintf("%s (%s)", ErrNoSuitableCell, e.Result)
}

func (e *CellSelectionError) Unwrap() error { return ErrNoSuitableCell }

func wrapMissing(layer string) error {
	return fmt.Errorf("%w: %s", ErrMissingLayer, layer)
}
