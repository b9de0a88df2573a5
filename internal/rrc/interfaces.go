package rrc

import "errors"

// PHY is the physical-layer control surface used by the procedures.
type PHY interface {
	// StartCellSelect is fire-and-forget; the result arrives later as a
	// CellSelectResult event.
	StartCellSelect(args CellSelectArgs)

	// SetConfig pushes a PHY configuration. Returns false if rejected.
	SetConfig(cfg PhyConfig) bool
}

// Configurator applies configuration to the layers below RRC.
type Configurator interface {
	ApplyRadioBearerConfig(cfg RadioBearerConfig) bool
	ApplyCellGroupConfig(cfg CellGroupConfig) bool
	ConfigureSKCounter(counter uint16) bool
}

// Codec unpacks configuration blobs embedded in RRC messages.
type Codec interface {
	UnpackCellGroupConfig(blob []byte) (CellGroupConfig, error)
}

// Transmitter sends uplink RRC messages. Sends are fire-and-forget.
type Transmitter interface {
	SendSetupRequest(cause EstablishmentCause)
	SendSetupComplete(nas []byte)
}

// NASNotifier receives connection establishment results.
type NASNotifier interface {
	ConnectionRequestCompleted(ok bool)
}

// EUTRANotifier receives NR reconfiguration results on the LTE side of an
// EN-DC connection.
type EUTRANotifier interface {
	ReconfigurationComplete(ok bool)
	ReconfigurationFailure()
}

// Layers bundles the collaborators a Stack drives.
type Layers struct {
	PHY          PHY
	Configurator Configurator
	Codec        Codec
	Transmitter  Transmitter
	NAS          NASNotifier
	EUTRA        EUTRANotifier
}

// ErrMissingLayer is returned by New when a collaborator is nil.
var ErrMissingLayer = errors.New("missing lower layer")

func (l Layers) validate() error {
	switch {
	case l.PHY == nil:
		return wrapMissing("phy")
	case l.Configurator == nil:
		return wrapMissing("configurator")
	case l.Codec == nil:
		return wrapMissing("codec")
	case l.Transmitter == nil:
		return wrapMissing("transmitter")
	case l.NAS == nil:
		return wrapMissing("nas")
	case l.EUTRA == nil:
		return wrapMissing("eutra")
	}
	return nil
}
