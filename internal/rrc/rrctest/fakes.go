// Package rrctest provides recording fakes of the rrc lower layers.
package rrctest

import (
	"github.com/roach88/rrcproc/internal/rrc"
)

// PHY records cell-select requests and configurations.
type PHY struct {
	CellSelects  []rrc.CellSelectArgs
	Configs      []rrc.PhyConfig
	RejectConfig bool
}

func (p *PHY) StartCellSelect(args rrc.CellSelectArgs) {
	p.CellSelects = append(p.CellSelects, args)
}

func (p *PHY) SetConfig(cfg rrc.PhyConfig) bool {
	p.Configs = append(p.Configs, cfg)
	return !p.RejectConfig
}

// Configurator records applied configurations. The Fail flags make the
// matching call report failure.
type Configurator struct {
	RadioBearers []rrc.RadioBearerConfig
	CellGroups   []rrc.CellGroupConfig
	SKCounters   []uint16

	// Calls lists the applied changes in order: "radio_bearer",
	// "cell_group" or "sk_counter".
	Calls []string

	FailRadioBearer bool
	FailCellGroup   bool
	FailSKCounter   bool
}

func (c *Configurator) ApplyRadioBearerConfig(cfg rrc.RadioBearerConfig) bool {
	c.Calls = append(c.Calls, "radio_bearer")
	c.RadioBearers = append(c.RadioBearers, cfg)
	return !c.FailRadioBearer
}

func (c *Configurator) ApplyCellGroupConfig(cfg rrc.CellGroupConfig) bool {
	c.Calls = append(c.Calls, "cell_group")
	c.CellGroups = append(c.CellGroups, cfg)
	return !c.FailCellGroup
}

func (c *Configurator) ConfigureSKCounter(counter uint16) bool {
	c.Calls = append(c.Calls, "sk_counter")
	c.SKCounters = append(c.SKCounters, counter)
	return !c.FailSKCounter
}

// Transmitter records uplink messages.
type Transmitter struct {
	SetupRequests  []rrc.EstablishmentCause
	SetupCompletes [][]byte
}

func (t *Transmitter) SendSetupRequest(cause rrc.EstablishmentCause) {
	t.SetupRequests = append(t.SetupRequests, cause)
}

func (t *Transmitter) SendSetupComplete(nas []byte) {
	t.SetupCompletes = append(t.SetupCompletes, nas)
}

// NAS records connection request results.
type NAS struct {
	Completed []bool
}

func (n *NAS) ConnectionRequestCompleted(ok bool) {
	n.Completed = append(n.Completed, ok)
}

// EUTRA records reconfiguration notifications.
type EUTRA struct {
	Completed []bool
	Failures  int
}

func (e *EUTRA) ReconfigurationComplete(ok bool) {
	e.Completed = append(e.Completed, ok)
}

func (e *EUTRA) ReconfigurationFailure() {
	e.Failures++
}

// Codec unpacks blobs with Unpack, or returns Err if set.
type Codec struct {
	Unpack func(blob []byte) (rrc.CellGroupConfig, error)
	Err    error
	Blobs  [][]byte
}

func (c *Codec) UnpackCellGroupConfig(blob []byte) (rrc.CellGroupConfig, error) {
	c.Blobs = append(c.Blobs, blob)
	if c.Err != nil {
		return rrc.CellGroupConfig{}, c.Err
	}
	if c.Unpack != nil {
		return c.Unpack(blob)
	}
	return rrc.CellGroupConfig{}, nil
}

// Layers bundles one of each fake.
type Layers struct {
	PHY          *PHY
	Configurator *Configurator
	Codec        *Codec
	Transmitter  *Transmitter
	NAS          *NAS
	EUTRA        *EUTRA
}

// NewLayers returns fresh fakes.
func NewLayers() *Layers {
	return &Layers{
		PHY:          &PHY{},
		Configurator: &Configurator{},
		Codec:        &Codec{},
		Transmitter:  &Transmitter{},
		NAS:          &NAS{},
		EUTRA:        &EUTRA{},
	}
}

// RRC returns the fakes as rrc.Layers.
func (l *Layers) RRC() rrc.Layers {
	return rrc.Layers{
		PHY:          l.PHY,
		Configurator: l.Configurator,
		Codec:        l.Codec,
		Transmitter:  l.Transmitter,
		NAS:          l.NAS,
		EUTRA:        l.EUTRA,
	}
}
