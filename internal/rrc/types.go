package rrc

import "fmt"

// PhyCell identifies a physical cell.
type PhyCell struct {
	PCI   uint32 `json:"pci" yaml:"pci"`
	ARFCN uint32 `json:"arfcn" yaml:"arfcn"`
}

// String returns "pci=<pci> arfcn=<arfcn>".
func (c PhyCell) String() string {
	return fmt.Sprintf("pci=%d arfcn=%d", c.PCI, c.ARFCN)
}

// Carrier describes the NR carrier the PHY operates on.
type Carrier struct {
	PCI           uint32 `json:"pci" yaml:"pci"`
	ARFCN         uint32 `json:"arfcn" yaml:"arfcn"`
	SCSkHz        uint32 `json:"scs_khz" yaml:"scs_khz"`
	NofPRB        uint32 `json:"nof_prb" yaml:"nof_prb"`
	MaxMIMOLayers uint32 `json:"max_mimo_layers" yaml:"max_mimo_layers"`
}

// SSBConfig describes the synchronization signal block of the carrier.
type SSBConfig struct {
	PeriodicityMs uint32 `json:"periodicity_ms" yaml:"periodicity_ms"`
	Pattern       string `json:"pattern" yaml:"pattern"`
	SCSkHz        uint32 `json:"scs_khz" yaml:"scs_khz"`
}

// PhyConfig is the configuration pushed to the PHY with SetConfig.
type PhyConfig struct {
	Carrier Carrier   `json:"carrier"`
	SSB     SSBConfig `json:"ssb"`
}

// CellSelectArgs parameterizes a PHY cell-select request.
type CellSelectArgs struct {
	Carrier Carrier
	SSB     SSBConfig
}

// EstablishmentCause is the reason given in a connection setup request.
type EstablishmentCause int

const (
	CauseEmergency EstablishmentCause = iota
	CauseHighPriorityAccess
	CauseMTAccess
	CauseMOSignalling
	CauseMOData
	CauseMOVoiceCall
	CauseMOVideoCall
	CauseMOSMS
	CauseMPSPriorityAccess
	CauseMCSPriorityAccess
)

var causeNames = []string{
	"emergency",
	"highPriorityAccess",
	"mt-Access",
	"mo-Signalling",
	"mo-Data",
	"mo-VoiceCall",
	"mo-VideoCall",
	"mo-SMS",
	"mps-PriorityAccess",
	"mcs-PriorityAccess",
}

func (c EstablishmentCause) String() string {
	if c < 0 || int(c) >= len(causeNames) {
		return fmt.Sprintf("cause(%d)", int(c))
	}
	return causeNames[c]
}

// ParseEstablishmentCause parses the names returned by String.
func ParseEstablishmentCause(s string) (EstablishmentCause, error) {
	for i, name := range causeNames {
		if name == s {
			return EstablishmentCause(i), nil
		}
	}
	return 0, fmt.Errorf("unknown establishment cause %q", s)
}

// RadioBearerConfig lists the signalling and data radio bearers to set up.
type RadioBearerConfig struct {
	SRBs []uint32 `json:"srbs,omitempty" yaml:"srbs,omitempty"`
	DRBs []uint32 `json:"drbs,omitempty" yaml:"drbs,omitempty"`
}

// CellGroupConfig is the decoded form of a cell group configuration.
type CellGroupConfig struct {
	CellGroupID uint32   `json:"cell_group_id" yaml:"cell_group_id"`
	SpCell      *PhyCell `json:"sp_cell,omitempty" yaml:"sp_cell,omitempty"`
	RLCBearers  []uint32 `json:"rlc_bearers,omitempty" yaml:"rlc_bearers,omitempty"`
}

// Initiator records which path delivered a reconfiguration.
type Initiator int

const (
	InitiatorNR Initiator = iota
	InitiatorMCGSRB1
	InitiatorSCGSRB3
)

func (i Initiator) String() string {
	switch i {
	case InitiatorNR:
		return "nr"
	case InitiatorMCGSRB1:
		return "mcg_srb1"
	case InitiatorSCGSRB3:
		return "scg_srb3"
	default:
		return fmt.Sprintf("initiator(%d)", int(i))
	}
}

// ParseInitiator parses the names returned by String.
func ParseInitiator(s string) (Initiator, error) {
	switch s {
	case "nr":
		return InitiatorNR, nil
	case "mcg_srb1":
		return InitiatorMCGSRB1, nil
	case "scg_srb3":
		return InitiatorSCGSRB3, nil
	}
	return 0, fmt.Errorf("unknown reconfiguration initiator %q", s)
}

// ReconfigMessage is the subset of an RRCReconfiguration message the
// reconfiguration procedure acts on.
type ReconfigMessage struct {
	// CriticalExtension is true when the message carries the
	// rrcReconfiguration critical extension.
	CriticalExtension bool

	// EndcReleaseAndAdd mirrors the EN-DC release-and-add flag of the
	// carrying LTE message.
	EndcReleaseAndAdd bool

	// SecondaryCellGroup is the packed cell group config; nil if absent.
	SecondaryCellGroup []byte

	// SKCounter is the security key counter; nil if absent.
	SKCounter *uint16

	// RadioBearer is the radio bearer config; nil if absent.
	RadioBearer *RadioBearerConfig
}

// CellSearchResult classifies a finished cell selection.
type CellSearchResult int

const (
	NoCell CellSearchResult = iota
	SameCell
	ChangedCell
)

func (r CellSearchResult) String() string {
	switch r {
	case NoCell:
		return "no_cell"
	case SameCell:
		return "same_cell"
	case ChangedCell:
		return "changed_cell"
	default:
		return fmt.Sprintf("cell_search_result(%d)", int(r))
	}
}

// State is the RRC state of the stack.
type State int

const (
	StateIdle State = iota
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "idle"
}

// PhyCfgState tracks which PHY configuration is being applied.
type PhyCfgState int

const (
	PhyCfgIdle PhyCfgState = iota
	PhyCfgApplySpCell
)

func (s PhyCfgState) String() string {
	if s == PhyCfgApplySpCell {
		return "apply_sp_cell"
	}
	return "idle"
}
