package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rrcproc/internal/config"
	"github.com/roach88/rrcproc/internal/rrc"
)

// Scenario is a scripted run of the RRC stack.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Stack is the initial stack state. Omitted fields keep config defaults.
	Stack config.StackConfig `yaml:"stack"`

	// LowerLayers makes the fakes report failures.
	LowerLayers LowerLayers `yaml:"lower_layers,omitempty"`

	// RunIDPrefix prefixes sequential run IDs. Default: "run".
	RunIDPrefix string `yaml:"run_id_prefix,omitempty"`

	// ManualTicks disables ticking after each step.
	ManualTicks bool `yaml:"manual_ticks,omitempty"`

	// Steps drive the stack in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace, state and lower-layer calls.
	Assertions []Assertion `yaml:"assertions"`
}

// LowerLayers configures failure injection in the recording fakes.
type LowerLayers struct {
	RejectPHYConfig bool `yaml:"reject_phy_config,omitempty"`
	FailRadioBearer bool `yaml:"fail_radio_bearer,omitempty"`
	FailCellGroup   bool `yaml:"fail_cell_group,omitempty"`
	FailSKCounter   bool `yaml:"fail_sk_counter,omitempty"`
}

// Step actions.
const (
	ActionConnectionRequest = "connection_request"
	ActionCancel            = "cancel"
	ActionCellSelect        = "cell_select"
	ActionSetup             = "setup"
	ActionReconfiguration   = "reconfiguration"
	ActionConfigComplete    = "config_complete"
	ActionTimer             = "timer"
	ActionTick              = "tick"
	ActionPLMN              = "plmn"
)

// Step is one call into the stack. Which fields apply depends on Action.
type Step struct {
	Action string `yaml:"action"`

	// connection_request
	Cause string `yaml:"cause,omitempty"`
	NAS   string `yaml:"nas,omitempty"`

	// cell_select
	Found bool         `yaml:"found,omitempty"`
	Cell  *rrc.PhyCell `yaml:"cell,omitempty"`

	// setup and reconfiguration
	RadioBearer *rrc.RadioBearerConfig `yaml:"radio_bearer,omitempty"`
	CellGroup   *rrc.CellGroupConfig   `yaml:"cell_group,omitempty"`

	// reconfiguration. CellGroup is packed as the secondary cell group;
	// RawCellGroup is passed to the codec verbatim instead.
	Initiator         string  `yaml:"initiator,omitempty"`
	RawCellGroup      string  `yaml:"raw_cell_group,omitempty"`
	CriticalExtension *bool   `yaml:"critical_extension,omitempty"`
	EndcReleaseAndAdd bool    `yaml:"endc_release_and_add,omitempty"`
	SKCounter         *uint16 `yaml:"sk_counter,omitempty"`

	// config_complete (default true) and plmn (selected)
	OK *bool `yaml:"ok,omitempty"`

	// timer
	Timer string `yaml:"timer,omitempty"`

	// Expect checks the direct result of the call.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// StepExpect checks what an entry point returned.
type StepExpect struct {
	// Error is the expected ProcError code, e.g. "BUSY". Empty means the
	// call must not fail.
	Error string `yaml:"error,omitempty"`

	// Delivered is whether an event found a subscriber.
	Delivered *bool `yaml:"delivered,omitempty"`

	// Carried is the NAS payload returned by cancel.
	Carried *string `yaml:"carried,omitempty"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count,
	// final_state, calls or runs.
	Type string `yaml:"type"`

	// Kind, Record, Cause and Outcome select records (trace_contains,
	// trace_count). Empty fields match anything.
	Kind    string `yaml:"kind,omitempty"`
	Record  string `yaml:"record,omitempty"`
	Cause   string `yaml:"cause,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number of matches (trace_count).
	Count int `yaml:"count,omitempty"`

	// Records lists "kind:type" pairs in expected order (trace_order).
	Records []string `yaml:"records,omitempty"`

	// Expect holds expected fields (final_state, calls). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Runs lists the persisted launches in order (runs).
	Runs []RunExpect `yaml:"runs,omitempty"`
}

// RunExpect describes one persisted launch.
type RunExpect struct {
	Kind    string `yaml:"kind"`
	Outcome string `yaml:"outcome"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertCalls         = "calls"
	AssertRuns          = "runs"
)

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML. Unknown fields (typos) and missing
// required fields are errors.
func ParseScenario(data []byte) (*Scenario, error) {
	scenario := Scenario{Stack: config.Default().Stack}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

var knownActions = map[string]bool{
	ActionConnectionRequest: true,
	ActionCancel:            true,
	ActionCellSelect:        true,
	ActionSetup:             true,
	ActionReconfiguration:   true,
	ActionConfigComplete:    true,
	ActionTimer:             true,
	ActionTick:              true,
	ActionPLMN:              true,
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	cfg := config.Default()
	cfg.Stack = s.Stack
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("stack: %w", err)
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step) error {
	if st.Action == "" {
		return fmt.Errorf("steps[%d]: action is required", index)
	}
	if !knownActions[st.Action] {
		return fmt.Errorf("steps[%d]: unknown action %q", index, st.Action)
	}

	switch st.Action {
	case ActionConnectionRequest:
		if _, err := rrc.ParseEstablishmentCause(st.Cause); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	case ActionCellSelect:
		if st.Found && st.Cell == nil {
			return fmt.Errorf("steps[%d]: cell is required when found is true", index)
		}
	case ActionSetup:
		if st.RadioBearer == nil || st.CellGroup == nil {
			return fmt.Errorf("steps[%d]: setup requires radio_bearer and cell_group", index)
		}
	case ActionReconfiguration:
		if _, err := rrc.ParseInitiator(st.Initiator); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
		if st.CellGroup != nil && st.RawCellGroup != "" {
			return fmt.Errorf("steps[%d]: cell_group and raw_cell_group are exclusive", index)
		}
	case ActionTimer:
		if st.Timer == "" {
			return fmt.Errorf("steps[%d]: timer is required", index)
		}
	case ActionPLMN:
		if st.OK == nil {
			return fmt.Errorf("steps[%d]: ok is required for plmn", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Kind == "" && a.Record == "" {
			return fmt.Errorf("assertions[%d]: kind or record is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Records) == 0 {
			return fmt.Errorf("assertions[%d]: records list is required for trace_order", index)
		}
		for _, r := range a.Records {
			if _, _, ok := splitRecordRef(r); !ok {
				return fmt.Errorf("assertions[%d]: record %q must be kind:type", index, r)
			}
		}
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState, AssertCalls:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
	case AssertRuns:
		if a.Runs == nil {
			return fmt.Errorf("assertions[%d]: runs is required for runs", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
