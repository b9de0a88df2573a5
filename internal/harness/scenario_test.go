package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rrcproc/internal/rrc"
)

const minimalScenario = `
name: minimal
description: one tick
steps:
  - action: tick
assertions:
  - type: trace_count
    count: 0
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, ActionTick, s.Steps[0].Action)
	assert.True(t, s.Stack.Camped, "stack defaults apply")
	assert.Equal(t, rrc.PhyCell{PCI: 500, ARFCN: 368500}, s.Stack.ServingCell)
}

func TestParseScenario_StackOverrides(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: overrides
description: partial stack
stack:
  camped: false
  serving_cell: {pci: 9}
steps:
  - action: tick
assertions:
  - type: trace_count
    count: 0
`))
	require.NoError(t, err)
	assert.False(t, s.Stack.Camped)
	assert.True(t, s.Stack.PLMNSelected)
	assert.Equal(t, uint32(9), s.Stack.ServingCell.PCI)
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nsteps: [{action: tick}]\nassertions: [{type: trace_count}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nsteps: [{action: tick}]\nassertions: [{type: trace_count}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: n\ndescription: d\nassertions: [{type: trace_count}]\n",
			wantErr: "steps list is required",
		},
		{
			name:    "no assertions",
			yaml:    "name: n\ndescription: d\nsteps: [{action: tick}]\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "unknown field",
			yaml:    "name: n\ndescription: d\nstep: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "unknown action",
			yaml:    "name: n\ndescription: d\nsteps: [{action: handover}]\nassertions: [{type: trace_count}]\n",
			wantErr: `unknown action "handover"`,
		},
		{
			name:    "bad cause",
			yaml:    "name: n\ndescription: d\nsteps: [{action: connection_request, cause: mo-Fax}]\nassertions: [{type: trace_count}]\n",
			wantErr: `unknown establishment cause "mo-Fax"`,
		},
		{
			name:    "bad initiator",
			yaml:    "name: n\ndescription: d\nsteps: [{action: reconfiguration, initiator: lte}]\nassertions: [{type: trace_count}]\n",
			wantErr: `unknown reconfiguration initiator "lte"`,
		},
		{
			name:    "setup without config",
			yaml:    "name: n\ndescription: d\nsteps: [{action: setup}]\nassertions: [{type: trace_count}]\n",
			wantErr: "setup requires radio_bearer and cell_group",
		},
		{
			name:    "found without cell",
			yaml:    "name: n\ndescription: d\nsteps: [{action: cell_select, found: true}]\nassertions: [{type: trace_count}]\n",
			wantErr: "cell is required",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nsteps: [{action: tick}]\nassertions: [{type: state_machine}]\n",
			wantErr: `unknown assertion type "state_machine"`,
		},
		{
			name:    "bad order ref",
			yaml:    "name: n\ndescription: d\nsteps: [{action: tick}]\nassertions: [{type: trace_order, records: [setup_request]}]\n",
			wantErr: "must be kind:type",
		},
		{
			name:    "invalid stack",
			yaml:    "name: n\ndescription: d\nstack: {carrier: {pci: 4000}}\nsteps: [{action: tick}]\nassertions: [{type: trace_count}]\n",
			wantErr: "stack.carrier.pci 4000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestDiscoverScenarios(t *testing.T) {
	files, err := DiscoverScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "scenarios", "cancel_connection_request.yaml"),
		filepath.Join("testdata", "scenarios", "establish_connection.yaml"),
		filepath.Join("testdata", "scenarios", "reconfiguration_apply_failure.yaml"),
	}, files)

	single := filepath.Join("testdata", "scenarios", "establish_connection.yaml")
	files, err = DiscoverScenarios(single)
	require.NoError(t, err)
	assert.Equal(t, []string{single}, files)

	empty := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(empty, "notes.txt"), nil, 0o644))
	_, err = DiscoverScenarios(empty)
	assert.Error(t, err)
}
