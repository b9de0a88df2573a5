package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rrcproc/internal/codec"
	"github.com/roach88/rrcproc/internal/proc"
)

// TraceSnapshot is the golden form of a scenario run.
type TraceSnapshot struct {
	ScenarioName string        `json:"scenario_name"`
	Trace        []proc.Record `json:"trace"`
	FinalState   FinalState    `json:"final_state"`
	Calls        Calls         `json:"calls"`
}

// Snapshot builds the golden snapshot of a result.
func Snapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		FinalState:   result.FinalState,
		Calls:        result.Calls,
	}
}

// MarshalSnapshot serializes a snapshot as canonical JSON plus a
// trailing newline.
func MarshalSnapshot(s TraceSnapshot) ([]byte, error) {
	data, err := codec.MarshalCanonical(s)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(Snapshot(scenarioName, result))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
