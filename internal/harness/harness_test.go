package harness

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rrcproc/internal/config"
	"github.com/roach88/rrcproc/internal/metric"
	"github.com/roach88/rrcproc/internal/proc"
	"github.com/roach88/rrcproc/internal/store"
	"github.com/roach88/rrcproc/internal/testutil"
)

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return s
}

func runPassing(t *testing.T, yaml string) *Result {
	t.Helper()
	result, err := Run(mustParse(t, yaml))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	return result
}

func findRecord(trace []proc.Record, kind proc.Kind, typ proc.RecordType) (proc.Record, bool) {
	for _, rec := range trace {
		if rec.Kind == kind && rec.Type == typ {
			return rec, true
		}
	}
	return proc.Record{}, false
}

func TestRun_BusyConnectionRequest(t *testing.T) {
	result := runPassing(t, `
name: busy
description: a second request while the first waits for cell selection is rejected
stack: {camped: false}
steps:
  - {action: connection_request, cause: mo-Data, nas: first}
  - action: connection_request
    cause: mo-Data
    nas: second
    expect: {error: BUSY}
assertions:
  - {type: trace_count, kind: setup_request, record: rejected, count: 1}
  - {type: trace_count, kind: setup_request, record: launched, count: 1}
  - type: final_state
    expect:
      active: [setup_request, cell_selection]
`)
	assert.Empty(t, result.Calls.NASCompleted, "running request is untouched")
}

func TestRun_UnexpectedErrorIsReported(t *testing.T) {
	result, err := Run(mustParse(t, `
name: busy_unexpected
description: busy without expectation
stack: {camped: false}
steps:
  - {action: connection_request, cause: mo-Data}
  - {action: connection_request, cause: mo-Data}
assertions:
  - {type: trace_count, record: rejected, count: 1}
`))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[1] connection_request: unexpected error: BUSY")
}

func TestRun_PreconditionFailureResolvesInline(t *testing.T) {
	result := runPassing(t, `
name: no_plmn
description: connection request without a selected PLMN fails in Init
steps:
  - {action: plmn, ok: false}
  - {action: connection_request, cause: mo-Signalling, nas: attach}
assertions:
  - {type: trace_contains, kind: setup_request, record: resolved, cause: init, outcome: error}
  - {type: trace_count, kind: cell_selection, count: 0}
  - type: calls
    expect:
      nas_completed: [false]
      cell_selects: 0
`)
	rec, ok := findRecord(result.Trace, "setup_request", proc.RecordResolved)
	require.True(t, ok)
	assert.Contains(t, rec.Error, "PRECONDITION_FAILED")
	assert.Contains(t, rec.Error, "PLMN not selected")
}

func TestRun_T300ExpiryNotImplemented(t *testing.T) {
	result := runPassing(t, `
name: t300
description: T300 expiry while waiting for RRCSetup
steps:
  - {action: connection_request, cause: mo-Data, nas: attach}
  - {action: timer, timer: T300, expect: {delivered: true}}
assertions:
  - {type: trace_contains, kind: setup_request, record: resolved, cause: "timer_expiry:T300", outcome: error}
  - type: calls
    expect:
      nas_completed: [false]
      setup_requests: [mo-Data]
  - type: final_state
    expect:
      pending_nas: ""
      active: []
`)
	rec, ok := findRecord(result.Trace, "setup_request", proc.RecordResolved)
	require.True(t, ok)
	assert.Contains(t, rec.Error, "NOT_IMPLEMENTED")
}

func TestRun_TimerWithoutSubscriberIgnored(t *testing.T) {
	runPassing(t, `
name: stray_timer
description: timer expiry with nothing waiting
steps:
  - {action: timer, timer: T300, expect: {delivered: false}}
  - {action: config_complete, expect: {delivered: false}}
assertions:
  - {type: trace_count, record: ignored, count: 2}
  - {type: runs, runs: []}
`)
}

func TestRun_ReconfigurationSuccess(t *testing.T) {
	result := runPassing(t, `
name: reconf_ok
description: secondary cell group, SK counter and radio bearers applied in order
steps:
  - action: reconfiguration
    initiator: nr
    cell_group: {cell_group_id: 1, rlc_bearers: [2]}
    sk_counter: 5
    radio_bearer: {drbs: [1]}
  - {action: config_complete, ok: true, expect: {delivered: true}}
assertions:
  - {type: trace_contains, kind: reconfiguration, record: resolved, cause: config_complete, outcome: success}
  - type: calls
    expect:
      configurator: [cell_group, sk_counter, radio_bearer]
      eutra_completed: [true]
      eutra_failures: 0
  - type: runs
    runs:
      - {kind: reconfiguration, outcome: success}
`)
	assert.Equal(t, "idle", result.FinalState.State)
}

func TestRun_ReconfigurationLowerLayerFailure(t *testing.T) {
	runPassing(t, `
name: reconf_nok
description: lower layers reject the reconfiguration
steps:
  - {action: reconfiguration, initiator: mcg_srb1, radio_bearer: {srbs: [2]}}
  - {action: config_complete, ok: false}
assertions:
  - {type: trace_contains, kind: reconfiguration, record: resolved, outcome: error}
  - type: calls
    expect:
      eutra_failures: 1
      eutra_completed: []
`)
}

func TestRun_ReconfigurationDecodeFailure(t *testing.T) {
	result := runPassing(t, `
name: reconf_decode
description: garbage secondary cell group
steps:
  - {action: reconfiguration, initiator: scg_srb3, raw_cell_group: "not json", sk_counter: 1}
assertions:
  - {type: trace_contains, kind: reconfiguration, record: resolved, cause: init, outcome: error}
  - type: calls
    expect:
      configurator: []
      eutra_failures: 0
`)
	rec, ok := findRecord(result.Trace, "reconfiguration", proc.RecordResolved)
	require.True(t, ok)
	assert.Contains(t, rec.Error, "DECODE_FAILED")
}

func TestRun_ReconfigurationMissingExtension(t *testing.T) {
	result := runPassing(t, `
name: reconf_no_ext
description: secondary cell group without the critical extension
steps:
  - action: reconfiguration
    initiator: mcg_srb1
    critical_extension: false
    cell_group: {cell_group_id: 1}
assertions:
  - {type: trace_contains, kind: reconfiguration, record: resolved, outcome: error}
  - type: calls
    expect:
      configurator: []
      eutra_failures: 1
`)
	rec, ok := findRecord(result.Trace, "reconfiguration", proc.RecordResolved)
	require.True(t, ok)
	assert.Contains(t, rec.Error, "PRECONDITION_FAILED")
}

func TestRun_SetupConfigApplyFailure(t *testing.T) {
	runPassing(t, `
name: setup_apply
description: connection setup fails when the cell group is rejected
lower_layers: {fail_cell_group: true}
steps:
  - {action: connection_request, cause: mo-Data, nas: attach}
  - action: setup
    radio_bearer: {srbs: [1]}
    cell_group: {cell_group_id: 0}
assertions:
  - {type: trace_contains, kind: connection_setup, record: resolved, cause: init, outcome: error}
  - {type: trace_contains, kind: setup_request, record: resolved, outcome: success}
  - type: final_state
    expect:
      state: idle
  - type: calls
    expect:
      configurator: [radio_bearer, cell_group]
      setup_completes: []
`)
}

func TestRun_PHYConfigRejected(t *testing.T) {
	runPassing(t, `
name: phy_reject
description: serving cell configuration rejected by PHY
lower_layers: {reject_phy_config: true}
steps:
  - {action: connection_request, cause: emergency, nas: sos}
assertions:
  - {type: trace_contains, kind: setup_request, record: resolved, cause: "resolved:cell_selection", outcome: error}
  - type: calls
    expect:
      phy_configs: 1
      setup_requests: []
      nas_completed: [false]
`)
}

func TestRun_ManualTicksDeferWork(t *testing.T) {
	const base = `
name: manual
description: deferred delivery waits for an explicit tick
manual_ticks: true
steps:
  - {action: connection_request, cause: mo-Data, nas: attach}
%s
assertions:
  - {type: trace_count, record: launched, count: 2}
`
	withoutTick := runPassing(t, strings.Replace(base, "%s", "", 1))
	_, notified := findRecord(withoutTick.Trace, "setup_request", proc.RecordNotified)
	assert.False(t, notified)
	assert.Empty(t, withoutTick.Calls.SetupRequests)

	withTick := runPassing(t, strings.Replace(base, "%s", "  - {action: tick}", 1))
	_, notified = findRecord(withTick.Trace, "setup_request", proc.RecordNotified)
	assert.True(t, notified)
	assert.Equal(t, []string{"mo-Data"}, withTick.Calls.SetupRequests)
}

func TestRun_FailedAssertionReported(t *testing.T) {
	result, err := Run(mustParse(t, `
name: wrong
description: expects the wrong final state
steps:
  - {action: tick}
assertions:
  - type: final_state
    expect:
      state: connected
`))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: final_state")
	assert.Contains(t, result.Errors[0], `"connected"`)
	assert.Contains(t, result.Errors[0], `"idle"`)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "establish_connection.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.Digest, second.Digest)
	assert.Len(t, first.Digest, 64)
}

func TestRun_WithStorePersistsTrace(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	defer st.Close()

	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "establish_connection.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario, WithStore(st, "0190a000-0000-7000-8000-0000000000aa"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "0190a000-0000-7000-8000-0000000000aa", result.SessionID)

	persisted, err := st.ReadSession(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, result.Trace, persisted)

	sessions, err := st.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "establish_connection", sessions[0].Name)
	assert.Len(t, sessions[0].ConfigDigest, 64)
}

func TestRun_WithMetricsObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := metric.New(reg)
	require.NoError(t, err)

	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "establish_connection.yaml"))
	require.NoError(t, err)

	_, err = Run(scenario, WithObservers(obs))
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	var launches float64
	for _, mf := range families {
		if mf.GetName() == "rrcproc_procedure_launches_total" {
			for _, m := range mf.GetMetric() {
				launches += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(3), launches)
}

func TestRun_ValidatesScenarioBuiltInCode(t *testing.T) {
	build := func(steps ...Step) *Scenario {
		return &Scenario{
			Name:        "in_code",
			Description: "scenario assembled without ParseScenario",
			Stack:       config.Default().Stack,
			Steps:       steps,
			Assertions:  []Assertion{{Type: AssertTraceCount, Kind: "setup_request", Record: "launched", Count: 1}},
		}
	}

	tests := []struct {
		name     string
		scenario *Scenario
		wantErr  string
	}{
		{"nil", nil, "invalid scenario"},
		{"unknown cause", build(Step{Action: ActionConnectionRequest, Cause: "bogus"}), "steps[0]"},
		{"setup without configs", build(Step{Action: ActionSetup}), "setup requires radio_bearer and cell_group"},
		{"plmn without ok", build(Step{Action: ActionPLMN}), "ok is required for plmn"},
		{"unknown initiator", build(Step{Action: ActionReconfiguration, Initiator: "lte"}), "steps[0]"},
		{"zero stack", &Scenario{Name: "n", Description: "d", Steps: []Step{{Action: ActionTick}}, Assertions: []Assertion{{Type: AssertTraceCount, Count: 0}}}, "stack"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result *Result
			var err error
			require.NotPanics(t, func() { result, err = Run(tt.scenario) })
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	result, err := Run(build(Step{Action: ActionConnectionRequest, Cause: "mo-Data", NAS: "attach"}))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_WithLogger(t *testing.T) {
	logger, buf := testutil.CaptureLogger()

	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "establish_connection.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario, WithLogger(logger))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	out := buf.String()
	assert.Contains(t, out, "executing step")
	assert.Contains(t, out, "procedure launched")
	assert.Contains(t, out, "kind=setup_request")
}

func TestRunFile(t *testing.T) {
	_, result, err := RunFile(filepath.Join("testdata", "scenarios", "cancel_connection_request.yaml"))
	require.NoError(t, err)
	assert.True(t, result.Pass)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
name: bad
description: fails
steps:
  - {action: tick}
assertions:
  - {type: trace_count, record: launched, count: 1}
`), 0o644))

	scenario, result, err := RunFile(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrScenarioFailed))
	assert.Equal(t, "bad", scenario.Name)
	require.NotNil(t, result)
	assert.False(t, result.Pass)
}

func TestRun_RejectsReusedSession(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "establish_connection.yaml"))
	require.NoError(t, err)

	_, err = Run(scenario, WithStore(st, "session-1"))
	require.NoError(t, err)

	_, err = Run(scenario, WithStore(st, "session-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session session-1 already holds records up to seq 13")
}

func TestRun_WithRegistryOptions(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "establish_connection.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario, WithRegistryOptions(
		proc.WithRunIDGenerator(proc.NewSequentialGenerator("custom")),
		proc.WithMaxRepeats(1),
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "custom-1", result.Trace[0].RunID)
}
