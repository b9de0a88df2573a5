package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/rrcproc/internal/codec"
	"github.com/roach88/rrcproc/internal/proc"
	"github.com/roach88/rrcproc/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Trace    []proc.Record // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, rec := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", rec.Seq, formatRecord(rec))
		}
	}

	return buf.String()
}

func formatRecord(rec proc.Record) string {
	s := fmt.Sprintf("%s %s", rec.Kind, rec.Type)
	if rec.Cause != "" {
		s += " cause=" + rec.Cause
	}
	if rec.Outcome != "" {
		s += " outcome=" + rec.Outcome
	}
	return s
}

// recordMatches applies the non-empty selectors of a to rec.
func recordMatches(rec proc.Record, a Assertion) bool {
	if a.Kind != "" && string(rec.Kind) != a.Kind {
		return false
	}
	if a.Record != "" && string(rec.Type) != a.Record {
		return false
	}
	if a.Cause != "" && rec.Cause != a.Cause {
		return false
	}
	if a.Outcome != "" && rec.Outcome != a.Outcome {
		return false
	}
	return true
}

func describeSelector(a Assertion) string {
	var parts []string
	for _, kv := range [][2]string{{"kind", a.Kind}, {"record", a.Record}, {"cause", a.Cause}, {"outcome", a.Outcome}} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	return strings.Join(parts, " ")
}

// assertTraceContains checks that some record matches the selector.
func assertTraceContains(trace []proc.Record, assertion Assertion) error {
	for _, rec := range trace {
		if recordMatches(rec, assertion) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("record with %s", describeSelector(assertion)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

func splitRecordRef(ref string) (kind, typ string, ok bool) {
	kind, typ, ok = strings.Cut(ref, ":")
	return kind, typ, ok && typ != ""
}

// assertTraceOrder checks that the referenced records appear in order.
// Intervening records are allowed; each reference matches the first
// record after the previous match.
func assertTraceOrder(trace []proc.Record, assertion Assertion) error {
	pos := 0
	for _, ref := range assertion.Records {
		kind, typ, _ := splitRecordRef(ref)

		found := false
		for pos < len(trace) {
			rec := trace[pos]
			pos++
			if string(rec.Kind) == kind && string(rec.Type) == typ {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("records in order: %v", assertion.Records),
				Actual:   fmt.Sprintf("%s not found after earlier records", ref),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks how many records match the selector.
func assertTraceCount(trace []proc.Record, assertion Assertion) error {
	count := 0
	for _, rec := range trace {
		if recordMatches(rec, assertion) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d records with %s", assertion.Count, describeSelector(assertion)),
			Actual:   fmt.Sprintf("%d records", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFields compares the expected keys against actual's JSON fields.
// Values are compared in canonical JSON form, so YAML ints match uint32
// fields and nested maps match structs.
func assertFields(typ string, actual any, expect map[string]any) error {
	raw, err := json.Marshal(actual)
	if err != nil {
		return fmt.Errorf("%s: marshal actual: %w", typ, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("%s: unmarshal actual: %w", typ, err)
	}

	keys := make([]string, 0, len(expect))
	for k := range expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		got, exists := fields[key]
		if !exists {
			// omitempty fields are absent when empty
			got = ""
		}

		want, err := codec.MarshalCanonical(normalizeYAML(expect[key]))
		if err != nil {
			return fmt.Errorf("%s: field %q: %w", typ, key, err)
		}
		have, err := codec.MarshalCanonical(normalizeJSON(got))
		if err != nil {
			return fmt.Errorf("%s: field %q: %w", typ, key, err)
		}

		if string(want) != string(have) {
			return &AssertionError{
				Type:     typ,
				Expected: fmt.Sprintf("field %q = %s", key, want),
				Actual:   fmt.Sprintf("field %q = %s", key, have),
			}
		}
	}
	return nil
}

// normalizeJSON turns float64 numbers from encoding/json back into
// integers; every numeric field of the snapshots is integral.
func normalizeJSON(v any) any {
	switch val := v.(type) {
	case float64:
		return int64(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeJSON(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalizeJSON(e)
		}
		return out
	default:
		return v
	}
}

// normalizeYAML converts yaml.v3 decoded values into JSON-compatible ones.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeYAML(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalizeYAML(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[fmt.Sprint(k)] = normalizeYAML(e)
		}
		return out
	default:
		return v
	}
}

// assertRuns compares the persisted launch summaries of the session.
func assertRuns(ctx context.Context, st *store.Store, sessionID string, assertion Assertion) error {
	runs, err := st.ListRuns(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("runs: %w", err)
	}

	actual := make([]string, len(runs))
	for i, r := range runs {
		actual[i] = fmt.Sprintf("%s:%s", r.Kind, r.Outcome)
	}
	expected := make([]string, len(assertion.Runs))
	for i, r := range assertion.Runs {
		expected[i] = fmt.Sprintf("%s:%s", r.Kind, r.Outcome)
	}

	if strings.Join(actual, ",") != strings.Join(expected, ",") {
		return &AssertionError{
			Type:     AssertRuns,
			Expected: fmt.Sprintf("runs %v", expected),
			Actual:   fmt.Sprintf("runs %v", actual),
		}
	}
	return nil
}

// AssertionContext provides store access for the runs assertion.
type AssertionContext struct {
	Store     *store.Store
	SessionID string
	Ctx       context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFields(AssertFinalState, result.FinalState, assertion.Expect)
		case AssertCalls:
			err = assertFields(AssertCalls, result.Calls, assertion.Expect)
		case AssertRuns:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: runs requires store context", i)
			} else {
				err = assertRuns(actx.Ctx, actx.Store, actx.SessionID, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
