package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	r := NewResult()
	r.AddInvocationTrace("ParticipateInAuction", "alice", map[string]any{"land_id": "1", "amount": "10e18"})
	r.AddCompletionTrace("Success", map[string]any{"owner": "alice"})
	r.AddAdvanceTrace("2024-01-02T01:00:00Z")
	r.AddInvocationTrace("RedeemWonLand", "alice", map[string]any{"land_id": "1"})
	r.AddCompletionTrace("Success", nil)
	r.AddInvocationTrace("RedeemCashback", "alice", map[string]any{"land_id": "1"})
	r.AddCompletionTrace("VESTING_NOT_ELAPSED", nil)
	return r.Trace
}

func TestResult_SeqIsTraceOrder(t *testing.T) {
	trace := sampleTrace()
	for i, ev := range trace {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Operation: "ParticipateInAuction", Args: map[string]any{"land_id": "1"}}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Operation: "RedeemWonLand"}))

	err := assertTraceContains(trace, Assertion{Operation: "ParticipateInAuction", Args: map[string]any{"land_id": "2"}})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "ParticipateInAuction by alice")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Operations: []string{"ParticipateInAuction", "RedeemCashback"}}))
	assert.ErrorContains(t, assertTraceOrder(trace, Assertion{Operations: []string{"RedeemCashback", "RedeemWonLand"}}),
		"should be before")
	assert.ErrorContains(t, assertTraceOrder(trace, Assertion{Operations: []string{"BuyLand"}}),
		"missing operation: BuyLand")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Operation: "RedeemWonLand", Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Operation: "BuyLand", Count: 0}))
	assert.ErrorContains(t, assertTraceCount(trace, Assertion{Operation: "RedeemWonLand", Count: 2}), "1 invocations")
}

func TestEvaluateAssertions_StateNeedsContext(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: AssertJournalCount}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires engine context")
}

func TestMatchArgs(t *testing.T) {
	actual := map[string]any{"owner": "alice", "paid": "10", "auction_end": int64(5)}

	assert.True(t, matchArgs(actual, nil))
	assert.True(t, matchArgs(actual, map[string]any{"owner": "alice"}))
	assert.True(t, matchArgs(actual, map[string]any{"auction_end": int64(5)}))
	assert.False(t, matchArgs(actual, map[string]any{"auction_end": 5}), "values must be normalized first")
	assert.False(t, matchArgs(actual, map[string]any{"missing": "x"}))
}

func TestNormalize_RejectsFloats(t *testing.T) {
	got, err := normalize(map[string]any{"n": 5, "s": "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": int64(5), "s": "x"}, got)

	_, err = normalize(map[string]any{"f": 1.5})
	assert.Error(t, err)
}
