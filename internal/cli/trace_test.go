package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceMissingDatabaseFlag(t *testing.T) {
	_, _, err := execute(t, "trace", "--land", "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTraceNonExistentDatabase(t *testing.T) {
	_, _, err := execute(t, "trace", "--db", "/nonexistent/path/ledger.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceInvalidLand(t *testing.T) {
	_, _, err := execute(t, "trace", "--db", emptyDatabase(t), "--land", "forty-two")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceEmptyJournal(t *testing.T) {
	out, _, err := execute(t, "trace", "--db", emptyDatabase(t))
	require.NoError(t, err)
	assert.Contains(t, out, "(no operations)")
	assert.Contains(t, out, "Operations: 0")
}

func TestTraceTimeline(t *testing.T) {
	db := seedHistory(t)

	out, _, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "[1] ParticipateInAuction by alice -> Success")
	assert.Contains(t, out, "[3] ParticipateInAuction by bob -> INSUFFICIENT_BID")
	assert.Contains(t, out, "[11] BuyLand by alice -> Success")
	assert.Contains(t, out, "Operations: 6")
	assert.Contains(t, out, "Failed:     1")
}

func TestTraceVerbose(t *testing.T) {
	db := seedHistory(t)

	out, _, err := execute(t, "-v", "trace", "--db", db, "--operation", "RedeemWonLand")
	require.NoError(t, err)
	assert.Contains(t, out, "[7] RedeemWonLand by bob -> Success")
	assert.Contains(t, out, "At:     2024-01-02T01:00:00Z")
	assert.Contains(t, out, "Args:   {land_id=42}")
	assert.Contains(t, out, "Tx:     tx-4")
	assert.NotContains(t, out, "ParticipateInAuction")
}

func TestTraceJSON(t *testing.T) {
	db := seedHistory(t)

	out, _, err := execute(t, "--format", "json", "trace", "--db", db, "--land", "42", "--operation", "ParticipateInAuction")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "42", resp.Data.Land)
	require.Len(t, resp.Data.Timeline, 3)

	first := resp.Data.Timeline[0]
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, "alice", first.Caller)
	assert.Equal(t, "2024-01-01T00:00:00Z", first.At)
	assert.Equal(t, map[string]any{"land_id": "42", "amount": "10000000000000000000"}, first.Args)
	assert.Equal(t, "alice", first.Result["owner"])
	assert.NotEmpty(t, first.InvocationID)
	assert.NotEmpty(t, first.CompletionID)

	failed := resp.Data.Timeline[1]
	assert.Equal(t, "INSUFFICIENT_BID", failed.Outcome)
	assert.NotEmpty(t, failed.Message)
	assert.Empty(t, failed.Result)

	assert.Equal(t, TraceStats{
		Total:     3,
		Succeeded: 2,
		Failed:    1,
		Outcomes:  map[string]int{"Success": 2, "INSUFFICIENT_BID": 1},
	}, resp.Data.Stats)
}

func TestTraceOtherLandIsEmpty(t *testing.T) {
	db := seedHistory(t)

	out, _, err := execute(t, "trace", "--db", db, "--land", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Trace for land 7")
	assert.Contains(t, out, "(no operations)")
}

func TestFormatArgs(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"empty", map[string]any{}, "{}"},
		{"sorted keys", map[string]any{"price": "5", "land_id": "7", "on_sale": true}, "{land_id=7, on_sale=true, price=5}"},
		{"nested", map[string]any{"a": map[string]any{"z": int64(1), "b": []any{"x", "y"}}}, "{a={b=[x, y], z=1}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatArgs(tt.args))
		})
	}
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "tx-1", truncateID("tx-1"))
	assert.Equal(t, "01234567...89abcdef", truncateID("0123456789abcdef0123456789abcdef"))
}
