package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLandCommand(t *testing.T) {
	db := seedHistory(t)

	out, _, err := execute(t, "land", "--db", db, "42")
	require.NoError(t, err)
	assert.Contains(t, out, "Land 42")
	assert.Contains(t, out, "State:       Redeemed")
	assert.Contains(t, out, "Owner:       alice")
	assert.Contains(t, out, "Paid:        20000000000000000000")
	assert.Contains(t, out, "Cashback:    19000000000000000000 (redeemed: false)")
	assert.Contains(t, out, "Sale log:    1 entr(ies)")
	assert.Contains(t, out, "on_sale=true price=30000000000000000000 by bob")
}

func TestLandCommand_JSON(t *testing.T) {
	db := seedHistory(t)

	out, _, err := execute(t, "--format", "json", "land", "--db", db, "42")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   LandReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	land := resp.Data
	assert.Equal(t, "42", land.ID)
	assert.Equal(t, "alice", land.Owner)
	assert.Equal(t, "Redeemed", land.State)
	assert.False(t, land.OnSale)
	assert.Equal(t, "19000000000000000000", land.CashbackAmount)
	assert.False(t, land.RedeemedAt.IsZero())
	require.Len(t, land.Sales, 1)
	assert.Equal(t, "bob", land.Sales[0].Caller)
}

func TestLandCommand_NotFound(t *testing.T) {
	db := seedHistory(t)

	out, _, err := execute(t, "land", "--db", db, "7")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_NOT_FOUND]: no record for land 7")
}

func TestLandCommand_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing db flag", []string{"land", "42"}, "required flag"},
		{"missing database", []string{"land", "--db", "/nonexistent/ledger.db", "42"}, "database not found"},
		{"bad id", []string{"land", "--db", "ledger.db", "x"}, "invalid land id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
