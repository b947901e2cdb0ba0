package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epochsFile = "../epoch/testdata/epochs.cue"

func TestEpochValidate(t *testing.T) {
	out, _, err := execute(t, "epoch", "validate", epochsFile)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+epochsFile+": 2 epoch(s)")
	assert.Contains(t, out, "genesis from 2020-01-01T00:00:00Z: 631272015026578400..631272015026578450")
	assert.Contains(t, out, "second from 2030-01-01T00:00:00Z: 1..1000")
}

func TestEpochValidate_LandRelease(t *testing.T) {
	tests := []struct {
		name    string
		at      string
		want    string
		current string
	}{
		{"before second epoch", "2024-06-01T00:00:00Z", "land 42 at 2024-06-01T00:00:00Z: not released", "genesis"},
		{"after second epoch", "2030-06-01T00:00:00Z", "land 42 at 2030-06-01T00:00:00Z: released", "second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "epoch", "validate", epochsFile, "--land", "42", "--at", tt.at)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
			assert.Contains(t, out, "(current epoch "+tt.current+")")
		})
	}
}

func TestEpochValidate_JSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "epoch", "validate", epochsFile,
		"--land", "631272015026578401", "--at", "2021-01-01T00:00:00Z")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   EpochSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Epochs, 2)
	assert.Equal(t, "genesis", resp.Data.Epochs[0].Name)
	require.NotNil(t, resp.Data.Released)
	assert.True(t, *resp.Data.Released)
	assert.Equal(t, "genesis", resp.Data.Current)
}

func TestEpochValidate_InvalidSchedule(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad.cue")
	src := `epochs: [{
	name:  "inverted"
	start: "2020-01-01T00:00:00Z"
	ranges: [{from: 10, to: 1}]
}]
`
	require.NoError(t, os.WriteFile(file, []byte(src), 0o644))

	out, _, err := execute(t, "epoch", "validate", file)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_SCHEDULE]")
}

func TestEpochValidate_InvalidScheduleJSON(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad.cue")
	require.NoError(t, os.WriteFile(file, []byte(`epochs: "not a list"`), 0o644))

	out, _, err := execute(t, "--format", "json", "epoch", "validate", file)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSchedule, resp.Error.Code)
}

func TestEpochValidate_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"epoch", "validate", "/nonexistent/epochs.cue"}},
		{"bad instant", []string{"epoch", "validate", epochsFile, "--land", "1", "--at", "tomorrow"}},
		{"bad land", []string{"epoch", "validate", epochsFile, "--land", "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}
