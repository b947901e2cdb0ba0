package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return scenario
}

func TestScenarios_Golden(t *testing.T) {
	files, err := FindScenarioFiles(filepath.Join("testdata", "scenarios"), "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario := loadTestScenario(t, "auction_outbid_redeem")

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_UnexpectedOutcomeFails(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: low_bid
description: "expects success where the bid is too low"
setup:
  - action: mint
    args: { to: alice, amount: "1" }
  - action: approve
    args: { owner: alice, amount: "1" }
flow:
  - invoke: ParticipateInAuction
    caller: alice
    args: { land_id: "1", amount: "1" }
assertions:
  - type: journal_count
    count: 1
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "outcome INSUFFICIENT_BID, want Success")
}

func TestRun_ResultMismatchFails(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_owner
description: "expects the wrong owner in the result"
setup:
  - action: mint
    args: { to: alice, amount: "10e18" }
  - action: approve
    args: { owner: alice, amount: "10e18" }
flow:
  - invoke: ParticipateInAuction
    caller: alice
    args: { land_id: "1", amount: "10e18" }
    expect:
      outcome: Success
      result: { owner: bob }
assertions:
  - type: active_count
    count: 1
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "does not contain")
}

func TestRun_ConfigOverrides(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: short_auction
description: "custom opening bid and duration"
config:
  initial_bid: "5"
  auction_duration: 1h
  owner: admin
setup:
  - action: mint
    args: { to: alice, amount: "5" }
  - action: approve
    args: { owner: alice, amount: "5" }
flow:
  - invoke: ParticipateInAuction
    caller: alice
    args: { land_id: "1", amount: "5" }
  - advance: 1h
  - invoke: RedeemWonLand
    caller: alice
    args: { land_id: "1" }
  - invoke: Pause
    caller: admin
assertions:
  - type: land
    land_id: "1"
    expect: { state: Redeemed, paid: "5", cashback_amount: "4" }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_SetupFailureIsAnError(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: bad_setup
description: "approving a deed nobody holds"
setup:
  - action: approve_deed
    args: { owner: alice, land_id: "1" }
flow:
  - advance: 1h
assertions:
  - type: journal_count
    count: 0
`))
	require.NoError(t, err)

	_, err = Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0")
}

func TestRunDir(t *testing.T) {
	suite, err := RunDir(filepath.Join("testdata", "scenarios"), "*cashback*")
	require.NoError(t, err)
	assert.Equal(t, 1, suite.Total)
	assert.Equal(t, 1, suite.Passed)
	assert.Empty(t, suite.Failures)
}

func TestRunDir_ReportsLoadFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.yaml"), "name: broken\n")

	suite, err := RunDir(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 1, suite.Failed)
	require.Len(t, suite.Failures, 1)
	assert.True(t, strings.HasPrefix(suite.Failures[0].Error, "failed to load scenario"))
}
