package epoch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/landledger/internal/ledger"
)

var (
	jan2020 = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	jan2030 = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
)

func TestAllowAll(t *testing.T) {
	assert.True(t, AllowAll.Released(0, time.Time{}))
	assert.True(t, AllowAll.Released(631272015026578499, jan2030))
}

func TestPolicyFunc(t *testing.T) {
	even := PolicyFunc(func(id ledger.LandID, _ time.Time) bool { return id%2 == 0 })
	assert.True(t, even.Released(2, jan2020))
	assert.False(t, even.Released(3, jan2020))
}

func TestSchedule_CumulativeRelease(t *testing.T) {
	s, err := NewSchedule([]Epoch{
		{Name: "one", Start: jan2020, Ranges: []Range{{From: 10, To: 20}}},
		{Name: "two", Start: jan2030, Ranges: []Range{{From: 30, To: 40}}},
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		id   ledger.LandID
		now  time.Time
		want bool
	}{
		{"before any epoch", 10, jan2020.Add(-time.Second), false},
		{"first epoch lower bound", 10, jan2020, true},
		{"first epoch upper bound", 20, jan2020, true},
		{"outside first epoch", 21, jan2020, false},
		{"second epoch not started", 30, jan2030.Add(-time.Nanosecond), false},
		{"second epoch started", 35, jan2030, true},
		{"first epoch still released later", 15, jan2030.Add(time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Released(tt.id, tt.now))
		})
	}
}

func TestSchedule_Current(t *testing.T) {
	s, err := NewSchedule([]Epoch{
		{Name: "one", Start: jan2020, Ranges: []Range{{From: 1, To: 1}}},
		{Name: "two", Start: jan2030, Ranges: []Range{{From: 2, To: 2}}},
	})
	require.NoError(t, err)

	_, ok := s.Current(jan2020.Add(-time.Hour))
	assert.False(t, ok)

	ep, ok := s.Current(jan2030.Add(-time.Hour))
	require.True(t, ok)
	assert.Equal(t, "one", ep.Name)

	ep, ok = s.Current(jan2030)
	require.True(t, ok)
	assert.Equal(t, "two", ep.Name)
}

func TestNewSchedule_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		epochs []Epoch
		field  string
	}{
		{
			"inverted range",
			[]Epoch{{Name: "a", Start: jan2020, Ranges: []Range{{From: 5, To: 4}}}},
			"epochs[0].ranges[0]",
		},
		{
			"missing name",
			[]Epoch{{Start: jan2020, Ranges: []Range{{From: 1, To: 2}}}},
			"epochs[0].name",
		},
		{
			"no ranges",
			[]Epoch{{Name: "a", Start: jan2020}},
			"epochs[0].ranges",
		},
		{
			"starts not increasing",
			[]Epoch{
				{Name: "a", Start: jan2030, Ranges: []Range{{From: 1, To: 2}}},
				{Name: "b", Start: jan2020, Ranges: []Range{{From: 3, To: 4}}},
			},
			"epochs[1].start",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchedule(tt.epochs)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestSchedule_EpochsIsACopy(t *testing.T) {
	s, err := NewSchedule([]Epoch{{Name: "a", Start: jan2020, Ranges: []Range{{From: 1, To: 2}}}})
	require.NoError(t, err)

	eps := s.Epochs()
	eps[0].Name = "mutated"
	assert.Equal(t, "a", s.Epochs()[0].Name)
}
