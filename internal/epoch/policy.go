package epoch

import (
	"fmt"
	"slices"
	"time"

	"github.com/roach88/landledger/internal/ledger"
)

// Policy reports whether a parcel may be auctioned at now.
type Policy interface {
	Released(id ledger.LandID, now time.Time) bool
}

// PolicyFunc adapts an ordinary function to Policy.
type PolicyFunc func(id ledger.LandID, now time.Time) bool

// Released calls f(id, now).
func (f PolicyFunc) Released(id ledger.LandID, now time.Time) bool { return f(id, now) }

// AllowAll releases every parcel at every time.
var AllowAll Policy = PolicyFunc(func(ledger.LandID, time.Time) bool { return true })

// Range is an inclusive span of parcel ids.
type Range struct {
	From ledger.LandID `json:"from"`
	To   ledger.LandID `json:"to"`
}

// Contains reports whether id lies within the range.
func (r Range) Contains(id ledger.LandID) bool {
	return id >= r.From && id <= r.To
}

// Epoch opens its ranges at Start.
type Epoch struct {
	Name   string    `json:"name"`
	Start  time.Time `json:"start"`
	Ranges []Range   `json:"ranges"`
}

// Schedule is an ordered list of epochs with strictly increasing starts.
type Schedule struct {
	epochs []Epoch
}

// NewSchedule validates epochs and builds a Schedule.
func NewSchedule(epochs []Epoch) (*Schedule, error) {
	for i, ep := range epochs {
		if ep.Name == "" {
			return nil, &CompileError{Field: fmt.Sprintf("epochs[%d].name", i), Message: "name is required"}
		}
		if len(ep.Ranges) == 0 {
			return nil, &CompileError{Field: fmt.Sprintf("epochs[%d].ranges", i), Message: "at least one range is required"}
		}
		for j, r := range ep.Ranges {
			if r.From > r.To {
				return nil, &CompileError{
					Field:   fmt.Sprintf("epochs[%d].ranges[%d]", i, j),
					Message: fmt.Sprintf("from %d is greater than to %d", r.From, r.To),
				}
			}
		}
		if i > 0 && !ep.Start.After(epochs[i-1].Start) {
			return nil, &CompileError{
				Field:   fmt.Sprintf("epochs[%d].start", i),
				Message: fmt.Sprintf("start %s must be after epoch %q", ep.Start.Format(time.RFC3339), epochs[i-1].Name),
			}
		}
	}
	return &Schedule{epochs: slices.Clone(epochs)}, nil
}

// Released reports whether id falls in a range of any epoch that has
// started at now.
func (s *Schedule) Released(id ledger.LandID, now time.Time) bool {
	for _, ep := range s.epochs {
		if now.Before(ep.Start) {
			break
		}
		for _, r := range ep.Ranges {
			if r.Contains(id) {
				return true
			}
		}
	}
	return false
}

// Current returns the latest epoch that has started at now.
func (s *Schedule) Current(now time.Time) (Epoch, bool) {
	var cur Epoch
	found := false
	for _, ep := range s.epochs {
		if now.Before(ep.Start) {
			break
		}
		cur, found = ep, true
	}
	return cur, found
}

// Epochs returns a copy of the schedule's epochs.
func (s *Schedule) Epochs() []Epoch {
	return slices.Clone(s.epochs)
}
