package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock_DefaultsToEpoch(t *testing.T) {
	assert.Equal(t, Epoch, NewManualClock(time.Time{}).Now())
}

func TestManualClock_StartsAtGivenTime(t *testing.T) {
	start := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, start, NewManualClock(start).Now())
}

func TestManualClock_Advance(t *testing.T) {
	c := NewManualClock(Epoch)

	assert.Equal(t, Epoch.Add(25*time.Hour), c.Advance(25*time.Hour))
	assert.Equal(t, Epoch.Add(25*time.Hour), c.Now())

	// Never backwards.
	c.Advance(-time.Hour)
	assert.Equal(t, Epoch.Add(25*time.Hour), c.Now())
}

func TestManualClock_Set(t *testing.T) {
	c := NewManualClock(Epoch)

	c.Set(Epoch.Add(time.Hour))
	assert.Equal(t, Epoch.Add(time.Hour), c.Now())

	c.Set(Epoch)
	assert.Equal(t, Epoch.Add(time.Hour), c.Now(), "Set must not move the clock backwards")
}

func TestManualClock_ThreadSafe(t *testing.T) {
	c := NewManualClock(Epoch)
	const goroutines = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
			_ = c.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(goroutines*time.Second), c.Now())
}
