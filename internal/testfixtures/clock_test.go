package testfixtures

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	assert.True(t, clock.Now().Equal(ReferenceTime()))
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2024, time.March, 14, 9, 26, 0, 0, time.UTC)
	clock := NewClock(start)

	updated := clock.Advance(90 * time.Minute)
	assert.True(t, updated.Equal(start.Add(90*time.Minute)))

	clock.Set(start.Add(2 * time.Hour))
	assert.True(t, clock.Now().Equal(start.Add(2*time.Hour)))
}

func TestClockNowFunc(t *testing.T) {
	clock := NewClock(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	nowFn := clock.NowFunc()

	clock.Advance(time.Minute)
	assert.True(t, nowFn().Equal(clock.Now()))

	var nilClock *Clock
	assert.NotNil(t, nilClock.NowFunc())
}
