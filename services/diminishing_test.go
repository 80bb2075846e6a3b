package services

import (
	"testing"
	"time"

	"essence-engine/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDiminishing(t *testing.T, enabled bool) *DiminishingReturns {
	t.Helper()
	economy, err := config.LoadEconomy("")
	require.NoError(t, err)
	d, err := DiminishingFromEconomy(enabled, economy)
	require.NoError(t, err)
	return d
}

func TestDiminishingPrimaryFamily(t *testing.T) {
	d := newTestDiminishing(t, true)

	cases := []struct {
		count int64
		want  int64
	}{
		{0, 20}, {4, 20}, {5, 15}, {9, 15}, {10, 10}, {14, 10}, {15, 5}, {100, 5},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, d.Adjust("task_completed", 20, c.count), "count %d", c.count)
	}
}

func TestDiminishingSecondaryFamily(t *testing.T) {
	d := newTestDiminishing(t, true)

	assert.Equal(t, int64(15), d.Adjust("habit_completed", 15, 4))
	assert.Equal(t, int64(11), d.Adjust("habit_completed", 15, 5)) // floor(11.25)
	assert.Equal(t, int64(7), d.Adjust("habit_completed", 15, 10))  // floor(7.5)
	assert.Equal(t, int64(7), d.Adjust("habit_completed", 15, 30))
}

func TestDiminishingDisabledAndUnknownSource(t *testing.T) {
	off := newTestDiminishing(t, false)
	assert.Equal(t, int64(20), off.Adjust("task_completed", 20, 15))

	on := newTestDiminishing(t, true)
	assert.False(t, on.Applies("bonus"))
	assert.Equal(t, int64(20), on.Adjust("bonus", 20, 99))
}

func TestDiminishingRejectsBadTiers(t *testing.T) {
	_, err := NewDiminishingReturns(true, map[string][]DiminishingTier{
		"primary": {{MinCount: 1, Multiplier: 1}},
	}, nil)
	assert.Error(t, err)

	_, err = NewDiminishingReturns(true, map[string][]DiminishingTier{
		"primary": {{MinCount: 0, Multiplier: 1}, {MinCount: 0, Multiplier: 0.5}},
	}, nil)
	assert.Error(t, err)

	_, err = NewDiminishingReturns(true, map[string][]DiminishingTier{
		"primary": {{MinCount: 0, Multiplier: 1.5}},
	}, nil)
	assert.Error(t, err)

	_, err = NewDiminishingReturns(true, map[string][]DiminishingTier{}, map[string]string{"task_completed": "tertiary"})
	assert.Error(t, err)
}

func TestStartOfDay(t *testing.T) {
	now := time.Date(2025, 3, 10, 2, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), StartOfDay(now, time.UTC))

	// 02:30 UTC is 21:30 the previous evening at UTC-5.
	est := time.FixedZone("UTC-5", -5*3600)
	assert.Equal(t, time.Date(2025, 3, 9, 5, 0, 0, 0, time.UTC), StartOfDay(now, est))
}
