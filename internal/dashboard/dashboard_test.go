package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFixtures(t *testing.T) {
	cal, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2025, cal.Year)
	assert.Equal(t, time.March, cal.Month)
	assert.Len(t, cal.Events, 6)
	assert.Len(t, cal.Colleagues, 3)
	assert.Equal(t, "Jane Smith", cal.Colleagues[1].Name)
}

func TestEventsOn(t *testing.T) {
	cal, err := Load()
	require.NoError(t, err)

	events := cal.EventsOn(time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC))
	require.Len(t, events, 2)
	assert.Equal(t, "Quarterly Review", events[0].Title)
	assert.Equal(t, "destructive", events[0].Badge())
	assert.Equal(t, "secondary", events[1].Badge())

	assert.Empty(t, cal.EventsOn(time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC)))
}

func TestMonthGrid(t *testing.T) {
	cal, err := Load()
	require.NoError(t, err)
	selected := cal.ParseDay("2025-03-15")

	weeks := cal.Weeks(selected)
	// March 2025 starts on a Saturday and ends on a Monday.
	require.Len(t, weeks, 6)
	for _, w := range weeks {
		assert.Len(t, w, 7)
	}
	assert.True(t, weeks[0][5].Outside)
	assert.Equal(t, 1, weeks[0][6].Date.Day())
	assert.False(t, weeks[0][6].Outside)

	var found bool
	for _, w := range weeks {
		for _, d := range w {
			if d.Selected {
				found = true
				assert.Equal(t, 15, d.Date.Day())
				require.Len(t, d.Events, 1)
				assert.Equal(t, "dot-social", d.Events[0].Marker())
			}
		}
	}
	assert.True(t, found)
}

func TestParseDayRejectsOtherMonths(t *testing.T) {
	cal, err := Load()
	require.NoError(t, err)
	assert.True(t, cal.ParseDay("2025-04-01").IsZero())
	assert.True(t, cal.ParseDay("garbage").IsZero())
	assert.False(t, cal.ParseDay("2025-03-01").IsZero())
}

func TestParseRejectsBadFixtures(t *testing.T) {
	_, err := parse([]byte("month: March\n"))
	assert.Error(t, err)
	_, err = parse([]byte("month: 2025-03\nevents:\n  - id: 1\n    date: tomorrow\n"))
	assert.Error(t, err)
}
