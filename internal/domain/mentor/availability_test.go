package mentor

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
	"github.com/alem-hub/mentorship-hub/pkg/timeutil"
)

var almaty = timeutil.AlmatyTZ

func wednesdayAfternoon() []WeeklyWindow {
	return []WeeklyWindow{{Weekday: time.Wednesday, StartTime: "14:00", EndTime: "16:00"}}
}

func TestWeeklyWindowValidate(t *testing.T) {
	tests := []struct {
		name   string
		window WeeklyWindow
		ok     bool
	}{
		{"regular", WeeklyWindow{Weekday: time.Monday, StartTime: "09:00", EndTime: "12:30"}, true},
		{"until midnight", WeeklyWindow{Weekday: time.Friday, StartTime: "22:00", EndTime: "00:00"}, true},
		{"inverted", WeeklyWindow{Weekday: time.Monday, StartTime: "12:00", EndTime: "09:00"}, false},
		{"empty", WeeklyWindow{Weekday: time.Monday, StartTime: "10:00", EndTime: "10:00"}, false},
		{"bad clock", WeeklyWindow{Weekday: time.Monday, StartTime: "9am", EndTime: "10:00"}, false},
		{"bad weekday", WeeklyWindow{Weekday: 7, StartTime: "09:00", EndTime: "10:00"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.window.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, shared.ErrInvalidAvailability)
		})
	}
}

func TestExpandSlotsSplitsWindows(t *testing.T) {
	from := time.Date(2025, 11, 3, 0, 0, 0, 0, almaty) // Monday
	slots := ExpandSlots(ExpandParams{
		Windows:  wednesdayAfternoon(),
		Duration: 30 * time.Minute,
		Location: almaty,
		From:     from,
		To:       from.AddDate(0, 0, 7),
	})

	require.Len(t, slots, 4)
	starts := []string{"14:00", "14:30", "15:00", "15:30"}
	for i, s := range slots {
		assert.Equal(t, "2025-11-05", s.Date)
		assert.Equal(t, starts[i], s.StartTime)
		assert.Equal(t, 30*time.Minute, s.EndsAt.Sub(s.StartsAt))
	}
	assert.Equal(t, time.Date(2025, 11, 5, 9, 0, 0, 0, time.UTC), slots[0].StartsAt)
	assert.Equal(t, "16:00", slots[3].EndTime)
}

func TestExpandSlotsDropsShortTail(t *testing.T) {
	from := time.Date(2025, 11, 3, 0, 0, 0, 0, almaty)
	slots := ExpandSlots(ExpandParams{
		Windows:  []WeeklyWindow{{Weekday: time.Monday, StartTime: "10:00", EndTime: "11:45"}},
		Duration: time.Hour,
		Location: almaty,
		From:     from,
		To:       from.AddDate(0, 0, 1),
	})
	require.Len(t, slots, 1)
	assert.Equal(t, "10:00", slots[0].StartTime)
	assert.Equal(t, "11:00", slots[0].EndTime)
}

func TestExpandSlotsRangeAndBusy(t *testing.T) {
	from := time.Date(2025, 11, 5, 14, 30, 0, 0, almaty)
	busyStart := time.Date(2025, 11, 5, 15, 0, 0, 0, almaty)

	slots := ExpandSlots(ExpandParams{
		Windows:  wednesdayAfternoon(),
		Duration: 30 * time.Minute,
		Location: almaty,
		From:     from,
		To:       from.AddDate(0, 0, 8),
		Busy:     []Interval{{Start: busyStart, End: busyStart.Add(30 * time.Minute)}},
	})

	var got []string
	for _, s := range slots {
		got = append(got, s.Date+" "+s.StartTime)
	}
	assert.Equal(t, []string{
		"2025-11-05 14:30",
		"2025-11-05 15:30",
		"2025-11-12 14:00",
		"2025-11-12 14:30",
		"2025-11-12 15:00",
		"2025-11-12 15:30",
	}, got)
}

func TestExpandSlotsDeduplicatesOverlappingWindows(t *testing.T) {
	from := time.Date(2025, 11, 3, 0, 0, 0, 0, almaty)
	slots := ExpandSlots(ExpandParams{
		Windows: []WeeklyWindow{
			{Weekday: time.Wednesday, StartTime: "14:00", EndTime: "15:00"},
			{Weekday: time.Wednesday, StartTime: "14:00", EndTime: "16:00"},
		},
		Duration: 30 * time.Minute,
		Location: almaty,
		From:     from,
		To:       from.AddDate(0, 0, 7),
	})
	assert.Len(t, slots, 4)
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].StartsAt.Before(slots[i].StartsAt))
	}
}

func TestExpandSlotsEmptyInputs(t *testing.T) {
	from := time.Date(2025, 11, 3, 0, 0, 0, 0, almaty)
	assert.Empty(t, ExpandSlots(ExpandParams{Location: almaty, From: from, To: from.AddDate(0, 0, 7)}))
	assert.Empty(t, ExpandSlots(ExpandParams{Windows: wednesdayAfternoon(), From: from, To: from}))
	assert.Empty(t, GroupByDate(nil))
	assert.NotNil(t, GroupByDate(nil))
}

func TestExpandSlotsKeepsWallClockAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// Clocks move forward on Sunday 2025-03-30.
	from := time.Date(2025, 3, 27, 0, 0, 0, 0, berlin)
	windows := []WeeklyWindow{
		{Weekday: time.Friday, StartTime: "10:00", EndTime: "11:00"},
		{Weekday: time.Monday, StartTime: "10:00", EndTime: "11:00"},
	}
	slots := ExpandSlots(ExpandParams{
		Windows:  windows,
		Duration: time.Hour,
		Location: berlin,
		From:     from,
		To:       from.AddDate(0, 0, 7),
	})

	require.Len(t, slots, 2)
	assert.Equal(t, "10:00", slots[0].StartTime)
	assert.Equal(t, "10:00", slots[1].StartTime)
	assert.Equal(t, 9, slots[0].StartsAt.Hour())
	assert.Equal(t, 8, slots[1].StartsAt.Hour())
}

func TestGroupByDate(t *testing.T) {
	from := time.Date(2025, 11, 3, 0, 0, 0, 0, almaty)
	windows := append(wednesdayAfternoon(), WeeklyWindow{Weekday: time.Thursday, StartTime: "09:00", EndTime: "10:00"})
	slots := ExpandSlots(ExpandParams{
		Windows:  windows,
		Duration: 30 * time.Minute,
		Location: almaty,
		From:     from,
		To:       from.AddDate(0, 0, 7),
	})

	days := GroupByDate(slots)
	require.Len(t, days, 2)
	assert.Equal(t, "2025-11-05", days[0].Date)
	assert.Len(t, days[0].Slots, 4)
	assert.Equal(t, "2025-11-06", days[1].Date)
	assert.Len(t, days[1].Slots, 2)
}

func TestMatchSlot(t *testing.T) {
	p := ExpandParams{Windows: wednesdayAfternoon(), Duration: 30 * time.Minute, Location: almaty}

	slot, ok := MatchSlot(p, time.Date(2025, 11, 5, 14, 30, 0, 0, almaty))
	require.True(t, ok)
	assert.Equal(t, "14:30", slot.StartTime)

	_, ok = MatchSlot(p, time.Date(2025, 11, 5, 14, 15, 0, 0, almaty))
	assert.False(t, ok, "off-grid start")

	_, ok = MatchSlot(p, time.Date(2025, 11, 6, 14, 0, 0, 0, almaty))
	assert.False(t, ok, "wrong weekday")

	_, ok = MatchSlot(p, time.Date(2025, 11, 5, 16, 0, 0, 0, almaty))
	assert.False(t, ok, "window end")
}
