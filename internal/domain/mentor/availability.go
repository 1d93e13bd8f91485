package mentor

import (
	"fmt"
	"sort"
	"time"

	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
	"github.com/alem-hub/mentorship-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY AVAILABILITY
// ══════════════════════════════════════════════════════════════════════════════

// WeeklyWindow is a recurring availability window, e.g. Wednesday 14:00-17:00.
// Times are wall-clock in the platform timezone.
type WeeklyWindow struct {
	Weekday   time.Weekday `json:"weekday"`
	StartTime string       `json:"start_time"`
	EndTime   string       `json:"end_time"`
}

// Validate checks weekday range and that start is before end.
func (w WeeklyWindow) Validate() error {
	if w.Weekday < time.Sunday || w.Weekday > time.Saturday {
		return fmt.Errorf("%w: weekday %d", shared.ErrInvalidAvailability, w.Weekday)
	}
	start, end, err := w.minutes()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidAvailability, err)
	}
	if start >= end {
		return fmt.Errorf("%w: %s must be before %s", shared.ErrInvalidAvailability, w.StartTime, w.EndTime)
	}
	return nil
}

func (w WeeklyWindow) minutes() (int, int, error) {
	start, err := timeutil.ParseClock(w.StartTime)
	if err != nil {
		return 0, 0, err
	}
	end, err := timeutil.ParseClock(w.EndTime)
	if err != nil {
		return 0, 0, err
	}
	// "24:00" does not parse; allow a window to run until midnight as "00:00".
	if end == 0 && start > 0 {
		end = 24 * 60
	}
	return start, end, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Slots
// ─────────────────────────────────────────────────────────────────────────────

// Slot is a concrete bookable instance of a weekly window. It is computed on
// demand and never stored.
type Slot struct {
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
}

// DaySlots groups the slots of one civil date.
type DaySlots struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}

// Interval is a half-open [Start, End) busy period.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) overlaps(start, end time.Time) bool {
	return i.Start.Before(end) && start.Before(i.End)
}

// ExpandParams describes one slot expansion.
type ExpandParams struct {
	Windows  []WeeklyWindow
	Duration time.Duration
	Location *time.Location

	// From and To bound slot start instants as [From, To).
	From time.Time
	To   time.Time

	// Busy periods remove every slot they intersect.
	Busy []Interval
}

// ExpandSlots turns weekly windows into concrete slots ordered by start time.
// Windows are split into consecutive Duration pieces; a trailing piece shorter
// than Duration is dropped. Overlapping windows never yield duplicate slots.
func ExpandSlots(p ExpandParams) []Slot {
	if len(p.Windows) == 0 || !p.From.Before(p.To) {
		return nil
	}
	loc := p.Location
	if loc == nil {
		loc = timeutil.AlmatyTZ
	}
	step := int(p.Duration / time.Minute)
	if step <= 0 {
		step = int(DefaultSessionDuration / time.Minute)
	}

	seen := make(map[int64]struct{})
	var slots []Slot

	for day := timeutil.StartOfDay(p.From, loc); day.Before(p.To); day = day.AddDate(0, 0, 1) {
		for _, w := range p.Windows {
			if w.Weekday != day.Weekday() {
				continue
			}
			start, end, err := w.minutes()
			if err != nil || start >= end {
				continue
			}
			for m := start; m+step <= end; m += step {
				startsAt := timeutil.At(day, m, loc)
				endsAt := startsAt.Add(time.Duration(step) * time.Minute)
				if startsAt.Before(p.From) || !startsAt.Before(p.To) {
					continue
				}
				if isBusy(p.Busy, startsAt, endsAt) {
					continue
				}
				key := startsAt.Unix()
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				slots = append(slots, Slot{
					Date:      timeutil.DateKey(startsAt, loc),
					StartTime: timeutil.ClockKey(startsAt, loc),
					EndTime:   timeutil.ClockKey(endsAt, loc),
					StartsAt:  startsAt.UTC(),
					EndsAt:    endsAt.UTC(),
				})
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].StartsAt.Before(slots[j].StartsAt) })
	return slots
}

func isBusy(busy []Interval, start, end time.Time) bool {
	for _, b := range busy {
		if b.overlaps(start, end) {
			return true
		}
	}
	return false
}

// GroupByDate groups chronologically ordered slots by their civil date.
func GroupByDate(slots []Slot) []DaySlots {
	days := make([]DaySlots, 0)
	for _, s := range slots {
		if n := len(days); n > 0 && days[n-1].Date == s.Date {
			days[n-1].Slots = append(days[n-1].Slots, s)
			continue
		}
		days = append(days, DaySlots{Date: s.Date, Slots: []Slot{s}})
	}
	return days
}

// MatchSlot returns the slot of p.Windows starting exactly at instant, if any.
// p.From, p.To and p.Busy are ignored.
func MatchSlot(p ExpandParams, instant time.Time) (Slot, bool) {
	p.From = instant
	p.To = instant.Add(time.Second)
	p.Busy = nil
	for _, s := range ExpandSlots(p) {
		if s.StartsAt.Equal(instant) {
			return s, true
		}
	}
	return Slot{}, false
}

// SlotParams returns expansion parameters for this profile.
func (p *Profile) SlotParams(loc *time.Location, from, to time.Time, busy []Interval) ExpandParams {
	return ExpandParams{
		Windows:  p.Availability,
		Duration: p.SlotDuration(),
		Location: loc,
		From:     from,
		To:       to,
		Busy:     busy,
	}
}
