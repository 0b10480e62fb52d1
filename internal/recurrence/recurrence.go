// Package recurrence computes future publish slots from a series schedule.
// Slot arithmetic happens in the schedule's own timezone so publish times
// stay pinned to local wall clock across DST transitions; results come back
// in UTC for storage and comparison.
package recurrence

import (
	"strconv"
	"strings"
	"time"

	"showrunner/internal/store"
)

// maxHorizonDays bounds the slot walk so sparse weekly schedules cannot loop
// unbounded.
const maxHorizonDays = 365

// Engine computes publish slots. The zero value uses the real clock; tests
// inject Now to pin time.
type Engine struct {
	Now func() time.Time
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Slots returns the next count publish times in UTC for the schedule.
// A nil schedule means daily at 09:00 UTC. Malformed fields degrade rather
// than fail: unknown timezones fall back to UTC, unparseable publish times
// to 09:00, and unparseable start dates to now.
func (e Engine) Slots(schedule *store.Schedule, count int) []time.Time {
	if count <= 0 {
		return nil
	}

	frequency := "daily"
	publishTime := ""
	tzName := "UTC"
	var customDays []int
	var startRaw string
	if schedule != nil {
		if schedule.Frequency != "" {
			frequency = schedule.Frequency
		}
		publishTime = schedule.PublishTime
		if schedule.Timezone != "" {
			tzName = schedule.Timezone
		}
		customDays = schedule.CustomDays
		startRaw = schedule.StartDate
	}

	loc, err := time.LoadLocation(tzName)
	if err != nil {
		loc = time.UTC
	}
	hour, minute := parsePublishTime(publishTime)

	now := e.now().UTC()
	start := now.In(loc)
	if parsed, ok := parseStartDate(startRaw); ok {
		localStart := parsed.In(loc)
		if localStart.After(start) {
			start = localStart
		}
	}

	daySet := make(map[int]struct{}, len(customDays))
	for _, day := range customDays {
		daySet[day] = struct{}{}
	}

	slots := make([]time.Time, 0, count)
	nowLocal := now.In(loc)
	for offset := 0; offset < maxHorizonDays && len(slots) < count; offset++ {
		candidate := time.Date(start.Year(), start.Month(), start.Day()+offset, hour, minute, 0, 0, loc)
		if candidate.Before(nowLocal) {
			continue
		}
		if strings.EqualFold(frequency, "weekly") && len(daySet) > 0 {
			if _, ok := daySet[mondayWeekday(candidate.Weekday())]; !ok {
				continue
			}
		}
		slots = append(slots, candidate.UTC())
	}
	return slots
}

// NextSlot returns the first upcoming publish time, or false when the
// horizon holds none.
func (e Engine) NextSlot(schedule *store.Schedule) (time.Time, bool) {
	slots := e.Slots(schedule, 1)
	if len(slots) == 0 {
		return time.Time{}, false
	}
	return slots[0], true
}

// mondayWeekday maps Go's Sunday-based weekday onto the Monday=0 numbering
// schedules use for customDays.
func mondayWeekday(day time.Weekday) int {
	return (int(day) + 6) % 7
}

func parsePublishTime(value string) (int, int) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = "09:00"
	}
	parts := strings.Split(value, ":")
	hour := 9
	minute := 0
	if len(parts) > 0 {
		if parsed, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil && parsed >= 0 && parsed <= 23 {
			hour = parsed
		}
	}
	if len(parts) > 1 {
		if parsed, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil && parsed >= 0 && parsed <= 59 {
			minute = parsed
		}
	}
	return hour, minute
}

func parseStartDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, true
	}
	if parsed, err := time.Parse("2006-01-02", value); err == nil {
		return parsed, true
	}
	return time.Time{}, false
}
