package slot

import (
	"errors"
	"fmt"
	"time"
)

const DefaultSlotMinutes = 30

var ErrInvalidRule = errors.New("invalid weekly rule")

// WeeklyRule is a doctor's recurring availability for one day of the week.
type WeeklyRule struct {
	DayOfWeek           int    `json:"day_of_week"`
	StartTime           string `json:"start_time"`
	EndTime             string `json:"end_time"`
	SlotDurationMinutes int    `json:"slot_duration_minutes"`
	IsActive            bool   `json:"is_active"`
}

// Duration returns the rule's slot length, falling back to the default when unset.
func (r WeeklyRule) Duration() int {
	if r.SlotDurationMinutes == 0 {
		return DefaultSlotMinutes
	}
	return r.SlotDurationMinutes
}

// Validate checks that the rule's times parse, that the window is not inverted
// and that the slot length is positive.
func (r WeeklyRule) Validate() error {
	if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
		return fmt.Errorf("%w: day_of_week %d out of range 0-6", ErrInvalidRule, r.DayOfWeek)
	}
	start, err := ParseClock(r.StartTime)
	if err != nil {
		return fmt.Errorf("%w: start_time: %w", ErrInvalidRule, err)
	}
	end, err := ParseClock(r.EndTime)
	if err != nil {
		return fmt.Errorf("%w: end_time: %w", ErrInvalidRule, err)
	}
	if end <= start {
		return fmt.Errorf("%w: end_time %s must be after start_time %s", ErrInvalidRule, end, start)
	}
	if r.Duration() <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRule, ErrInvalidDuration)
	}
	return nil
}

// DayOfWeek returns 0 for Sunday through 6 for Saturday.
func DayOfWeek(date time.Time) int {
	return int(date.Weekday())
}

// RuleForDate returns the active rule matching the date's weekday.
func RuleForDate(rules []WeeklyRule, date time.Time) (WeeklyRule, bool) {
	dow := DayOfWeek(date)
	for _, r := range rules {
		if r.DayOfWeek == dow && r.IsActive {
			return r, true
		}
	}
	return WeeklyRule{}, false
}

// GenerateSlots returns the start times ("HH:MM") of every full slot the
// matching active rule offers on date. A missing or inactive rule yields an
// empty list. Existing bookings are not consulted.
func GenerateSlots(rules []WeeklyRule, date time.Time) ([]string, error) {
	rule, ok := RuleForDate(rules, date)
	if !ok {
		return []string{}, nil
	}
	return RuleSlots(rule)
}

// RuleSlots expands a single rule into its slot grid, ignoring the weekday.
func RuleSlots(rule WeeklyRule) ([]string, error) {
	if !rule.IsActive {
		return []string{}, nil
	}

	start, err := ParseClock(rule.StartTime)
	if err != nil {
		return nil, fmt.Errorf("rule start_time: %w", err)
	}
	end, err := ParseClock(rule.EndTime)
	if err != nil {
		return nil, fmt.Errorf("rule end_time: %w", err)
	}
	step := rule.Duration()
	if step <= 0 {
		return nil, ErrInvalidDuration
	}

	slots := []string{}
	for cursor := start; cursor.Add(step) <= end; cursor = cursor.Add(step) {
		slots = append(slots, cursor.String())
	}
	return slots, nil
}

// ComputeEndTime adds durationMinutes to an HH:MM start. The result is not
// wrapped at midnight: "23:50" plus 30 gives "24:20".
func ComputeEndTime(startTime string, durationMinutes int) (string, error) {
	start, err := ParseClock(startTime)
	if err != nil {
		return "", err
	}
	if durationMinutes <= 0 {
		return "", ErrInvalidDuration
	}
	return start.Add(durationMinutes).String(), nil
}

// IsSlotStart reports whether start is one of the grid positions of rule.
func IsSlotStart(rule WeeklyRule, start string) (bool, error) {
	want, err := ParseClock(start)
	if err != nil {
		return false, err
	}
	slots, err := RuleSlots(rule)
	if err != nil {
		return false, err
	}
	for _, s := range slots {
		if s == want.String() {
			return true, nil
		}
	}
	return false, nil
}
