package slot

// Interval is a half-open [Start, End) range within a single day.
type Interval struct {
	Start Clock
	End   Clock
}

func (i Interval) overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// ParseInterval builds an Interval from two clock strings.
func ParseInterval(start, end string) (Interval, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: s, End: e}, nil
}

// FilterAvailable drops every slot whose [start, start+duration) window
// overlaps one of the busy intervals. Order of the input is preserved.
func FilterAvailable(slots []string, durationMinutes int, busy []Interval) ([]string, error) {
	if durationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}

	out := make([]string, 0, len(slots))
	for _, s := range slots {
		start, err := ParseClock(s)
		if err != nil {
			return nil, err
		}
		window := Interval{Start: start, End: start.Add(durationMinutes)}

		free := true
		for _, b := range busy {
			if window.overlaps(b) {
				free = false
				break
			}
		}
		if free {
			out = append(out, s)
		}
	}
	return out, nil
}
