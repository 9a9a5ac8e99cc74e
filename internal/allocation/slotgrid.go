package allocation

import (
	"fmt"
	"time"
)

// GenerateSlots lays out a day's slots in chronological order from the
// working-hours window. A trailing window shorter than duration is dropped.
func GenerateSlots(day time.Time, hours WorkingHours, duration time.Duration, capacity int) ([]*Slot, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: slot duration must be positive", ErrInvalidInput)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: slot capacity must be positive", ErrInvalidInput)
	}
	if hours.End <= hours.Start {
		return nil, fmt.Errorf("%w: working hours end before they start", ErrInvalidInput)
	}

	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	var slots []*Slot
	for off := hours.Start; off+duration <= hours.End; off += duration {
		s := &Slot{
			Index:    len(slots),
			Start:    midnight.Add(off),
			End:      midnight.Add(off + duration),
			Capacity: capacity,
		}
		s.refreshStatus()
		slots = append(slots, s)
	}

	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: working hours shorter than one slot", ErrInvalidInput)
	}
	return slots, nil
}
