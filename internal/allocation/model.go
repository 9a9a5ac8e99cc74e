package allocation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type TokenClass string

const (
	ClassEmergency    TokenClass = "emergency"
	ClassPaidPriority TokenClass = "paid_priority"
	ClassFollowUp     TokenClass = "follow_up"
	ClassOnline       TokenClass = "online"
	ClassWalkIn       TokenClass = "walk_in"
)

// classRank orders classes from highest (emergency) to lowest (walk-in).
var classRank = map[TokenClass]int{
	ClassEmergency:    5,
	ClassPaidPriority: 4,
	ClassFollowUp:     3,
	ClassOnline:       2,
	ClassWalkIn:       1,
}

// ParseTokenClass validates a class name coming from outside the engine.
func ParseTokenClass(s string) (TokenClass, error) {
	c := TokenClass(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := classRank[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownClass, s)
	}
	return c, nil
}

type TokenState string

const (
	StateQueued    TokenState = "queued"
	StateAssigned  TokenState = "assigned"
	StateRequeued  TokenState = "requeued"
	StateCancelled TokenState = "cancelled"
	StateNoShow    TokenState = "no_show"
	StateCompleted TokenState = "completed"
)

// Terminal reports whether no further transition is possible.
func (s TokenState) Terminal() bool {
	return s == StateCancelled || s == StateNoShow || s == StateCompleted
}

// Flexibility marks how willing a patient is to be moved to a nearby slot.
// FlexUnset is the explicit "unranked" value; such tokens are never moved.
type Flexibility int

const (
	FlexUnset Flexibility = iota
	FlexLow
	FlexMedium
	FlexHigh
)

var flexNames = map[Flexibility]string{
	FlexUnset:  "",
	FlexLow:    "low",
	FlexMedium: "medium",
	FlexHigh:   "high",
}

func (f Flexibility) String() string {
	return flexNames[f]
}

func ParseFlexibility(s string) (Flexibility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return FlexUnset, nil
	case "low":
		return FlexLow, nil
	case "medium":
		return FlexMedium, nil
	case "high":
		return FlexHigh, nil
	default:
		return FlexUnset, fmt.Errorf("%w: unknown flexibility %q", ErrInvalidInput, s)
	}
}

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotFull      SlotStatus = "full"
	SlotBlocked   SlotStatus = "blocked"
)

// Ceiling caps emergency admissions. Unbounded disables the cap.
type Ceiling int

const Unbounded Ceiling = -1

// Allows reports whether one more emergency fits given n already counted.
func (c Ceiling) Allows(n int) bool {
	return c == Unbounded || n < int(c)
}

type Token struct {
	ID          uuid.UUID
	PatientName string
	PatientAge  int
	Class       TokenClass
	State       TokenState
	DoctorID    uuid.UUID
	SlotIndex   *int
	Priority    float64
	Flexibility Flexibility
	ArrivedAt   time.Time
	AssignedAt  *time.Time
	CompletedAt *time.Time

	// quota is set while the token holds one unit of its slot's emergency quota.
	quota bool
}

type Slot struct {
	Index          int
	Start          time.Time
	End            time.Time
	Capacity       int
	Occupants      []uuid.UUID
	Status         SlotStatus
	EmergencyCount int

	blocked bool
}

func (s *Slot) hasRoom() bool {
	return !s.blocked && len(s.Occupants) < s.Capacity
}

// refreshStatus is the only place Status is written.
func (s *Slot) refreshStatus() {
	switch {
	case s.blocked:
		s.Status = SlotBlocked
	case len(s.Occupants) >= s.Capacity:
		s.Status = SlotFull
	default:
		s.Status = SlotAvailable
	}
}

func (s *Slot) add(id uuid.UUID) {
	s.Occupants = append(s.Occupants, id)
	s.refreshStatus()
}

func (s *Slot) remove(id uuid.UUID) bool {
	for i, occ := range s.Occupants {
		if occ == id {
			s.Occupants = append(s.Occupants[:i], s.Occupants[i+1:]...)
			s.refreshStatus()
			return true
		}
	}
	return false
}

// WorkingHours bounds a doctor's day as minutes after midnight.
type WorkingHours struct {
	Start time.Duration
	End   time.Duration
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: bad clock time %q", ErrInvalidInput, s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

type DoctorConfig struct {
	Hours            WorkingHours
	SlotDuration     time.Duration
	SlotCapacity     int
	EmergencyPerSlot Ceiling
	EmergencyPerDay  Ceiling
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty string
	Config    DoctorConfig
	Slots     []*Slot
	// Day is midnight of the scheduling day the slots were generated for.
	Day       time.Time
	CreatedAt time.Time
}

func (d *Doctor) slotAt(i *int) *Slot {
	if i == nil || *i < 0 || *i >= len(d.Slots) {
		return nil
	}
	return d.Slots[*i]
}

func (d *Doctor) emergencyTotal() int {
	total := 0
	for _, s := range d.Slots {
		total += s.EmergencyCount
	}
	return total
}
