package allocation

import "github.com/google/uuid"

type Outcome string

const (
	OutcomeAssigned            Outcome = "assigned"
	OutcomeQueued              Outcome = "queued"
	OutcomeEmergencyDirect     Outcome = "emergency_direct"
	OutcomeEmergencyReshuffled Outcome = "emergency_reshuffled"
	OutcomeEmergencyDayQuota   Outcome = "emergency_day_quota_queued"
	OutcomeEmergencyQueued     Outcome = "emergency_queued"
)

// Move records one reshuffle relocation.
type Move struct {
	TokenID  uuid.UUID `json:"token_id"`
	FromSlot int       `json:"from_slot"`
	ToSlot   int       `json:"to_slot"`
}

// neighbourOffsets is the reshuffle search window, forward positions first.
var neighbourOffsets = [...]int{1, 2, -1, -2}

// admitEmergency runs an emergency token through the quota checks and, if
// direct placement is blocked, a single local reshuffle. It never cancels or
// drops an assigned token; when nothing works the token is queued.
func (l *ledger) admitEmergency(t *Token) (Outcome, *Move, error) {
	if t.Class != ClassEmergency {
		return "", nil, ErrNotEmergency
	}
	t.Priority = Score(t.Class, t.ArrivedAt)
	cfg := l.doctor.Config

	if !cfg.EmergencyPerDay.Allows(l.doctor.emergencyTotal()) {
		l.enqueue(t)
		return OutcomeEmergencyDayQuota, nil, nil
	}

	for _, s := range l.doctor.Slots {
		if s.hasRoom() && cfg.EmergencyPerSlot.Allows(s.EmergencyCount) {
			l.assign(t, s)
			l.takeQuota(t, s)
			return OutcomeEmergencyDirect, nil, nil
		}
	}

	if idx, mv, ok := l.reshuffle(t); ok {
		l.takeQuota(t, l.doctor.Slots[idx])
		if mv == nil {
			return OutcomeEmergencyDirect, nil, nil
		}
		return OutcomeEmergencyReshuffled, mv, nil
	}

	l.enqueue(t)
	return OutcomeEmergencyQueued, nil, nil
}

func (l *ledger) takeQuota(t *Token, s *Slot) {
	s.EmergencyCount++
	t.quota = true
	l.emit(EventEmergencyAdmitted, t, map[string]any{
		"slot_index":      s.Index,
		"emergency_count": s.EmergencyCount,
	})
}

// reshuffle opens one seat for t by moving the most flexible occupant of a
// full slot at most two positions away. Moves never cascade. The slot t
// lands in must still be under the per-slot emergency ceiling.
func (l *ledger) reshuffle(t *Token) (int, *Move, bool) {
	perSlot := l.doctor.Config.EmergencyPerSlot

	for i, s := range l.doctor.Slots {
		if s.blocked || !perSlot.Allows(s.EmergencyCount) {
			continue
		}
		if s.hasRoom() {
			l.assign(t, s)
			return i, nil, true
		}

		mover := l.mostFlexible(s)
		if mover == nil {
			continue
		}
		dest := l.neighbour(i)
		if dest == nil {
			continue
		}

		s.remove(mover.ID)
		dest.add(mover.ID)
		to := dest.Index
		at := l.now()
		mover.SlotIndex = &to
		mover.AssignedAt = &at
		mv := &Move{TokenID: mover.ID, FromSlot: i, ToSlot: to}
		l.emit(EventTokenReshuffled, mover, map[string]any{
			"from_slot":   i,
			"to_slot":     to,
			"flexibility": mover.Flexibility.String(),
		})

		l.assign(t, s)
		return i, mv, true
	}
	return -1, nil, false
}

// mostFlexible picks the highest-ranked flexible occupant; the first one
// scanned wins a tie. Emergency occupants are never moved.
func (l *ledger) mostFlexible(s *Slot) *Token {
	var best *Token
	for _, id := range s.Occupants {
		t := l.tokens[id]
		if t.Class == ClassEmergency || t.Flexibility == FlexUnset {
			continue
		}
		if best == nil || t.Flexibility > best.Flexibility {
			best = t
		}
	}
	return best
}

func (l *ledger) neighbour(i int) *Slot {
	for _, off := range neighbourOffsets {
		j := i + off
		if j < 0 || j >= len(l.doctor.Slots) {
			continue
		}
		if s := l.doctor.Slots[j]; s.Status == SlotAvailable && s.hasRoom() {
			return s
		}
	}
	return nil
}
