package allocation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ledger is one doctor's partition of the arena: its slots, queue and the
// tokens it owns. Every method expects mu to be held by the caller.
type ledger struct {
	mu     sync.Mutex
	doctor *Doctor
	queue  *Queue
	tokens map[uuid.UUID]*Token
	now    func() time.Time

	// pending collects events until the caller releases mu.
	pending []Event
}

func newLedger(d *Doctor, now func() time.Time) *ledger {
	tokens := make(map[uuid.UUID]*Token)
	return &ledger{
		doctor: d,
		queue:  NewQueue(tokens),
		tokens: tokens,
		now:    now,
	}
}

func (l *ledger) emit(eventType string, t *Token, payload map[string]any) {
	ev := Event{
		EventType: eventType,
		DoctorID:  l.doctor.ID,
		Payload:   payload,
		CreatedAt: l.now(),
	}
	if t != nil {
		id := t.ID
		ev.TokenID = &id
	}
	l.pending = append(l.pending, ev)
}

func (l *ledger) takeEvents() []Event {
	evs := l.pending
	l.pending = nil
	return evs
}

func (l *ledger) enqueue(t *Token) {
	t.State = StateQueued
	t.DoctorID = l.doctor.ID
	l.queue.Enqueue(t)
	l.emit(EventTokenQueued, t, map[string]any{"priority": t.Priority})
}

func (l *ledger) assign(t *Token, s *Slot) {
	s.add(t.ID)
	idx := s.Index
	at := l.now()
	t.State = StateAssigned
	t.DoctorID = l.doctor.ID
	t.SlotIndex = &idx
	t.AssignedAt = &at
	l.emit(EventTokenAssigned, t, map[string]any{"slot_index": idx})
}

// placeOne puts t in the earliest unblocked slot with room. It leaves all
// state untouched and returns false when no slot qualifies.
func (l *ledger) placeOne(t *Token) (int, bool) {
	for _, s := range l.doctor.Slots {
		if s.hasRoom() {
			l.assign(t, s)
			return s.Index, true
		}
	}
	return -1, false
}

// drainQueue assigns from the head of the queue until a placement fails.
// The failed token goes back to the head.
func (l *ledger) drainQueue() int {
	assigned := 0
	for {
		t := l.queue.Dequeue()
		if t == nil {
			return assigned
		}
		if _, ok := l.placeOne(t); !ok {
			l.queue.pushFront(t.ID)
			return assigned
		}
		assigned++
	}
}

// release frees t's seat. No-op when t holds no slot.
func (l *ledger) release(t *Token) {
	if t.SlotIndex == nil {
		return
	}
	if s := l.doctor.slotAt(t.SlotIndex); s != nil {
		s.remove(t.ID)
		if t.quota {
			s.EmergencyCount--
			t.quota = false
		}
	}
	t.SlotIndex = nil
}

// reallocateFrom blocks every slot from first to the end of the day,
// requeues their occupants and drains once into whatever room is left.
// It returns every displaced token, reassigned or not.
func (l *ledger) reallocateFrom(first int) []*Token {
	if first < 0 || first >= len(l.doctor.Slots) {
		return nil
	}

	var displaced []*Token
	for _, s := range l.doctor.Slots[first:] {
		s.blocked = true
		for _, id := range s.Occupants {
			t := l.tokens[id]
			t.State = StateRequeued
			t.SlotIndex = nil
			t.AssignedAt = nil
			t.quota = false
			displaced = append(displaced, t)
			l.emit(EventTokenRequeued, t, map[string]any{"from_slot": s.Index})
		}
		s.Occupants = nil
		s.EmergencyCount = 0
		s.refreshStatus()
	}

	l.queue.RequeueMany(displaced)
	l.drainQueue()
	return displaced
}
