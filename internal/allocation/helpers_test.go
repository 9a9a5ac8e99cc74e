package allocation

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// opening is 08:00 on the test day; doctors start seeing patients at 09:00.
var opening = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

// stepClock returns its current time and then moves forward by step, so
// consecutive arrivals get distinct, increasing timestamps.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newClock() *stepClock {
	return &stepClock{t: opening, step: time.Second}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

type ledgerOpts struct {
	slots    int
	capacity int
	perSlot  Ceiling
	perDay   Ceiling
}

func newTestLedger(t *testing.T, o ledgerOpts) *ledger {
	t.Helper()
	if o.perSlot == 0 {
		o.perSlot = 1
	}
	if o.perDay == 0 {
		o.perDay = Unbounded
	}
	hours := WorkingHours{Start: 9 * time.Hour, End: 9*time.Hour + time.Duration(o.slots)*15*time.Minute}
	slots, err := GenerateSlots(opening, hours, 15*time.Minute, o.capacity)
	require.NoError(t, err)

	d := &Doctor{
		ID:   uuid.New(),
		Name: "Dr. Test",
		Config: DoctorConfig{
			Hours:            hours,
			SlotDuration:     15 * time.Minute,
			SlotCapacity:     o.capacity,
			EmergencyPerSlot: o.perSlot,
			EmergencyPerDay:  o.perDay,
		},
		Slots: slots,
	}
	return newLedger(d, newClock().Now)
}

// newToken registers a scored token with the ledger without placing it.
func newToken(l *ledger, name string, class TokenClass, flex Flexibility) *Token {
	t := &Token{
		ID:          uuid.New(),
		PatientName: name,
		Class:       class,
		Flexibility: flex,
		DoctorID:    l.doctor.ID,
		ArrivedAt:   l.now(),
	}
	t.Priority = Score(class, t.ArrivedAt)
	l.tokens[t.ID] = t
	return t
}

// admit mirrors what Service.SubmitToken does under the doctor's lock.
func admit(t *testing.T, l *ledger, name string, class TokenClass, flex Flexibility) *Token {
	t.Helper()
	tok := newToken(l, name, class, flex)
	if class == ClassEmergency {
		_, _, err := l.admitEmergency(tok)
		require.NoError(t, err)
	} else {
		l.enqueue(tok)
		l.drainQueue()
	}
	requireInvariants(t, l)
	return tok
}

// requireInvariants checks every ledger-wide invariant that must hold after
// any operation.
func requireInvariants(t *testing.T, l *ledger) {
	t.Helper()
	cfg := l.doctor.Config

	seen := map[uuid.UUID]int{}
	dayEmergencies := 0
	for i, s := range l.doctor.Slots {
		require.Equal(t, i, s.Index)
		require.LessOrEqual(t, len(s.Occupants), s.Capacity, "slot %d over capacity", i)
		require.True(t, cfg.EmergencyPerSlot.Allows(s.EmergencyCount-1), "slot %d over emergency ceiling", i)
		dayEmergencies += s.EmergencyCount

		switch {
		case s.blocked:
			require.Equal(t, SlotBlocked, s.Status)
		case len(s.Occupants) == s.Capacity:
			require.Equal(t, SlotFull, s.Status)
		default:
			require.Equal(t, SlotAvailable, s.Status)
		}

		quota := 0
		for _, id := range s.Occupants {
			seen[id]++
			tok := l.tokens[id]
			require.NotNil(t, tok)
			require.Equal(t, StateAssigned, tok.State)
			require.NotNil(t, tok.SlotIndex)
			require.Equal(t, i, *tok.SlotIndex)
			if tok.quota {
				quota++
			}
		}
		require.Equal(t, quota, s.EmergencyCount, "slot %d quota drift", i)
	}
	require.True(t, cfg.EmergencyPerDay.Allows(dayEmergencies-1), "day emergency ceiling exceeded")

	queued := map[uuid.UUID]bool{}
	ids := l.queue.PeekAll()
	for i, id := range ids {
		require.False(t, queued[id], "token queued twice")
		queued[id] = true
		if i > 0 {
			require.False(t, outranks(l.tokens[id], l.tokens[ids[i-1]]), "queue out of order at %d", i)
		}
	}

	for id, tok := range l.tokens {
		switch tok.State {
		case StateAssigned:
			require.Equal(t, 1, seen[id], "assigned token must sit in exactly one slot")
			require.False(t, queued[id])
		case StateQueued, StateRequeued:
			require.Nil(t, tok.SlotIndex)
			require.True(t, queued[id], "waiting token missing from queue")
		default:
			require.Nil(t, tok.SlotIndex)
			require.False(t, queued[id])
			require.Zero(t, seen[id])
		}
		if tok.Class == ClassEmergency {
			require.Greater(t, tok.Priority, maxScore(ClassPaidPriority))
		}
	}
}

func slotOf(t *Token) int {
	if t.SlotIndex == nil {
		return -1
	}
	return *t.SlotIndex
}
