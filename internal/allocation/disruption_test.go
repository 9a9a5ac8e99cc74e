package allocation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelAssignedBackfillsFromQueue(t *testing.T) {
	l := newTestLedger(t, ledgerOpts{slots: 1, capacity: 2})
	a := admit(t, l, "a", ClassWalkIn, FlexUnset)
	admit(t, l, "b", ClassWalkIn, FlexUnset)
	c := admit(t, l, "c", ClassWalkIn, FlexUnset)
	require.Equal(t, StateQueued, c.State)

	backfilled, err := l.cancel(a)
	require.NoError(t, err)

	assert.Equal(t, 1, backfilled)
	assert.Equal(t, StateCancelled, a.State)
	assert.NotNil(t, a.CompletedAt)
	assert.Nil(t, a.SlotIndex)
	assert.Equal(t, StateAssigned, c.State)
	requireInvariants(t, l)
}

func TestCancelQueuedAndRequeued(t *testing.T) {
	l := newTestLedger(t, ledgerOpts{slots: 1, capacity: 1})
	admit(t, l, "a", ClassWalkIn, FlexUnset)
	q := admit(t, l, "q", ClassWalkIn, FlexUnset)

	_, err := l.cancel(q)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, q.State)
	assert.Zero(t, l.queue.Len())
	requireInvariants(t, l)

	res := l.delay(2 * time.Hour)
	require.Len(t, res.Displaced, 1)
	r := res.Displaced[0]
	require.Equal(t, StateRequeued, r.State)

	_, err = l.cancel(r)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, r.State)
	requireInvariants(t, l)
}

func TestTerminalTransitionsRejectWrongStates(t *testing.T) {
	l := newTestLedger(t, ledgerOpts{slots: 1, capacity: 1})
	done := admit(t, l, "done", ClassWalkIn, FlexUnset)
	waiting := admit(t, l, "waiting", ClassWalkIn, FlexUnset)
	_, err := l.complete(done)
	require.NoError(t, err)
	require.Equal(t, StateAssigned, waiting.State)

	other := admit(t, l, "other", ClassWalkIn, FlexUnset)
	require.Equal(t, StateQueued, other.State)

	tests := []struct {
		name    string
		op      func(*ledger, *Token) (int, error)
		tok     *Token
		current TokenState
	}{
		{"cancel completed", (*ledger).cancel, done, StateCompleted},
		{"no-show completed", (*ledger).noShow, done, StateCompleted},
		{"complete completed", (*ledger).complete, done, StateCompleted},
		{"no-show queued", (*ledger).noShow, other, StateQueued},
		{"complete queued", (*ledger).complete, other, StateQueued},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.op(l, tt.tok)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidStatusTransition)

			var stateErr *InvalidStateError
			require.True(t, errors.As(err, &stateErr))
			assert.Equal(t, tt.current, stateErr.Current)
			assert.Equal(t, tt.current, tt.tok.State, "state must be unchanged")
			requireInvariants(t, l)
		})
	}
}

func TestNoShowReleasesAndDrains(t *testing.T) {
	l := newTestLedger(t, ledgerOpts{slots: 1, capacity: 1})
	a := admit(t, l, "a", ClassWalkIn, FlexUnset)
	b := admit(t, l, "b", ClassOnline, FlexUnset)

	n, err := l.noShow(a)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StateNoShow, a.State)
	assert.Equal(t, StateAssigned, b.State)
	requireInvariants(t, l)
}

func TestDelayBeforeAnySlotIsNoop(t *testing.T) {
	l := newTestLedger(t, ledgerOpts{slots: 2, capacity: 1})
	a := admit(t, l, "a", ClassWalkIn, FlexUnset)

	// The clock sits near 08:00 and the first slot starts at 09:00.
	res := l.delay(30 * time.Minute)
	assert.Equal(t, -1, res.FirstBlockedSlot)
	assert.Empty(t, res.Displaced)
	assert.Equal(t, StateAssigned, a.State)
	assert.Equal(t, SlotFull, l.doctor.Slots[0].Status)
}

func TestDelayBlocksThroughEndOfDay(t *testing.T) {
	l := newTestLedger(t, ledgerOpts{slots: 1, capacity: 2})
	a := admit(t, l, "a", ClassWalkIn, FlexUnset)
	b := admit(t, l, "b", ClassWalkIn, FlexUnset)

	res := l.delay(90 * time.Minute)
	assert.Equal(t, 0, res.FirstBlockedSlot)
	assert.Len(t, res.Displaced, 2)
	assert.Zero(t, res.Reassigned)
	assert.Equal(t, 2, res.StillQueued)
	assert.Equal(t, StateRequeued, a.State)
	assert.Equal(t, StateRequeued, b.State)
	assert.Equal(t, SlotBlocked, l.doctor.Slots[0].Status)

	// Nothing left to drain into.
	assert.Zero(t, l.drainQueue())
	assert.Equal(t, StateRequeued, a.State)
	requireInvariants(t, l)
}

func TestResumeReopensSlotsAndReassigns(t *testing.T) {
	l := newTestLedger(t, ledgerOpts{slots: 2, capacity: 1})
	a := admit(t, l, "a", ClassWalkIn, FlexUnset)
	b := admit(t, l, "b", ClassWalkIn, FlexUnset)
	l.delay(2 * time.Hour)
	require.Equal(t, StateRequeued, a.State)

	unblocked, assigned := l.resume()
	assert.Equal(t, 2, unblocked)
	assert.Equal(t, 2, assigned)
	assert.Equal(t, 0, slotOf(a))
	assert.Equal(t, 1, slotOf(b))
	requireInvariants(t, l)
}

func TestDelayClearsEmergencyQuota(t *testing.T) {
	l := newTestLedger(t, ledgerOpts{slots: 1, capacity: 2})
	e := admit(t, l, "e", ClassEmergency, FlexUnset)
	require.Equal(t, 1, l.doctor.Slots[0].EmergencyCount)

	l.delay(time.Hour + time.Minute)
	assert.Zero(t, l.doctor.Slots[0].EmergencyCount)
	assert.Equal(t, StateRequeued, e.State)
	assert.False(t, e.quota)
	requireInvariants(t, l)
}

func TestEventsAreCollectedPerMutation(t *testing.T) {
	l := newTestLedger(t, ledgerOpts{slots: 1, capacity: 1})
	a := admit(t, l, "a", ClassWalkIn, FlexUnset)
	l.takeEvents()

	_, err := l.cancel(a)
	require.NoError(t, err)

	evs := l.takeEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, EventTokenCancelled, evs[0].EventType)
	assert.Equal(t, a.ID, *evs[0].TokenID)
	assert.Empty(t, l.takeEvents())
}
