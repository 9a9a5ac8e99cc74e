package allocation

import "time"

// DelayResult describes the outcome of a doctor delay.
type DelayResult struct {
	FirstBlockedSlot int
	Displaced        []*Token
	Reassigned       int
	StillQueued      int
}

var terminalEvents = map[TokenState]string{
	StateCancelled: EventTokenCancelled,
	StateNoShow:    EventTokenNoShow,
	StateCompleted: EventTokenCompleted,
}

func (l *ledger) finish(t *Token, terminal TokenState, payload map[string]any) {
	at := l.now()
	t.State = terminal
	t.CompletedAt = &at
	l.emit(terminalEvents[terminal], t, payload)
}

// cancel accepts queued, requeued and assigned tokens. Freed capacity is
// backfilled from the queue straight away.
func (l *ledger) cancel(t *Token) (int, error) {
	switch t.State {
	case StateQueued, StateRequeued:
		l.queue.Remove(t.ID)
		l.finish(t, StateCancelled, map[string]any{"was": string(t.State)})
		return 0, nil
	case StateAssigned:
		return l.closeAssigned(t, "cancel", StateCancelled), nil
	default:
		return 0, &InvalidStateError{Op: "cancel", Current: t.State}
	}
}

func (l *ledger) noShow(t *Token) (int, error) {
	if t.State != StateAssigned {
		return 0, &InvalidStateError{Op: "mark no-show for", Current: t.State}
	}
	return l.closeAssigned(t, "no_show", StateNoShow), nil
}

func (l *ledger) complete(t *Token) (int, error) {
	if t.State != StateAssigned {
		return 0, &InvalidStateError{Op: "complete", Current: t.State}
	}
	return l.closeAssigned(t, "complete", StateCompleted), nil
}

// closeAssigned releases the seat, records the terminal state and drains.
// It returns how many queued tokens were backfilled.
func (l *ledger) closeAssigned(t *Token, reason string, terminal TokenState) int {
	slot := *t.SlotIndex
	l.release(t)
	l.finish(t, terminal, map[string]any{"slot_index": slot, "reason": reason})
	return l.drainQueue()
}

// delay blocks from the first slot starting before now+d through the end of
// the day and requeues the occupants. Nothing happens if no slot starts
// before that instant.
func (l *ledger) delay(d time.Duration) DelayResult {
	cutoff := l.now().Add(d)
	first := -1
	for i, s := range l.doctor.Slots {
		if s.Start.Before(cutoff) {
			first = i
			break
		}
	}
	res := DelayResult{FirstBlockedSlot: first}
	if first < 0 {
		return res
	}

	res.Displaced = l.reallocateFrom(first)
	for _, t := range res.Displaced {
		if t.State == StateAssigned {
			res.Reassigned++
		} else {
			res.StillQueued++
		}
	}
	l.emit(EventDoctorDelayed, nil, map[string]any{
		"delay_minutes":      d.Minutes(),
		"first_blocked_slot": first,
		"displaced":          len(res.Displaced),
		"reassigned":         res.Reassigned,
	})
	return res
}

// resume lifts every delay block and drains the queue into the reopened slots.
func (l *ledger) resume() (unblocked, assigned int) {
	for _, s := range l.doctor.Slots {
		if s.blocked {
			s.blocked = false
			s.refreshStatus()
			unblocked++
		}
	}
	assigned = l.drainQueue()
	l.emit(EventDoctorResumed, nil, map[string]any{
		"unblocked": unblocked,
		"assigned":  assigned,
	})
	return unblocked, assigned
}
