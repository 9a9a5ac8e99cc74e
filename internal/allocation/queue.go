package allocation

import "github.com/google/uuid"

// Queue is one doctor's waiting list, kept sorted on insert so Dequeue is
// O(1). It holds only IDs; priority and arrival are read from the tokens
// map it shares with the owning ledger.
type Queue struct {
	ids    []uuid.UUID
	tokens map[uuid.UUID]*Token
}

func NewQueue(tokens map[uuid.UUID]*Token) *Queue {
	return &Queue{tokens: tokens}
}

// outranks orders by priority, then by earlier arrival.
func outranks(a, b *Token) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.ArrivedAt.Before(b.ArrivedAt)
}

// Enqueue inserts t before the first entry it outranks. Equal entries keep
// insertion order.
func (q *Queue) Enqueue(t *Token) {
	pos := len(q.ids)
	for i, id := range q.ids {
		if outranks(t, q.tokens[id]) {
			pos = i
			break
		}
	}
	q.ids = append(q.ids, uuid.Nil)
	copy(q.ids[pos+1:], q.ids[pos:])
	q.ids[pos] = t.ID
}

// Dequeue removes and returns the head, or nil when empty.
func (q *Queue) Dequeue() *Token {
	if len(q.ids) == 0 {
		return nil
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return q.tokens[id]
}

// pushFront restores a token that was just dequeued to the head.
func (q *Queue) pushFront(id uuid.UUID) {
	q.ids = append([]uuid.UUID{id}, q.ids...)
}

func (q *Queue) Remove(id uuid.UUID) bool {
	for i, qid := range q.ids {
		if qid == id {
			q.ids = append(q.ids[:i], q.ids[i+1:]...)
			return true
		}
	}
	return false
}

// RequeueMany re-inserts a batch one at a time; the batch's own order is
// re-derived from priority.
func (q *Queue) RequeueMany(tokens []*Token) {
	for _, t := range tokens {
		q.Enqueue(t)
	}
}

// PeekAll returns the queued IDs in priority order.
func (q *Queue) PeekAll() []uuid.UUID {
	out := make([]uuid.UUID, len(q.ids))
	copy(out, q.ids)
	return out
}

func (q *Queue) Len() int {
	return len(q.ids)
}
