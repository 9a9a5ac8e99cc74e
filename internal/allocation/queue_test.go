package allocation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queueFixture struct {
	tokens map[uuid.UUID]*Token
	q      *Queue
	at     time.Time
}

func newQueueFixture() *queueFixture {
	tokens := make(map[uuid.UUID]*Token)
	return &queueFixture{tokens: tokens, q: NewQueue(tokens), at: opening}
}

func (f *queueFixture) token(name string, class TokenClass) *Token {
	f.at = f.at.Add(time.Second)
	t := &Token{ID: uuid.New(), PatientName: name, Class: class, ArrivedAt: f.at, Priority: Score(class, f.at)}
	f.tokens[t.ID] = t
	return t
}

func (f *queueFixture) names() []string {
	var out []string
	for _, id := range f.q.PeekAll() {
		out = append(out, f.tokens[id].PatientName)
	}
	return out
}

func TestQueueOrdersByPriorityThenArrival(t *testing.T) {
	f := newQueueFixture()
	w1 := f.token("w1", ClassWalkIn)
	o1 := f.token("o1", ClassOnline)
	w2 := f.token("w2", ClassWalkIn)
	p1 := f.token("p1", ClassPaidPriority)
	e1 := f.token("e1", ClassEmergency)

	for _, tok := range []*Token{w1, o1, w2, p1, e1} {
		f.q.Enqueue(tok)
	}

	assert.Equal(t, []string{"e1", "p1", "o1", "w1", "w2"}, f.names())
	assert.Equal(t, 5, f.q.Len())
}

func TestQueueEqualScoresKeepInsertionOrder(t *testing.T) {
	f := newQueueFixture()
	a := f.token("a", ClassFollowUp)
	b := &Token{ID: uuid.New(), PatientName: "b", Class: ClassFollowUp, ArrivedAt: a.ArrivedAt, Priority: a.Priority}
	f.tokens[b.ID] = b

	f.q.Enqueue(a)
	f.q.Enqueue(b)
	assert.Equal(t, []string{"a", "b"}, f.names())
}

func TestQueueDequeue(t *testing.T) {
	f := newQueueFixture()
	assert.Nil(t, f.q.Dequeue())

	w := f.token("w", ClassWalkIn)
	p := f.token("p", ClassPaidPriority)
	f.q.Enqueue(w)
	f.q.Enqueue(p)

	assert.Equal(t, p.ID, f.q.Dequeue().ID)
	assert.Equal(t, w.ID, f.q.Dequeue().ID)
	assert.Nil(t, f.q.Dequeue())
}

func TestQueueRemove(t *testing.T) {
	f := newQueueFixture()
	a := f.token("a", ClassWalkIn)
	b := f.token("b", ClassWalkIn)
	f.q.Enqueue(a)
	f.q.Enqueue(b)

	assert.True(t, f.q.Remove(a.ID))
	assert.False(t, f.q.Remove(a.ID))
	assert.Equal(t, []string{"b"}, f.names())
}

func TestQueueRequeueManyRederivesOrder(t *testing.T) {
	f := newQueueFixture()
	o := f.token("o", ClassOnline)
	f.q.Enqueue(o)

	w := f.token("w", ClassWalkIn)
	fu := f.token("fu", ClassFollowUp)
	late := f.token("late-online", ClassOnline)
	f.q.RequeueMany([]*Token{w, late, fu})

	assert.Equal(t, []string{"fu", "o", "late-online", "w"}, f.names())
}

func TestQueuePeekAllIsACopy(t *testing.T) {
	f := newQueueFixture()
	a := f.token("a", ClassWalkIn)
	f.q.Enqueue(a)

	snap := f.q.PeekAll()
	snap[0] = uuid.Nil
	require.Equal(t, a.ID, f.q.PeekAll()[0])
}

func TestQueuePushFrontRestoresHead(t *testing.T) {
	f := newQueueFixture()
	a := f.token("a", ClassPaidPriority)
	b := f.token("b", ClassWalkIn)
	f.q.Enqueue(a)
	f.q.Enqueue(b)

	head := f.q.Dequeue()
	f.q.pushFront(head.ID)
	assert.Equal(t, []string{"a", "b"}, f.names())
}
