package allocation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreClassDominance(t *testing.T) {
	early := time.Unix(0, 0)
	late := time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)

	order := []TokenClass{ClassEmergency, ClassPaidPriority, ClassFollowUp, ClassOnline, ClassWalkIn}
	for i := 0; i < len(order)-1; i++ {
		higher, lower := order[i], order[i+1]
		t.Run(string(higher)+" over "+string(lower), func(t *testing.T) {
			assert.Greater(t, Score(higher, late), Score(lower, early))
			assert.Greater(t, Score(higher, late), maxScore(lower))
		})
	}
}

func TestScoreEarlierArrivalWins(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		gap  time.Duration
	}{
		{"one millisecond", time.Millisecond},
		{"one second", time.Second},
		{"one day", 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for class := range classRank {
				assert.Greater(t, Score(class, base), Score(class, base.Add(tt.gap)), "class %s", class)
			}
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, Score(ClassFollowUp, at), Score(ClassFollowUp, at))
}

func TestScoreUnknownClassPanics(t *testing.T) {
	assert.Panics(t, func() { Score(TokenClass("vip"), time.Now()) })
}

func TestParseTokenClass(t *testing.T) {
	c, err := ParseTokenClass(" Walk_In ")
	require.NoError(t, err)
	assert.Equal(t, ClassWalkIn, c)

	_, err = ParseTokenClass("vip")
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestParseFlexibility(t *testing.T) {
	for in, want := range map[string]Flexibility{"": FlexUnset, "LOW": FlexLow, "medium": FlexMedium, "high": FlexHigh} {
		got, err := ParseFlexibility(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFlexibility("sometimes")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
