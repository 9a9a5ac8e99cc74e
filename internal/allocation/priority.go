package allocation

import (
	"fmt"
	"time"
)

const (
	// bandWidth separates class bases; tiebreakSpan stays below it so a
	// token can never be pushed into the band underneath.
	bandWidth    = 1000.0
	tiebreakSpan = 500.0
	// tiebreakHorizonMs is the arrival time (epoch ms) at which the tiebreak saturates.
	tiebreakHorizonMs = 1e13
)

// Score maps a class and arrival time to a totally ordered priority. Any
// token of a higher class outranks every token of a lower class; within a
// class an earlier arrival scores strictly higher (at millisecond resolution).
//
// Score panics on a class that ParseTokenClass would reject.
func Score(class TokenClass, arrivedAt time.Time) float64 {
	rank, ok := classRank[class]
	if !ok {
		panic(fmt.Sprintf("allocation: score of unknown class %q", class))
	}
	return float64(rank)*bandWidth - tiebreak(arrivedAt)
}

func tiebreak(t time.Time) float64 {
	ms := float64(t.UnixMilli())
	if ms < 0 {
		ms = 0
	}
	v := tiebreakSpan * ms / tiebreakHorizonMs
	if v >= tiebreakSpan {
		v = tiebreakSpan - 1
	}
	return v
}

// maxScore is the highest score any token of class can reach.
func maxScore(class TokenClass) float64 {
	return float64(classRank[class]) * bandWidth
}
