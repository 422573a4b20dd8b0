// Package scorer ranks reference strings against a query by positional
// q-gram overlap.
//
// Each query q-gram at offset w adds 2^w to every reference position that
// contains it, once per position however often the reference repeats the
// gram. A reference's streak is the population count of its accumulated
// weight, i.e. how many distinct query offsets hit it. The best match is
// every position sharing the highest streak.
package scorer

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/index"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/qgram"
)

type Status int

const (
	StatusMatched Status = iota
	// StatusNoMatch means the query shares no q-gram with any reference.
	StatusNoMatch
	// StatusTooShort means the encoded query is shorter than q.
	StatusTooShort
)

func (s Status) String() string {
	switch s {
	case StatusMatched:
		return "matched"
	case StatusNoMatch:
		return "no_match"
	case StatusTooShort:
		return "too_short"
	}
	return "unknown"
}

// Result is the outcome for one query. Positions is ascending and only set
// when Status is StatusMatched.
type Result struct {
	Status    Status `json:"status"`
	Streak    int    `json:"streak"`
	Positions []int  `json:"positions,omitempty"`
}

// Scorer scores queries against a single index. It holds no mutable state
// and may be shared between goroutines.
type Scorer struct {
	idx *index.Index
	enc qgram.Encoder
}

func New(idx *index.Index) *Scorer {
	return &Scorer{
		idx: idx,
		enc: qgram.Encoder{Policy: idx.Options().Policy},
	}
}

// Score encodes query with the index's policy and returns its best matches.
// The only error is an encoding failure under the reject policy.
func (s *Scorer) Score(query string) (Result, error) {
	codes, err := s.enc.EncodeString(query)
	if err != nil {
		return Result{}, err
	}
	opts := s.idx.Options()
	if len(codes) < opts.Q {
		return Result{Status: StatusTooShort}, nil
	}

	weights := make(map[int]*weight)
	for w, g := range qgram.Extract(codes, opts.Q, opts.Boundary) {
		for _, pos := range s.idx.Lookup(g) {
			acc, ok := weights[pos]
			if !ok {
				acc = &weight{}
				weights[pos] = acc
			}
			acc.set(w)
		}
	}

	streaks := make(map[int]int, len(weights))
	for pos, acc := range weights {
		streaks[pos] = acc.popcount()
	}
	return selectBest(streaks), nil
}

// selectBest returns every position tied at the highest streak.
func selectBest(streaks map[int]int) Result {
	if len(streaks) == 0 {
		return Result{Status: StatusNoMatch}
	}
	best := 0
	for _, streak := range streaks {
		if streak > best {
			best = streak
		}
	}
	positions := make([]int, 0, 1)
	for pos, streak := range streaks {
		if streak == best {
			positions = append(positions, pos)
		}
	}
	sort.Ints(positions)
	return Result{
		Status:    StatusMatched,
		Streak:    best,
		Positions: positions,
	}
}
