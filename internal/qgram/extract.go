package qgram

import (
	"iter"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/errors"
)

// Gram is q consecutive codes packed one per byte. Being a string it
// compares structurally and can key a map.
type Gram string

// Codes unpacks the gram.
func (g Gram) Codes() []Code {
	out := make([]Code, len(g))
	for i := 0; i < len(g); i++ {
		out[i] = Code(g[i])
	}
	return out
}

// Boundary selects which windows are produced when the input is longer
// than q.
type Boundary int

const (
	// BoundaryInclusive produces every window, offsets 0..n-q.
	BoundaryInclusive Boundary = iota
	// BoundaryLegacy stops one window early, offsets 0..n-q-1.
	BoundaryLegacy
)

func (b Boundary) String() string {
	if b == BoundaryLegacy {
		return "legacy"
	}
	return "inclusive"
}

// ParseBoundary parses "inclusive" or "legacy".
func ParseBoundary(s string) (Boundary, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inclusive":
		return BoundaryInclusive, nil
	case "legacy":
		return BoundaryLegacy, nil
	}
	return BoundaryInclusive, apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitUsage,
		"unknown q-gram boundary %q", s)
}

// Count returns how many grams Extract yields for an input of length n.
func Count(n, q int, b Boundary) int {
	switch {
	case q < 1 || n < q:
		return 0
	case n == q:
		return 1
	case b == BoundaryLegacy:
		return n - q
	default:
		return n - q + 1
	}
}

// Extract yields (offset, gram) pairs in ascending offset order. The offset
// is the weight exponent used by the scorer.
func Extract(codes []Code, q int, b Boundary) iter.Seq2[int, Gram] {
	return func(yield func(int, Gram) bool) {
		n := Count(len(codes), q, b)
		buf := make([]byte, q)
		for w := 0; w < n; w++ {
			for i, c := range codes[w : w+q] {
				buf[i] = byte(c)
			}
			if !yield(w, Gram(buf)) {
				return
			}
		}
	}
}
