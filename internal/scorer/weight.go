package scorer

import "math/bits"

// weight is a bitset of query offsets, little-endian words. Bit w stands for
// 2^w, so the integer it spells is the sum over distinct matched offsets.
type weight []uint64

// set marks offset exp. Setting an offset twice leaves the weight unchanged.
func (w *weight) set(exp int) {
	word := exp / 64
	for len(*w) <= word {
		*w = append(*w, 0)
	}
	(*w)[word] |= 1 << uint(exp%64)
}

// popcount returns the number of set bits.
func (w weight) popcount() int {
	n := 0
	for _, word := range w {
		n += bits.OnesCount64(word)
	}
	return n
}
