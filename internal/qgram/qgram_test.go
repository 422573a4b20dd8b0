package qgram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/errors"
)

func collect(t *testing.T, s string, q int, b Boundary) []Gram {
	t.Helper()
	codes, err := Encoder{}.EncodeString(s)
	require.NoError(t, err)
	var grams []Gram
	for w, g := range Extract(codes, q, b) {
		require.Equal(t, len(grams), w, "offsets must be sequential")
		grams = append(grams, g)
	}
	return grams
}

func TestEncodeTable(t *testing.T) {
	tests := []struct {
		in   byte
		want Code
	}{
		{'A', 1}, {'a', 1}, {'Z', 26}, {'z', 26}, {'S', 19},
		{'0', 15}, {'1', 9}, {'2', 26}, {'3', DigitThree}, {'4', 1},
		{'5', 19}, {'6', 7}, {'7', 20}, {'8', 2}, {'9', 17},
		{' ', Blank}, {'-', Blank}, {'_', Blank},
	}
	for _, tt := range tests {
		got, ok := Encode(tt.in)
		assert.True(t, ok, "%q should be recognised", tt.in)
		assert.Equal(t, tt.want, got, "code for %q", tt.in)
	}

	for _, b := range []byte{'.', ',', '\t', 0, '@', '[', 0xC3} {
		_, ok := Encode(b)
		assert.False(t, ok, "%q should not be recognised", b)
	}
}

func TestEncodeCaseInsensitive(t *testing.T) {
	enc := Encoder{}
	for _, pair := range [][2]string{{"abc", "ABC"}, {"Smith", "SMITH"}, {"mIxEd CaSe", "MIXED CASE"}} {
		lower, err := enc.EncodeString(pair[0])
		require.NoError(t, err)
		upper, err := enc.EncodeString(pair[1])
		require.NoError(t, err)
		assert.Equal(t, upper, lower)
	}
}

func TestEncodeStringPreservesLength(t *testing.T) {
	codes, err := Encoder{}.EncodeString("O'Brien")
	assert.ErrorIs(t, err, apperrors.ErrUnrecognizedCharacter)
	assert.Nil(t, codes)

	codes, err = Encoder{}.EncodeString("AB-3 9_z")
	require.NoError(t, err)
	assert.Equal(t, []Code{1, 2, Blank, DigitThree, Blank, 17, Blank, 26}, codes)
}

func TestEncodeStringPolicies(t *testing.T) {
	codes, err := Encoder{Policy: PolicySkip}.EncodeString("O'Brien")
	require.NoError(t, err)
	want, _ := Encoder{}.EncodeString("OBrien")
	assert.Equal(t, want, codes)

	codes, err = Encoder{Policy: PolicySentinel}.EncodeString("a.b")
	require.NoError(t, err)
	assert.Equal(t, []Code{1, SentinelCode, 2}, codes)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("Skip")
	require.NoError(t, err)
	assert.Equal(t, PolicySkip, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyReject, p)

	_, err = ParsePolicy("ignore")
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestExtractBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		boundary Boundary
		want     int
	}{
		{"shorter than q", "ABCD", BoundaryInclusive, 0},
		{"empty", "", BoundaryInclusive, 0},
		{"exactly q", "ABCDE", BoundaryInclusive, 1},
		{"exactly q legacy", "ABCDE", BoundaryLegacy, 1},
		{"q plus one", "ABCDEF", BoundaryInclusive, 2},
		{"q plus one legacy", "ABCDEF", BoundaryLegacy, 1},
		{"long", "ABCDEFGHIJ", BoundaryInclusive, 6},
		{"long legacy", "ABCDEFGHIJ", BoundaryLegacy, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grams := collect(t, tt.s, 5, tt.boundary)
			assert.Len(t, grams, tt.want)
			assert.Equal(t, tt.want, Count(len(tt.s), 5, tt.boundary))
		})
	}
}

func TestExtractWindows(t *testing.T) {
	grams := collect(t, "ABCDEF", 5, BoundaryInclusive)
	require.Len(t, grams, 2)
	assert.Equal(t, []Code{1, 2, 3, 4, 5}, grams[0].Codes())
	assert.Equal(t, []Code{2, 3, 4, 5, 6}, grams[1].Codes())

	legacy := collect(t, "ABCDEF", 5, BoundaryLegacy)
	assert.Equal(t, grams[:1], legacy)
}

func TestExtractStructuralEquality(t *testing.T) {
	a := collect(t, "smyth", 5, BoundaryInclusive)
	b := collect(t, "SMYTH", 5, BoundaryInclusive)
	assert.Equal(t, a, b)

	m := map[Gram]int{a[0]: 1}
	assert.Equal(t, 1, m[b[0]])
}

func TestExtractStopsEarly(t *testing.T) {
	codes, _ := Encoder{}.EncodeString("ABCDEFGHIJ")
	seen := 0
	for range Extract(codes, 3, BoundaryInclusive) {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestCountInvalidQ(t *testing.T) {
	assert.Zero(t, Count(10, 0, BoundaryInclusive))
	assert.Zero(t, Count(10, -1, BoundaryLegacy))
}
