package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/qgram"
	apperrors "github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/errors"
)

func gramOf(t *testing.T, s string) qgram.Gram {
	t.Helper()
	codes, err := qgram.Encoder{}.EncodeString(s)
	require.NoError(t, err)
	for _, g := range qgram.Extract(codes, len(s), qgram.BoundaryInclusive) {
		return g
	}
	t.Fatalf("no gram for %q", s)
	return ""
}

func TestBuildPostingsInInsertionOrder(t *testing.T) {
	refs := []string{"JOHNSON", "JOHN SMITH", "SMITHSON", "JOHNS"}
	idx, err := Build(refs, Options{Q: 4})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 3}, idx.Lookup(gramOf(t, "JOHN")))
	assert.Equal(t, []int{1, 2}, idx.Lookup(gramOf(t, "MITH")))
	assert.Nil(t, idx.Lookup(gramOf(t, "ZZZZ")))
}

func TestBuildKeepsDuplicates(t *testing.T) {
	idx, err := Build([]string{"ABABAB"}, Options{Q: 2})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 0, 0}, idx.Lookup(gramOf(t, "AB")))
	assert.Equal(t, []int{0, 0}, idx.Lookup(gramOf(t, "BA")))
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 5, idx.Stats().Postings)
}

func TestBuildCaseInsensitive(t *testing.T) {
	idx, err := Build([]string{"smith"}, Options{Q: 5})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, idx.Lookup(gramOf(t, "SMITH")))
}

func TestBuildLegacyBoundary(t *testing.T) {
	inclusive, err := Build([]string{"ABCDEF"}, Options{Q: 5})
	require.NoError(t, err)
	legacy, err := Build([]string{"ABCDEF"}, Options{Q: 5, Boundary: qgram.BoundaryLegacy})
	require.NoError(t, err)

	assert.Equal(t, 2, inclusive.Len())
	assert.Equal(t, 1, legacy.Len())
	assert.Nil(t, legacy.Lookup(gramOf(t, "BCDEF")))
}

func TestBuildStats(t *testing.T) {
	idx, err := Build([]string{"ABC", "ABCDE", "", "ABCDEFG"}, Options{Q: 5})
	require.NoError(t, err)

	st := idx.Stats()
	assert.Equal(t, 4, st.References)
	assert.Equal(t, 2, st.ShortReferences)
	assert.Equal(t, 4, st.Postings)
	assert.Equal(t, 3, st.DistinctGrams)
}

func TestBuildRejectsUnrecognized(t *testing.T) {
	_, err := Build([]string{"OK LINE", "BAD.LINE"}, Options{Q: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnrecognizedCharacter)
	assert.Contains(t, err.Error(), "reference line 2")

	idx, err := Build([]string{"OK LINE", "BAD.LINE"}, Options{Q: 3, Policy: qgram.PolicySkip})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, idx.Lookup(gramOf(t, "BAD")))
}

func TestBuildInvalidQ(t *testing.T) {
	_, err := Build([]string{"A"}, Options{Q: 0})
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestFingerprint(t *testing.T) {
	a, err := Build([]string{"ALPHA", "BETA"}, Options{Q: 3})
	require.NoError(t, err)
	b, err := Build([]string{"ALPHA", "BETA"}, Options{Q: 3})
	require.NoError(t, err)
	c, err := Build([]string{"ALPHA", "BETA"}, Options{Q: 4})
	require.NoError(t, err)
	d, err := Build([]string{"ALPHAB", "ETA"}, Options{Q: 3})
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())
}
