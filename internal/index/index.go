// Package index builds the immutable q-gram index over a reference list.
package index

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/qgram"
	apperrors "github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/errors"
)

// Options fixes how references are encoded and sliced.
type Options struct {
	Q        int
	Boundary qgram.Boundary
	Policy   qgram.UnknownPolicy
}

// Stats summarises a built index.
type Stats struct {
	References      int
	DistinctGrams   int
	Postings        int
	ShortReferences int
	BuildTime       time.Duration
}

// Index maps each q-gram to the reference positions containing it, in
// insertion order. A position appears once per occurrence of the gram in its
// string. Index is never mutated after Build and is safe for concurrent use.
type Index struct {
	opts        Options
	postings    map[qgram.Gram][]int
	stats       Stats
	fingerprint uint64
}

// Build indexes refs. Under PolicyReject, an unencodable reference fails
// the build and the error names its line.
func Build(refs []string, opts Options) (*Index, error) {
	if opts.Q < 1 {
		return nil, apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "q must be >= 1, got %d", opts.Q)
	}
	start := time.Now()
	enc := qgram.Encoder{Policy: opts.Policy}
	idx := &Index{
		opts:     opts,
		postings: make(map[qgram.Gram][]int),
	}
	h := xxhash.New()
	fmt.Fprintf(h, "q=%d|boundary=%s|policy=%s\n", opts.Q, opts.Boundary, opts.Policy)

	for i, ref := range refs {
		codes, err := enc.EncodeString(ref)
		if err != nil {
			return nil, fmt.Errorf("reference line %d: %w", i+1, err)
		}
		if len(codes) < opts.Q {
			idx.stats.ShortReferences++
		}
		for _, g := range qgram.Extract(codes, opts.Q, opts.Boundary) {
			idx.postings[g] = append(idx.postings[g], i)
			idx.stats.Postings++
		}
		h.WriteString(strconv.Itoa(len(ref)))
		h.WriteString(":")
		h.WriteString(ref)
	}

	idx.stats.References = len(refs)
	idx.stats.DistinctGrams = len(idx.postings)
	idx.stats.BuildTime = time.Since(start)
	idx.fingerprint = h.Sum64()

	slog.Default().With("component", "index").Debug("reference index built",
		"references", idx.stats.References,
		"distinct_grams", idx.stats.DistinctGrams,
		"postings", idx.stats.Postings,
		"short_references", idx.stats.ShortReferences,
		"build_time", idx.stats.BuildTime,
	)
	return idx, nil
}

// Lookup returns the positions for g. The slice is shared and must not be
// modified.
func (x *Index) Lookup(g qgram.Gram) []int {
	return x.postings[g]
}

// Len returns the number of distinct grams.
func (x *Index) Len() int {
	return len(x.postings)
}

func (x *Index) Options() Options {
	return x.opts
}

func (x *Index) Stats() Stats {
	return x.stats
}

// Fingerprint is an xxhash-64 digest of the options and every reference
// string; two indexes with equal fingerprints score identically.
func (x *Index) Fingerprint() uint64 {
	return x.fingerprint
}
