// Package join drives a q-gram fuzzy join: it indexes the reference list
// once, streams queries through the scorer and emits one record per best
// match.
package join

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/index"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/metrics"
)

// Record pairs a query with one of its best-matching references.
type Record struct {
	Line      int    `json:"line"`
	Query     string `json:"query"`
	Reference string `json:"reference"`
	Position  int    `json:"reference_pos"`
	Streak    int    `json:"streak"`
}

// QuerySource yields query strings until it returns io.EOF.
type QuerySource interface {
	Next(ctx context.Context) (string, error)
}

// Sink receives match records. Write may buffer; Flush must deliver
// everything written so far.
type Sink interface {
	Write(ctx context.Context, records []Record) error
	Flush(ctx context.Context) error
}

// ResultCache memoises scorer results per query for a fixed index.
type ResultCache interface {
	GetOrCompute(ctx context.Context, query string, compute func() (scorer.Result, error)) (scorer.Result, bool, error)
}

// Options tunes the driver. Zero values mean one worker, batches of 512 and
// no record limit.
type Options struct {
	Workers   int
	BatchSize int
	Limit     int
	Cache     ResultCache
	Metrics   *metrics.Metrics
}

// Summary counts what a run did.
type Summary struct {
	Queries      int
	Matched      int
	NoMatch      int
	TooShort     int
	Records      int
	LimitReached bool
	Duration     time.Duration
}

func (s *Summary) add(res scorer.Result) {
	s.Queries++
	switch res.Status {
	case scorer.StatusMatched:
		s.Matched++
	case scorer.StatusNoMatch:
		s.NoMatch++
	case scorer.StatusTooShort:
		s.TooShort++
	}
}

const cancelFlushTimeout = 10 * time.Second

type Joiner struct {
	refs   []string
	idx    *index.Index
	scorer *scorer.Scorer
	opts   Options
	logger *slog.Logger
}

// New builds the reference index and returns a Joiner over it.
func New(refs []string, indexOpts index.Options, opts Options) (*Joiner, error) {
	idx, err := index.Build(refs, indexOpts)
	if err != nil {
		return nil, fmt.Errorf("building reference index: %w", err)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 512
	}
	j := &Joiner{
		refs:   refs,
		idx:    idx,
		scorer: scorer.New(idx),
		opts:   opts,
		logger: slog.Default().With("component", "join"),
	}
	st := idx.Stats()
	if m := opts.Metrics; m != nil {
		m.IndexBuildDuration.Observe(st.BuildTime.Seconds())
		m.IndexGrams.Set(float64(st.DistinctGrams))
		m.IndexReferences.Set(float64(st.References))
	}
	j.logger.Info("reference index ready",
		"references", st.References,
		"distinct_grams", st.DistinctGrams,
		"postings", st.Postings,
		"short_references", st.ShortReferences,
		"q", indexOpts.Q,
		"boundary", indexOpts.Boundary,
		"build_time", st.BuildTime,
	)
	return j, nil
}

// Index exposes the underlying reference index.
func (j *Joiner) Index() *index.Index {
	return j.idx
}

// UseCache installs a result cache. Caches are usually keyed by
// Index().Fingerprint(), so they can only be built after New. Call it before
// Run or Process.
func (j *Joiner) UseCache(c ResultCache) {
	j.opts.Cache = c
}

// Run scores every query from src and writes records to sink in query
// order, each query's matches by ascending reference position. Queries with
// no match or shorter than q produce no records. Run stops after Limit
// records when a limit is set. When ctx is cancelled, records already
// handed to sink are still flushed before Run returns.
func (j *Joiner) Run(ctx context.Context, src QuerySource, sink Sink) (sum Summary, err error) {
	defer func() {
		if err != nil && ctx.Err() != nil {
			j.flushAfterCancel(ctx, sink)
		}
	}()
	start := time.Now()
	batch := make([]string, 0, j.opts.BatchSize)
	line := 0

	for done := false; !done; {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		batch = batch[:0]
		for len(batch) < j.opts.BatchSize {
			q, err := src.Next(ctx)
			if errors.Is(err, io.EOF) {
				done = true
				break
			}
			if err != nil {
				return sum, fmt.Errorf("reading query line %d: %w", line+len(batch)+1, err)
			}
			batch = append(batch, q)
		}
		if len(batch) == 0 {
			break
		}

		results, err := j.scoreBatch(ctx, line, batch)
		if err != nil {
			return sum, err
		}
		records := make([]Record, 0, len(batch))
		for i, q := range batch {
			sum.add(results[i])
			for _, rec := range j.records(line+i+1, q, results[i]) {
				records = append(records, rec)
				sum.Records++
				if j.opts.Limit > 0 && sum.Records >= j.opts.Limit {
					sum.LimitReached = true
					break
				}
			}
			if sum.LimitReached {
				done = true
				break
			}
		}
		line += len(batch)
		if err := sink.Write(ctx, records); err != nil {
			return sum, fmt.Errorf("writing records: %w", err)
		}
		if m := j.opts.Metrics; m != nil {
			m.RecordsTotal.Add(float64(len(records)))
		}
	}

	if err := sink.Flush(ctx); err != nil {
		return sum, fmt.Errorf("flushing records: %w", err)
	}
	sum.Duration = time.Since(start)
	j.logger.Info("join finished",
		"queries", sum.Queries,
		"matched", sum.Matched,
		"no_match", sum.NoMatch,
		"too_short", sum.TooShort,
		"records", sum.Records,
		"limit_reached", sum.LimitReached,
		"duration", sum.Duration,
	)
	return sum, nil
}

// flushAfterCancel delivers buffered records once the run context is gone.
func (j *Joiner) flushAfterCancel(ctx context.Context, sink Sink) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelFlushTimeout)
	defer cancel()
	if err := sink.Flush(fctx); err != nil {
		j.logger.Warn("flush after cancellation failed", "error", err)
	}
}

// Process scores one query and delivers its records to sink immediately.
// It serves streaming sources that hand over queries one at a time.
func (j *Joiner) Process(ctx context.Context, line int, query string, sink Sink) (scorer.Result, error) {
	res, err := j.score(ctx, query)
	if err != nil {
		return res, fmt.Errorf("query line %d: %w", line, err)
	}
	records := j.records(line, query, res)
	if len(records) == 0 {
		return res, nil
	}
	if err := sink.Write(ctx, records); err != nil {
		return res, fmt.Errorf("writing records: %w", err)
	}
	if err := sink.Flush(ctx); err != nil {
		return res, fmt.Errorf("flushing records: %w", err)
	}
	if m := j.opts.Metrics; m != nil {
		m.RecordsTotal.Add(float64(len(records)))
	}
	return res, nil
}

func (j *Joiner) records(line int, query string, res scorer.Result) []Record {
	if res.Status != scorer.StatusMatched {
		return nil
	}
	out := make([]Record, 0, len(res.Positions))
	for _, pos := range res.Positions {
		out = append(out, Record{
			Line:      line,
			Query:     query,
			Reference: j.refs[pos],
			Position:  pos,
			Streak:    res.Streak,
		})
	}
	return out
}

// scoreBatch scores a batch with up to Workers goroutines. Results keep the
// batch order.
func (j *Joiner) scoreBatch(ctx context.Context, offset int, batch []string) ([]scorer.Result, error) {
	results := make([]scorer.Result, len(batch))
	if j.opts.Workers == 1 {
		for i, q := range batch {
			res, err := j.score(ctx, q)
			if err != nil {
				return nil, fmt.Errorf("query line %d: %w", offset+i+1, err)
			}
			results[i] = res
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.opts.Workers)
	for i, q := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := j.score(gctx, q)
			if err != nil {
				return fmt.Errorf("query line %d: %w", offset+i+1, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (j *Joiner) score(ctx context.Context, query string) (scorer.Result, error) {
	start := time.Now()
	var (
		res scorer.Result
		err error
	)
	if j.opts.Cache != nil {
		res, _, err = j.opts.Cache.GetOrCompute(ctx, query, func() (scorer.Result, error) {
			return j.scorer.Score(query)
		})
	} else {
		res, err = j.scorer.Score(query)
	}

	if m := j.opts.Metrics; m != nil {
		m.ScoreLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			m.QueriesTotal.WithLabelValues("error").Inc()
		} else {
			m.QueriesTotal.WithLabelValues(res.Status.String()).Inc()
			if res.Status == scorer.StatusMatched {
				m.MatchesPerQuery.Observe(float64(len(res.Positions)))
			}
		}
	}
	return res, err
}
