package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/join"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/source"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/redis"
)

// deps holds the external clients one command needs. Unused integrations
// stay nil.
type deps struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	pg      *postgres.Client
	redis   *redis.Client
	cache   *cache.ResultCache
	closers []func() error
}

func connect(ctx context.Context, cfg *config.Config) (*deps, error) {
	d := &deps{cfg: cfg, metrics: metrics.New()}

	if usesPostgres(cfg) {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			d.close()
			return nil, apperrors.Newf(apperrors.ErrUnavailable, apperrors.ExitFailure, "postgres: %v", err)
		}
		d.pg = pg
		d.closers = append(d.closers, pg.Close)
		slog.Info("connected to postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	if cfg.Redis.Enabled {
		rdb, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			d.close()
			return nil, apperrors.Newf(apperrors.ErrUnavailable, apperrors.ExitFailure, "redis: %v", err)
		}
		d.redis = rdb
		d.closers = append(d.closers, rdb.Close)
		slog.Info("connected to redis", "addr", cfg.Redis.Addr)
	}
	return d, nil
}

func (d *deps) close() {
	closeAll(d.closers)
	d.closers = nil
}

func usesPostgres(cfg *config.Config) bool {
	return cfg.Postgres.ReferenceQuery != "" ||
		cfg.Postgres.QueryQuery != "" ||
		slices.Contains(cfg.Output.Formats(), "postgres")
}

// references loads the reference list from Postgres when a statement is
// configured, otherwise from path.
func (d *deps) references(ctx context.Context, path string) ([]string, error) {
	if stmt := d.cfg.Postgres.ReferenceQuery; stmt != "" {
		refs, err := source.LoadStrings(ctx, d.pg.DB, stmt)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrIO, apperrors.ExitFailure, "loading references: %v", err)
		}
		return refs, nil
	}
	return source.ReadFile(ctx, path)
}

// queries opens the query source the same way references does.
func (d *deps) queries(ctx context.Context, path string) (join.QuerySource, io.Closer, error) {
	if stmt := d.cfg.Postgres.QueryQuery; stmt != "" {
		rows, err := source.Query(ctx, d.pg.DB, stmt)
		if err != nil {
			return nil, nil, apperrors.Newf(apperrors.ErrIO, apperrors.ExitFailure, "loading queries: %v", err)
		}
		return rows, rows, nil
	}
	lines, err := source.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	return lines, lines, nil
}

// sinks builds the configured output chain. TSV goes to stdout unless an
// output path is set.
func (d *deps) sinks(runID string, stdout io.Writer) (join.Sink, error) {
	var out sink.Multi
	for _, format := range d.cfg.Output.Formats() {
		switch format {
		case "tsv":
			w := stdout
			if path := d.cfg.Output.Path; path != "" && path != "-" {
				f, err := os.Create(path)
				if err != nil {
					return nil, apperrors.Newf(apperrors.ErrIO, apperrors.ExitFailure, "creating %s: %v", path, err)
				}
				d.closers = append(d.closers, f.Close)
				w = f
			}
			out = append(out, sink.NewTSV(w))
		case "postgres":
			out = append(out, sink.NewPostgres(d.pg, d.cfg.Postgres.MatchTable, runID, d.metrics))
		case "kafka":
			producer := kafka.NewProducer(d.cfg.Kafka, d.cfg.Kafka.Topics.Matches)
			d.closers = append(d.closers, producer.Close)
			out = append(out, sink.NewKafka(producer, d.metrics))
		}
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

// joiner builds the reference index and attaches the Redis cache when one
// is connected.
func (d *deps) joiner(refs []string) (*join.Joiner, error) {
	opts, err := indexOptions(d.cfg.Join)
	if err != nil {
		return nil, err
	}
	j, err := join.New(refs, opts, join.Options{
		Workers:   d.cfg.Join.Workers,
		BatchSize: d.cfg.Join.BatchSize,
		Limit:     d.cfg.Join.Limit,
		Metrics:   d.metrics,
	})
	if err != nil {
		return nil, err
	}
	if d.redis != nil {
		d.cache = cache.New(d.redis, j.Index().Fingerprint(), d.cfg.Redis.CacheTTL, d.metrics)
		j.UseCache(d.cache)
	}
	return j, nil
}

// serveMetrics starts the metrics endpoint when enabled and returns a stop
// function that is always safe to call.
func (d *deps) serveMetrics(routes map[string]http.Handler) func() {
	if !d.cfg.Metrics.Enabled {
		return func() {}
	}
	shutdown := d.metrics.StartServer(d.cfg.Metrics.Port, routes)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			slog.Warn("metrics server shutdown failed", "error", err)
		}
	}
}

func newRunID() string {
	return time.Now().UTC().Format("20060102T150405.000000000Z")
}
