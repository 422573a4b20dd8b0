package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/join"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/resilience"
)

// matchColumns is the column order used by COPY.
var matchColumns = []string{"run_id", "line", "query", "reference", "reference_pos", "streak", "created_at"}

// TxRunner runs fn in a transaction; *postgres.Client satisfies it.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Postgres buffers records and bulk-loads them with COPY on Flush.
//
// It requires a table such as:
//
//	CREATE TABLE qgram_matches (
//	    run_id        TEXT        NOT NULL,
//	    line          INTEGER     NOT NULL,
//	    query         TEXT        NOT NULL,
//	    reference     TEXT        NOT NULL,
//	    reference_pos INTEGER     NOT NULL,
//	    streak        INTEGER     NOT NULL,
//	    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type Postgres struct {
	db      TxRunner
	table   string
	runID   string
	buffer  []join.Record
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewPostgres(db TxRunner, table, runID string, m *metrics.Metrics) *Postgres {
	return &Postgres{
		db:      db,
		table:   table,
		runID:   runID,
		metrics: m,
		logger:  slog.Default().With("component", "postgres-sink", "table", table),
	}
}

// CopyStatement is the COPY statement issued per flush.
func (p *Postgres) CopyStatement() string {
	return pq.CopyIn(p.table, matchColumns...)
}

func (p *Postgres) Write(_ context.Context, records []join.Record) error {
	p.buffer = append(p.buffer, records...)
	return nil
}

// Flush copies the buffered records in one transaction, retrying the whole
// transaction on failure. If ctx is cancelled the buffer is kept for a later
// Flush; once retries are exhausted it is dropped and the error returned.
func (p *Postgres) Flush(ctx context.Context) error {
	if len(p.buffer) == 0 {
		return nil
	}
	now := time.Now().UTC()
	stmtText := p.CopyStatement()
	err := resilience.Retry(ctx, "postgres-copy", resilience.RetryConfig{AttemptTimeout: time.Minute}, func(ctx context.Context) error {
		return p.db.InTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, stmtText)
			if err != nil {
				return fmt.Errorf("preparing copy: %w", err)
			}
			for _, r := range p.buffer {
				if _, err := stmt.ExecContext(ctx, p.runID, r.Line, r.Query, r.Reference, r.Position, r.Streak, now); err != nil {
					stmt.Close()
					return fmt.Errorf("copying record for line %d: %w", r.Line, err)
				}
			}
			if _, err := stmt.ExecContext(ctx); err != nil {
				stmt.Close()
				return fmt.Errorf("finishing copy: %w", err)
			}
			return stmt.Close()
		})
	})
	p.observe(err)
	if err != nil && ctx.Err() != nil {
		return err
	}
	if err != nil {
		p.logger.Error("dropping records after failed copy", "count", len(p.buffer), "error", err)
	} else {
		p.logger.Debug("records copied", "count", len(p.buffer))
	}
	p.buffer = p.buffer[:0]
	return err
}

func (p *Postgres) observe(err error) {
	if p.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.metrics.SinkFlushesTotal.WithLabelValues("postgres", status).Inc()
}
