package sink

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/join"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/postgres"
)

var sample = []join.Record{
	{Line: 1, Query: "JOHN SMITH", Reference: "JOHN SMITH", Position: 0, Streak: 6},
	{Line: 2, Query: "SMYTHE", Reference: "SMYTHE CO", Position: 3, Streak: 2},
}

func TestTSVFormat(t *testing.T) {
	var buf bytes.Buffer
	s := NewTSV(&buf)
	require.NoError(t, s.Write(context.Background(), sample))
	assert.Zero(t, buf.Len(), "output is buffered until flush")

	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, "JOHN SMITH\tJOHN SMITH\t6\nSMYTHE\tSMYTHE CO\t2\n", buf.String())
}

type fakePublisher struct {
	failures int
	batches  [][]kafka.Event
}

func (f *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("broker unavailable")
	}
	f.batches = append(f.batches, append([]kafka.Event(nil), events...))
	return nil
}

func TestKafkaPublishesKeyedByQuery(t *testing.T) {
	pub := &fakePublisher{failures: 1}
	m := metrics.New()
	s := NewKafka(pub, m)

	require.NoError(t, s.Write(context.Background(), sample))
	require.NoError(t, s.Flush(context.Background()))
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "JOHN SMITH", pub.batches[0][0].Key)

	msgs, err := kafka.Messages(pub.batches[0])
	require.NoError(t, err)
	var rec join.Record
	require.NoError(t, json.Unmarshal(msgs[1].Value, &rec))
	assert.Equal(t, sample[1], rec)

	require.NoError(t, s.Flush(context.Background()))
	assert.Len(t, pub.batches, 1, "empty flush publishes nothing")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkFlushesTotal.WithLabelValues("kafka", "ok")))
}

func TestKafkaDropsBatchAfterRetries(t *testing.T) {
	pub := &fakePublisher{failures: 3}
	m := metrics.New()
	s := NewKafka(pub, m)

	require.NoError(t, s.Write(context.Background(), sample[:1]))
	assert.Error(t, s.Flush(context.Background()))
	assert.Empty(t, pub.batches)

	require.NoError(t, s.Write(context.Background(), sample[1:]))
	require.NoError(t, s.Flush(context.Background()))
	require.Len(t, pub.batches, 1)
	require.Len(t, pub.batches[0], 1, "failed batch is not republished")
	assert.Equal(t, "SMYTHE", pub.batches[0][0].Key)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkFlushesTotal.WithLabelValues("kafka", "error")))
}

func TestKafkaKeepsBufferWhenCancelled(t *testing.T) {
	pub := &fakePublisher{failures: 10}
	s := NewKafka(pub, nil)
	require.NoError(t, s.Write(context.Background(), sample))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Flush(ctx))
	assert.Len(t, s.buffer, 2)
}

type recordingSink struct {
	written int
	flushed int
	err     error
}

func (r *recordingSink) Write(_ context.Context, records []join.Record) error {
	r.written += len(records)
	return r.err
}

func (r *recordingSink) Flush(context.Context) error {
	r.flushed++
	return r.err
}

func TestMultiReachesEverySink(t *testing.T) {
	bad := &recordingSink{err: errors.New("disk full")}
	good := &recordingSink{}
	m := Multi{bad, good}

	err := m.Write(context.Background(), sample)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 2, good.written)

	assert.Error(t, m.Flush(context.Background()))
	assert.Equal(t, 1, good.flushed)
}

func TestPostgresCopyStatement(t *testing.T) {
	s := NewPostgres(nil, "qgram_matches", "run-1", nil)
	assert.Equal(t,
		`COPY "qgram_matches" ("run_id", "line", "query", "reference", "reference_pos", "streak", "created_at") FROM STDIN`,
		s.CopyStatement())
}

type failingTx struct{ calls int }

func (f *failingTx) InTx(context.Context, func(*sql.Tx) error) error {
	f.calls++
	return errors.New("connection reset")
}

func TestPostgresFlushKeepsBufferWhenCancelled(t *testing.T) {
	db := &failingTx{}
	m := metrics.New()
	s := NewPostgres(db, "qgram_matches", "run-1", m)

	require.NoError(t, s.Flush(context.Background()), "nothing buffered")
	assert.Zero(t, db.calls)

	require.NoError(t, s.Write(context.Background(), sample))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Flush(ctx))
	assert.Len(t, s.buffer, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkFlushesTotal.WithLabelValues("postgres", "error")))
}

func TestPostgresFlushDropsBatchAfterRetries(t *testing.T) {
	db := &failingTx{}
	s := NewPostgres(db, "qgram_matches", "run-1", nil)

	require.NoError(t, s.Write(context.Background(), sample))
	assert.Error(t, s.Flush(context.Background()))
	assert.Equal(t, 3, db.calls)
	assert.Empty(t, s.buffer)
}

// TestPostgresCopyLive runs against a live database when QG_TEST_POSTGRES
// is set; connection settings come from the QG_POSTGRES_* variables.
func TestPostgresCopyLive(t *testing.T) {
	if os.Getenv("QG_TEST_POSTGRES") == "" {
		t.Skip("QG_TEST_POSTGRES not set")
	}
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Postgres.MaxOpenConns = 1
	client, err := postgres.New(context.Background(), cfg.Postgres)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.DB.Exec(`CREATE TEMP TABLE qgram_matches_test (
		run_id TEXT, line INTEGER, query TEXT, reference TEXT,
		reference_pos INTEGER, streak INTEGER, created_at TIMESTAMPTZ)`)
	require.NoError(t, err)

	s := NewPostgres(client, "qgram_matches_test", "live", nil)
	require.NoError(t, s.Write(context.Background(), sample))
	require.NoError(t, s.Flush(context.Background()))

	var n int
	require.NoError(t, client.DB.QueryRow(`SELECT count(*) FROM qgram_matches_test WHERE run_id = 'live'`).Scan(&n))
	assert.Equal(t, 2, n)
}
