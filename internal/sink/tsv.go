// Package sink delivers match records to a tab-separated stream, a
// Postgres table or a Kafka topic.
package sink

import (
	"bufio"
	"context"
	"io"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/join"
	apperrors "github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/errors"
)

// TSV writes "<query>\t<reference>\t<streak>\n" per record.
type TSV struct {
	w *bufio.Writer
}

func NewTSV(w io.Writer) *TSV {
	return &TSV{w: bufio.NewWriterSize(w, 64*1024)}
}

func (t *TSV) Write(_ context.Context, records []join.Record) error {
	for _, r := range records {
		t.w.WriteString(r.Query)
		t.w.WriteByte('\t')
		t.w.WriteString(r.Reference)
		t.w.WriteByte('\t')
		t.w.WriteString(strconv.Itoa(r.Streak))
		if err := t.w.WriteByte('\n'); err != nil {
			return apperrors.Newf(apperrors.ErrIO, apperrors.ExitFailure, "writing tsv: %v", err)
		}
	}
	return nil
}

func (t *TSV) Flush(context.Context) error {
	if err := t.w.Flush(); err != nil {
		return apperrors.Newf(apperrors.ErrIO, apperrors.ExitFailure, "flushing tsv: %v", err)
	}
	return nil
}
