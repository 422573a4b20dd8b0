package sink

import (
	"context"
	"errors"

	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/join"
)

// Multi fans records out to several sinks. Every sink is attempted; errors
// are joined.
type Multi []join.Sink

func (m Multi) Write(ctx context.Context, records []join.Record) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Write(ctx, records))
	}
	return errors.Join(errs...)
}

func (m Multi) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Flush(ctx))
	}
	return errors.Join(errs...)
}
