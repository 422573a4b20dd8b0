package source

import (
	"context"
	"database/sql"
	"fmt"
	"io"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Rows streams the first column of a SELECT as strings. NULLs become "".
type Rows struct {
	rows *sql.Rows
}

// Query runs stmt and returns a source over its first column.
//
// Example reference statement:
//
//	SELECT name FROM companies ORDER BY id
func Query(ctx context.Context, db Querier, stmt string, args ...any) (*Rows, error) {
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying strings: %w", err)
	}
	return &Rows{rows: rows}, nil
}

func (r *Rows) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return "", fmt.Errorf("iterating rows: %w", err)
		}
		return "", io.EOF
	}
	var s sql.NullString
	if err := r.rows.Scan(&s); err != nil {
		return "", fmt.Errorf("scanning row: %w", err)
	}
	return s.String, nil
}

func (r *Rows) Close() error {
	return r.rows.Close()
}

// LoadStrings runs stmt and returns every first-column value.
func LoadStrings(ctx context.Context, db Querier, stmt string, args ...any) ([]string, error) {
	rows, err := Query(ctx, db, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return Drain(ctx, rows)
}
