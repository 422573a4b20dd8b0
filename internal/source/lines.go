// Package source reads reference and query strings from line files,
// Postgres and Kafka.
package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/errors"
)

// MaxLineSize bounds a single input line.
const MaxLineSize = 1 << 20

// Lines yields one string per line of r with the line terminator removed.
type Lines struct {
	scanner *bufio.Scanner
	closer  io.Closer
}

func NewLines(r io.Reader) *Lines {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), MaxLineSize)
	l := &Lines{scanner: sc}
	if c, ok := r.(io.Closer); ok {
		l.closer = c
	}
	return l
}

// OpenFile opens path for line-by-line reading. "-" reads stdin.
func OpenFile(path string) (*Lines, error) {
	if path == "-" {
		return NewLines(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrIO, apperrors.ExitFailure, "opening %s: %v", path, err)
	}
	return NewLines(f), nil
}

// Next returns the next line or io.EOF.
func (l *Lines) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if l.scanner.Scan() {
		return strings.TrimSuffix(l.scanner.Text(), "\r"), nil
	}
	if err := l.scanner.Err(); err != nil {
		return "", apperrors.Newf(apperrors.ErrIO, apperrors.ExitFailure, "reading lines: %v", err)
	}
	return "", io.EOF
}

func (l *Lines) Close() error {
	if l.closer == nil || l.closer == os.Stdin {
		return nil
	}
	return l.closer.Close()
}

// ReadFile loads every line of path into memory.
func ReadFile(ctx context.Context, path string) ([]string, error) {
	l, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer l.Close()
	out, err := Drain(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return out, nil
}

// Drain collects every remaining string from src.
func Drain(ctx context.Context, src interface {
	Next(context.Context) (string, error)
}) ([]string, error) {
	var out []string
	for {
		s, err := src.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
}

// Slice serves queries from memory.
type Slice struct {
	items []string
	pos   int
}

func FromSlice(items []string) *Slice {
	return &Slice{items: items}
}

func (s *Slice) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.pos >= len(s.items) {
		return "", io.EOF
	}
	s.pos++
	return s.items[s.pos-1], nil
}
