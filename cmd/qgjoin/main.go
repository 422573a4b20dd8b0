package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/index"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/qgram"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		slog.Error("qgjoin failed", "error", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "qgjoin",
		Usage:     "Fuzzy-join two string lists by positional q-gram overlap",
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file path",
			},
			&cli.IntFlag{
				Name:  "q",
				Usage: "q-gram width",
			},
			&cli.StringFlag{
				Name:  "boundary",
				Usage: "gram count policy: inclusive (n-q+1) or legacy (n-q)",
			},
			&cli.StringFlag{
				Name:  "unknown",
				Usage: "unrecognised character policy: reject, skip or sentinel",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "concurrent scoring workers",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "queries scored per batch",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "stop after this many records (0 = unlimited)",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "TSV output file (default stdout)",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "comma-separated sinks: tsv, postgres, kafka",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text or json",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "serve Prometheus metrics",
			},
		},
		Commands: []*cli.Command{
			joinCommand(),
			streamCommand(),
			encodeCommand(),
		},
	}
}

// loadConfig resolves configuration from defaults, the config file, QG_*
// variables and finally the global flags, then installs the logger.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("q") {
		cfg.Join.Q = c.Int("q")
	}
	if c.IsSet("boundary") {
		cfg.Join.Boundary = c.String("boundary")
	}
	if c.IsSet("unknown") {
		cfg.Join.Unknown = c.String("unknown")
	}
	if c.IsSet("workers") {
		cfg.Join.Workers = c.Int("workers")
	}
	if c.IsSet("batch-size") {
		cfg.Join.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("limit") {
		cfg.Join.Limit = c.Int("limit")
	}
	if c.IsSet("out") {
		cfg.Output.Path = c.String("out")
	}
	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = c.String("log-format")
	}
	if c.IsSet("metrics") {
		cfg.Metrics.Enabled = c.Bool("metrics")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, c.App.ErrWriter)
	return cfg, nil
}

func indexOptions(cfg config.JoinConfig) (index.Options, error) {
	boundary, err := qgram.ParseBoundary(cfg.Boundary)
	if err != nil {
		return index.Options{}, err
	}
	policy, err := qgram.ParsePolicy(cfg.Unknown)
	if err != nil {
		return index.Options{}, err
	}
	return index.Options{Q: cfg.Q, Boundary: boundary, Policy: policy}, nil
}

func usageError(format string, args ...any) error {
	return apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitUsage, format, args...)
}

// closeAll runs deferred closers in reverse order and logs failures.
func closeAll(closers []func() error) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("close failed", "error", err)
		}
	}
}

func printf(c *cli.Context, format string, args ...any) {
	fmt.Fprintf(c.App.Writer, format, args...)
}
