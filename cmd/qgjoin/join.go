package main

import (
	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/logger"
)

func joinCommand() *cli.Command {
	return &cli.Command{
		Name:      "join",
		Usage:     "Print the best-matching references for every query",
		ArgsUsage: "<references> <queries>",
		Description: "Each query line is scored against every reference line; all references tied\n" +
			"at the highest streak are written as query<TAB>reference<TAB>streak.\n" +
			"A path of - reads stdin. When postgres.referenceQuery or postgres.queryQuery\n" +
			"is configured, the matching argument is omitted.",
		Action: runJoin,
	}
}

func runJoin(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	args := c.Args().Slice()
	want := 0
	if cfg.Postgres.ReferenceQuery == "" {
		want++
	}
	if cfg.Postgres.QueryQuery == "" {
		want++
	}
	if len(args) != want {
		return usageError("join expects %d path argument(s), got %d", want, len(args))
	}
	var refPath, queryPath string
	if cfg.Postgres.ReferenceQuery == "" {
		refPath, args = args[0], args[1:]
	}
	if cfg.Postgres.QueryQuery == "" {
		queryPath = args[0]
	}

	runID := newRunID()
	ctx := logger.WithRunID(c.Context, runID)
	log := logger.FromContext(ctx)

	d, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.close()
	stopMetrics := d.serveMetrics(nil)
	defer stopMetrics()

	refs, err := d.references(ctx, refPath)
	if err != nil {
		return err
	}
	joiner, err := d.joiner(refs)
	if err != nil {
		return err
	}

	src, closer, err := d.queries(ctx, queryPath)
	if err != nil {
		return err
	}
	defer closer.Close()

	out, err := d.sinks(runID, c.App.Writer)
	if err != nil {
		return err
	}

	log.Info("join started", "references", len(refs), "outputs", cfg.Output.Format, "workers", cfg.Join.Workers)
	sum, err := joiner.Run(ctx, src, out)
	if err != nil {
		return err
	}
	log.Info("join complete", "records", sum.Records, "duration", sum.Duration)
	return nil
}
