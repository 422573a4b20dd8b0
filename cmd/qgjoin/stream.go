package main

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/source"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/logger"
)

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Join queries consumed from Kafka against a reference file",
		ArgsUsage: "<references>",
		Description: "Queries are read from kafka.topics.queries, either as raw text or as\n" +
			"{\"query\": \"...\"}. Matches go to the configured outputs. Runs until\n" +
			"interrupted.",
		Action: runStream,
	}
}

func runStream(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	var refPath string
	if cfg.Postgres.ReferenceQuery == "" {
		if c.NArg() != 1 {
			return usageError("stream expects a reference path")
		}
		refPath = c.Args().First()
	} else if c.NArg() != 0 {
		return usageError("stream takes no arguments when postgres.referenceQuery is set")
	}

	runID := newRunID()
	ctx := logger.WithRunID(c.Context, runID)
	log := logger.FromContext(ctx)

	d, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.close()

	refs, err := d.references(ctx, refPath)
	if err != nil {
		return err
	}
	joiner, err := d.joiner(refs)
	if err != nil {
		return err
	}
	out, err := d.sinks(runID, c.App.Writer)
	if err != nil {
		return err
	}

	checker := health.NewChecker()
	if d.pg != nil {
		checker.Register("postgres", d.pg.Ping)
	}
	if d.redis != nil {
		checker.Register("redis", d.redis.Ping)
		checker.Register("result-cache", d.cache.Check)
	}
	stopMetrics := d.serveMetrics(map[string]http.Handler{
		"/health/live":  checker.LiveHandler(),
		"/health/ready": checker.ReadyHandler(),
	})
	defer stopMetrics()

	var line atomic.Int64
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Queries, func(ctx context.Context, msg kafka.Message) error {
		n := int(line.Add(1))
		query := source.DecodeQuery(msg.Value)
		_, err := joiner.Process(ctx, n, query, out)
		return err
	})

	log.Info("stream join ready",
		"references", len(refs),
		"topic", cfg.Kafka.Topics.Queries,
		"group", cfg.Kafka.ConsumerGroup,
		"outputs", cfg.Output.Format,
	)
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	log.Info("stream join stopped", "queries", line.Load())
	return nil
}
