package main

import (
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/qgram"
)

func encodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "encode",
		Usage:     "Show the symbol codes and q-gram count of each argument",
		ArgsUsage: "<string>...",
		Action:    runEncode,
	}
}

func runEncode(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	opts, err := indexOptions(cfg.Join)
	if err != nil {
		return err
	}
	if c.NArg() == 0 {
		return usageError("encode expects at least one string")
	}

	enc := qgram.Encoder{Policy: opts.Policy}
	for _, s := range c.Args().Slice() {
		codes, err := enc.EncodeString(s)
		if err != nil {
			return err
		}
		parts := make([]string, len(codes))
		for i, code := range codes {
			parts[i] = strconv.Itoa(int(code))
		}
		printf(c, "%s\t%s\t%d\n", s, strings.Join(parts, " "), qgram.Count(len(codes), opts.Q, opts.Boundary))
	}
	return nil
}
