// hashline digests every line of an input file through the parallel engine
// and writes one 64-character hex digest line per input line, in order.
//
// Usage:
//
//	hashline [flags] <input_file> <output_file>
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/pipelined/hashline/log"
	"github.com/pipelined/hashline/pipe"
	"github.com/pipelined/hashline/ref"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "hashline:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("hashline", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)
	batchSize := flags.Int("batch-size", 0, "maximum records per engine dispatch")
	workers := flags.Int("workers", 0, "parallel lanes of the software engine")
	configPath := flags.String("config", "", "YAML file with tuning knobs")
	debug := flags.Bool("debug", false, "enable debug diagnostics")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 2 {
		return fmt.Errorf("usage: hashline [flags] <input_file> <output_file>")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	// flags override config file values
	if *batchSize > 0 {
		cfg.BatchSize = *batchSize
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	logger := log.GetLogger()
	if *debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	in, err := os.Open(flags.Arg(0))
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(flags.Arg(1))
	if err != nil {
		return err
	}

	options := []pipe.Option{
		pipe.WithBackend(ref.Backend{Workers: cfg.Workers}),
		pipe.WithLogger(logger),
		pipe.WithName("hashline"),
	}
	if cfg.BatchSize > 0 {
		options = append(options, pipe.WithBatchSize(cfg.BatchSize))
	}

	p, err := pipe.New(options...)
	if err != nil {
		out.Close()
		return err
	}

	if err := p.Run(in, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
