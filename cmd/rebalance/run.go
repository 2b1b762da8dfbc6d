package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"

	"github.com/hvkshetry/rebalancer/internal/batch"
	"github.com/hvkshetry/rebalancer/internal/config"
	"github.com/hvkshetry/rebalancer/internal/modules/washsale"
)

type runCmd struct {
	cfg             *config.Config
	input           string
	restrictionsIn  string
	restrictionsOut string
}

func (*runCmd) Name() string { return "run" }
func (*runCmd) Synopsis() string {
	return "optimize a batch of strategies and print the result as JSON"
}
func (*runCmd) Usage() string {
	return `rebalance run -input <request.json> [-restrictions <in.msgpack>] [-restrictions-out <out.msgpack>]

  Reads a batch request (strategies, securities, tax rates) from the
  input file, runs the tax-aware optimization, and writes the result
  JSON to stdout. Wash-sale restrictions from earlier runs can be
  carried in and the updated set written back out.
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.input, "input", "", "Path to the batch request JSON file.")
	f.StringVar(&c.restrictionsIn, "restrictions", "", "Path to a restriction snapshot from a prior run.")
	f.StringVar(&c.restrictionsOut, "restrictions-out", "", "Path to write the updated restriction snapshot.")
}

func (c *runCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.input == "" {
		fmt.Fprintln(os.Stderr, "run: -input is required")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(c.input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read request: %v\n", err)
		return subcommands.ExitFailure
	}

	var req batch.Request
	if err := json.Unmarshal(data, &req); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse request: %v\n", err)
		return subcommands.ExitFailure
	}
	if req.Workers == 0 {
		req.Workers = c.cfg.Workers
	}

	if c.restrictionsIn != "" {
		snapshot, err := os.ReadFile(c.restrictionsIn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read restrictions: %v\n", err)
			return subcommands.ExitFailure
		}
		req.Restrictions, err = washsale.ImportRestrictionSet(snapshot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to import restrictions: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	runner := batch.NewRunner(log.Logger)
	result, err := runner.Run(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "batch run failed: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.restrictionsOut != "" {
		if err := os.WriteFile(c.restrictionsOut, result.RestrictionsSnapshot, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write restrictions: %v\n", err)
			return subcommands.ExitFailure
		}
		// The snapshot already lives in its own file; keep stdout lean
		result.RestrictionsSnapshot = nil
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type versionCmd struct{}

func (*versionCmd) Name() string             { return "version" }
func (*versionCmd) Synopsis() string         { return "print the rebalance version" }
func (*versionCmd) Usage() string            { return "rebalance version\n" }
func (*versionCmd) SetFlags(*flag.FlagSet)   {}
func (*versionCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	fmt.Println(version)
	return subcommands.ExitSuccess
}
