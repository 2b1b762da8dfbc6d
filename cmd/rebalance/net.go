package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"

	"github.com/hvkshetry/rebalancer/internal/modules/netting"
)

type netCmd struct {
	input string
}

func (*netCmd) Name() string { return "net" }
func (*netCmd) Synopsis() string {
	return "net per-strategy trade sets across shared accounts and print the trade table"
}
func (*netCmd) Usage() string {
	return `rebalance net -input <trades.json>

  Reads per-strategy trade sets (strategy id, account id, trades) from
  the input file, combines offsetting flows per account and security,
  and writes the net rows and the flattened attribution table as JSON.
`
}

func (c *netCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.input, "input", "", "Path to the per-strategy trades JSON file.")
}

func (c *netCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.input == "" {
		fmt.Fprintln(os.Stderr, "net: -input is required")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(c.input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read trades: %v\n", err)
		return subcommands.ExitFailure
	}

	var inputs []netting.StrategyTrades
	if err := json.Unmarshal(data, &inputs); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse trades: %v\n", err)
		return subcommands.ExitFailure
	}

	netter := netting.NewNetter(log.Logger)
	netted := netter.Net(inputs)

	out := struct {
		Netted interface{} `json:"netted"`
		Table  interface{} `json:"table"`
	}{Netted: netted, Table: netting.Table(netted)}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
