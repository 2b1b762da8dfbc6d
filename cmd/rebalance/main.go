// Package main provides the rebalance CLI: thin glue that feeds JSON
// inputs to the optimization engine and writes JSON results. All market
// data and portfolio state arrive in the input file; the binary fetches
// nothing and persists nothing beyond the files named on the flags.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"github.com/hvkshetry/rebalancer/internal/config"
	"github.com/hvkshetry/rebalancer/pkg/logger"
)

const version = "0.3.0"

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.PrettyLogs})
	logger.SetGlobalLogger(log)

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&runCmd{cfg: cfg}, "")
	commander.Register(&netCmd{}, "")
	commander.Register(&versionCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
