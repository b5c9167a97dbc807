package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

const (
	version           = "1.0.0"
	defaultConfigPath = "configs/config.yaml"
)

var configPath = flag.String("config", defaultConfigPath, "path to the YAML config file")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, "bitbalance")
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&serveCmd{}, "server")
	commander.Register(&priceCmd{}, "prices")
	commander.Register(&migrateCmd{}, "storage")
	commander.Register(&alertsAddCmd{}, "alerts")
	commander.Register(&alertsEvaluateCmd{}, "alerts")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
