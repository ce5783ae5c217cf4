package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/chatmesh/internal/flagx"
)

// parseFlags overlays cfg with -a, -f and -t. Other flags on the command
// line are ignored.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-f", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerAddr, "a", cfg.ServerAddr, "address and port of the chat server")
	fs.StringVar(&cfg.HistoryPath, "f", cfg.HistoryPath, "local history database file")
	fs.DurationVar(&cfg.Timeout, "t", cfg.Timeout, "reply timeout for login and register")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
