package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/diagrams/internal/flagx"
)

// parseFlags overlays cfg with -a, -f and -t. Other arguments are ignored.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-f", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the diagrams API")
	fs.StringVar(&cfg.TokenFile, "f", cfg.TokenFile, "file to keep the access token in")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
