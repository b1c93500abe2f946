package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/flagx"
)

// parseFlags overlays the flags listed in the package doc. Unknown
// arguments are filtered out first with flagx.FilterArgs.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-s", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "relay base URL")
	fs.StringVar(&cfg.StatePath, "s", cfg.StatePath, "local state file")
	pollInterval := fs.Int("i", int(cfg.PollInterval.Seconds()), "watch poll interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "i" {
			cfg.PollInterval = time.Duration(*pollInterval) * time.Second
		}
	})
}
