package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/flagx"
)

var serverFlags = []string{"-a", "-d", "-m", "-f", "-u", "-p", "-b", "-g", "-e", "-i", "-w", "-l"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN, or "memory"
//	-m string   media backend: s3 or bolt
//	-f string   bbolt media file
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-i int      capture idle timeout, seconds
//	-w int      sweep interval, seconds
//	-l string   log level
//
// os.Args is first filtered down to these flags with flagx.FilterArgs so the
// -c/-config flag handled by parseJson does not trip the parser.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN or \"memory\"")
	fs.StringVar(&config.MediaBackend, "m", config.MediaBackend, "media backend (s3|bolt)")
	fs.StringVar(&config.BoltPath, "f", config.BoltPath, "bbolt media file")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	idleTimeout := fs.Int("i", int(config.IdleTimeout.Seconds()), "capture idle timeout (in seconds)")
	sweepInterval := fs.Int("w", int(config.SweepInterval.Seconds()), "sweep interval (in seconds)")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Durations from JSON may carry sub-second precision; only an explicit
	// flag replaces them.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "i":
			config.IdleTimeout = time.Duration(*idleTimeout) * time.Second
		case "w":
			config.SweepInterval = time.Duration(*sweepInterval) * time.Second
		}
	})
}
