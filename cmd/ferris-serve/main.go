// Package main provides the ferris-serve static file server.
//
// Usage:
//
//	ferris-serve [flags] [<port> <directory>]
//
// Without positional arguments it serves ./public on port 8080.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/f4ah6o/ferris-serve-go/internal/config"
	"github.com/f4ah6o/ferris-serve-go/internal/resolve"
	"github.com/f4ah6o/ferris-serve-go/internal/response"
	"github.com/f4ah6o/ferris-serve-go/internal/server"
)

var errUsage = errors.New("usage: ferris-serve [flags] [<port> <directory>]")

func main() {
	cfg, err := loadConfig(os.Args[1:], os.Stderr)
	switch {
	case errors.Is(err, flag.ErrHelp):
		os.Exit(0)
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	case err != nil:
		fmt.Fprintf(os.Stderr, "ferris-serve: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg, os.Stderr)

	res, err := resolve.New(cfg.Root)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to resolve directory")
	}
	builder := response.NewBuilder(res, response.DefaultTypes().With(cfg.Types))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printBanner(os.Stdout, res.Root(), cfg)

	if err := server.New(cfg, builder, logger).ListenAndServe(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server error")
	}
}

// loadConfig builds the configuration from defaults, an optional config
// file, flags and positional arguments, each overriding the previous.
func loadConfig(args []string, stderr io.Writer) (config.Config, error) {
	fs := flag.NewFlagSet("ferris-serve", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "Path to a TOML or YAML config file")
	host := fs.String("host", "", "Interface to bind")
	mode := fs.String("mode", "", "Connection handling: concurrent or sequential")
	maxConns := fs.Int("max-conns", 0, "Maximum concurrent connections (0 = unlimited)")
	maxHead := fs.Int("max-head-bytes", 0, "Request head buffer size")
	readTimeout := fs.Duration("read-timeout", 0, "Per-connection read timeout")
	writeTimeout := fs.Duration("write-timeout", 0, "Per-connection write timeout")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format: console or json")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), errUsage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return cfg, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = *host
		case "mode":
			cfg.Mode = *mode
		case "max-conns":
			cfg.MaxConns = *maxConns
		case "max-head-bytes":
			cfg.MaxHeadBytes = *maxHead
		case "read-timeout":
			cfg.ReadTimeout = *readTimeout
		case "write-timeout":
			cfg.WriteTimeout = *writeTimeout
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		}
	})

	switch fs.NArg() {
	case 0:
	case 2:
		port, err := strconv.Atoi(fs.Arg(0))
		if err != nil {
			return cfg, fmt.Errorf("%w: invalid port %q", errUsage, fs.Arg(0))
		}
		cfg.Port = port
		cfg.Root = fs.Arg(1)
	default:
		return cfg, errUsage
	}

	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := w
	if cfg.LogFormat == config.FormatConsole {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: color.NoColor}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func printBanner(w io.Writer, root string, cfg config.Config) {
	bold := color.New(color.FgCyan, color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	fmt.Fprintf(w, "🌐 Serving %s at %s\n", bold(root), bold("http://"+cfg.Addr()))
	fmt.Fprintf(w, "   mode=%s max_conns=%d read_timeout=%s write_timeout=%s\n",
		cfg.Mode, cfg.MaxConns, cfg.ReadTimeout, cfg.WriteTimeout)
	fmt.Fprintln(w, faint("Press Ctrl+C to stop"))
}
