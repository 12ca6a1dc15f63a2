package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fastapicloud/buildlogs"
	"github.com/fastapicloud/buildlogs/config"
	"github.com/fastapicloud/buildlogs/logger"
)

// options holds parsed command line arguments.
type options struct {
	configPath   string
	baseURL      string
	token        string
	idleTimeout  time.Duration
	plain        bool
	raw          bool
	logFile      string
	logLevel     string
	logFormat    string
	deploymentID string
}

// interactive reports whether the TUI should run.
func (o *options) interactive() bool {
	return !o.plain && !o.raw
}

func (o *options) mode() string {
	switch {
	case o.raw:
		return "raw"
	case o.plain:
		return "plain"
	default:
		return "tui"
	}
}

func parseArgs(args []string, stderr io.Writer) (*options, *flag.FlagSet, error) {
	var opts options
	fs := flag.NewFlagSet("buildlogs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: buildlogs [flags] <deployment-id>")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", "", "Path to config file (default: user config dir/buildlogs/config.toml)")
	fs.StringVar(&opts.baseURL, "base-url", "", "API base URL (overrides "+config.EnvBaseURL+")")
	fs.StringVar(&opts.token, "token", "", "API token (overrides "+config.EnvToken+")")
	fs.DurationVar(&opts.idleTimeout, "idle-timeout", 0, "Maximum silence between log chunks, 0 disables")
	fs.BoolVar(&opts.plain, "plain", false, "Print lines to stdout instead of starting the TUI")
	fs.BoolVar(&opts.raw, "raw", false, "Print lines re-encoded as NDJSON")
	fs.StringVar(&opts.logFile, "log-file", "", "Write diagnostics to this file")
	fs.StringVar(&opts.logLevel, "log-level", "", "Diagnostic level: debug, info, warn, error")
	fs.StringVar(&opts.logFormat, "log-format", "", "Diagnostic format: text, json")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, nil, errors.New("expected exactly one deployment id")
	}
	opts.deploymentID = fs.Arg(0)
	if err := buildlogs.ValidateDeploymentID(opts.deploymentID); err != nil {
		return nil, nil, err
	}
	return &opts, fs, nil
}

// resolveConfig layers explicitly set flags over the file and environment
// configuration, then validates the result.
func resolveConfig(opts *options, fs *flag.FlagSet, getenv func(string) string) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath, getenv)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "base-url":
			cfg.API.BaseURL = opts.baseURL
		case "token":
			cfg.API.Token = opts.token
		case "idle-timeout":
			cfg.Stream.IdleTimeout = config.Duration(opts.idleTimeout)
		case "log-file":
			cfg.Log.File = opts.logFile
		case "log-level":
			cfg.Log.Level = opts.logLevel
		case "log-format":
			cfg.Log.Format = opts.logFormat
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openLogger builds the diagnostic logger. Diagnostics go to the configured
// file, to stderr in line modes, and nowhere while the TUI owns the terminal.
func openLogger(cfg config.LogConfig, interactive bool, stderr io.Writer) (*logger.Logger, func(), error) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	format, err := logger.ParseFormat(cfg.Format)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case cfg.File != "":
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return logger.New(f, level, format), func() { f.Close() }, nil
	case interactive:
		return logger.Discard(), func() {}, nil
	default:
		return logger.New(stderr, level, format), func() {}, nil
	}
}
