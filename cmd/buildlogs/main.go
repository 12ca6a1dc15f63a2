// Command buildlogs follows the build logs of a FastAPI Cloud deployment.
//
// Usage:
//
//	FASTAPI_CLOUD_TOKEN=... buildlogs [flags] <deployment-id>
//
// Flags:
//
//	-config string        Path to config file (default: user config dir/buildlogs/config.toml)
//	-base-url string      API base URL (overrides FASTAPI_CLOUD_BASE_URL)
//	-token string         API token (overrides FASTAPI_CLOUD_TOKEN)
//	-idle-timeout dur     Maximum silence between log chunks, 0 disables
//	-plain                Print lines to stdout instead of starting the TUI
//	-raw                  Print lines re-encoded as NDJSON
//	-log-file string      Write diagnostics to this file
//	-log-level string     Diagnostic level: debug, info, warn, error
//	-log-format string    Diagnostic format: text, json
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/fastapicloud/buildlogs"
	bt "github.com/fastapicloud/buildlogs/bubbletea"
	"github.com/fastapicloud/buildlogs/cloud"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Exit statuses beyond 0 (build completed) and 1 (build failed or stream
// error).
const (
	exitUsage     = 2
	exitInterrupt = 130
)

func main() {
	// Handle OS signals for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code, err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "buildlogs: %v\n", err)
	}
	os.Exit(code)
}

// run executes the command and returns the process exit status. Environment
// variables are read only through getenv.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) (int, error) {
	opts, fs, err := parseArgs(args, stderr)
	if err != nil {
		return exitUsage, err
	}

	cfg, err := resolveConfig(opts, fs, getenv)
	if err != nil {
		return exitUsage, err
	}

	log, closeLog, err := openLogger(cfg.Log, opts.interactive(), stderr)
	if err != nil {
		return exitUsage, err
	}
	defer closeLog()

	client := cloud.New(cfg.API.Token,
		cloud.WithBaseURL(cfg.API.BaseURL),
		cloud.WithIdleTimeout(time.Duration(cfg.Stream.IdleTimeout)),
		cloud.WithChunkSize(cfg.Stream.ChunkSize),
		cloud.WithUserAgent("buildlogs/"+version),
		cloud.WithLogger(log.WithComponent("cloud").Logger),
	)
	watcher := buildlogs.NewWatcher(client,
		buildlogs.WithLogger(log.WithComponent("watcher").Logger),
	)
	defer watcher.Wait()

	log.WithDeployment(opts.deploymentID).Debug("following build logs",
		"base_url", cfg.API.BaseURL,
		"mode", opts.mode(),
	)

	var snap buildlogs.Snapshot
	if opts.interactive() {
		m := bt.New(watcher, opts.deploymentID, buildlogs.DefaultTheme(),
			bt.WithContext(ctx),
			bt.WithDeploymentService(client, time.Duration(cfg.UI.StatusInterval)),
			bt.WithWrap(cfg.UI.Wrap),
			bt.WithFollow(cfg.UI.Follow),
			bt.WithLineNumbers(cfg.UI.ShowLineNumbers),
		)
		final, err := bt.Run(ctx, m)
		if err != nil {
			return 1, fmt.Errorf("TUI: %w", err)
		}
		snap = final.Snapshot()
		if s := final.Session(); s != nil {
			snap = s.Snapshot()
		}
	} else {
		s := watcher.Subscribe(ctx, opts.deploymentID)
		snap, err = printSession(ctx, stdout, s, opts.raw)
		if err != nil {
			s.Cancel()
			return 1, err
		}
	}

	return exitStatus(ctx, snap)
}

// exitStatus maps how the session ended onto a process exit status.
func exitStatus(ctx context.Context, snap buildlogs.Snapshot) (int, error) {
	switch snap.State {
	case buildlogs.StreamStateFailed:
		return 1, fmt.Errorf("deployment %s failed", snap.DeploymentID)
	case buildlogs.StreamStateErrored:
		return 1, snap.Err
	case buildlogs.StreamStateClosed:
		if ctx.Err() != nil {
			return exitInterrupt, nil
		}
	}
	return 0, nil
}
