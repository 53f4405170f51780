// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/hashicorp/go-tarball"
)

// Globals are the flags shared by all subcommands
type Globals struct {
	CacheInMemory              bool             `help:"Cache non-seekable foreign archives in memory instead of a scratch file."`
	ContinueOnUnsupportedFiles bool             `short:"C" help:"Skip entries of foreign archives that cannot be converted."`
	DenySymlinks               bool             `short:"D" help:"Deny symlinks in foreign archives."`
	MaxExtractionSize          int64            `optional:"" default:"1073741824" help:"Maximum size of all member payloads (in bytes). (disable check: -1)"`
	MaxFiles                   int64            `optional:"" default:"100000" help:"Maximum number of members in an archive. (disable check: -1)"`
	MaxInputSize               int64            `optional:"" default:"1073741824" help:"Maximum input size that allowed is (in bytes). (disable check: -1)"`
	ScratchDir                 string           `optional:"" help:"Directory for scratch files during conversion." type:"existingdir"`
	Telemetry                  bool             `short:"T" optional:"" default:"false" help:"Print telemetry data to log after opening an archive."`
	Verbose                    bool             `short:"v" optional:"" help:"Verbose logging."`
	Version                    kong.VersionFlag `short:"V" optional:"" help:"Print release version information."`
}

// CLI are the cli parameters for the tarball binary
type CLI struct {
	Globals `embed:""`

	List    listCmd    `cmd:"" help:"List the members of an archive."`
	Cat     catCmd     `cmd:"" help:"Write the payload of a member to stdout."`
	Convert convertCmd `cmd:"" help:"Convert archives, e.g. zip, into tar archives."`
	Pack    packCmd    `cmd:"" help:"Pack files into a new archive."`
}

// runContext is passed to the Run method of every subcommand
type runContext struct {
	ctx    context.Context
	logger *slog.Logger
	stdin  io.Reader
	stdout io.Writer
	opts   []tarball.ConfigOption
}

// Run the entrypoint into go-tarball as a cli tool
func Run(version, commit, date string) {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Description("Read, write and convert tar archives"),
		kong.UsageOnError(),
		kong.Vars{
			"version": fmt.Sprintf("%s (%s), commit %s, built at %s", filepath.Base(os.Args[0]), version, commit, date),
		},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	rc := newRunContext(ctx, cli.Globals, os.Stderr)

	if err := kctx.Run(rc); err != nil {
		rc.logger.Error("command failed", "command", kctx.Command(), "err", err)
		cancel()
		os.Exit(1)
	}
}

// newRunContext processes the global flags
func newRunContext(ctx context.Context, g Globals, logOutput io.Writer) *runContext {
	// Check for verbose output
	logLevel := slog.LevelWarn
	if g.Telemetry {
		logLevel = slog.LevelInfo
	}
	if g.Verbose {
		logLevel = slog.LevelDebug
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: logLevel,
	}))

	// setup telemetry hook
	telemetryToLog := func(ctx context.Context, td *tarball.TelemetryData) {
		if g.Telemetry {
			logger.Info("archive opened", "telemetry", td)
		}
	}

	// process cli params
	opts := []tarball.ConfigOption{
		tarball.WithCacheInMemory(g.CacheInMemory),
		tarball.WithContinueOnUnsupportedFiles(g.ContinueOnUnsupportedFiles),
		tarball.WithDenySymlinks(g.DenySymlinks),
		tarball.WithLogger(logger),
		tarball.WithMaxExtractionSize(g.MaxExtractionSize),
		tarball.WithMaxFiles(g.MaxFiles),
		tarball.WithMaxInputSize(g.MaxInputSize),
		tarball.WithScratchDir(g.ScratchDir),
		tarball.WithTelemetryHook(telemetryToLog),
	}

	return &runContext{ctx: ctx, logger: logger, stdin: os.Stdin, stdout: os.Stdout, opts: opts}
}

// openArchive opens path in read mode. "-" reads from stdin.
func (rc *runContext) openArchive(path string) (*tarball.Tarball, error) {
	if path == "-" {
		return tarball.NewReader(rc.ctx, rc.stdin, "r", rc.opts...)
	}
	return tarball.Open(rc.ctx, path, "r", rc.opts...)
}
