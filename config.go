// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"time"
)

// ConfigOption is a function pointer to implement the option pattern
type ConfigOption func(*Config)

// Config holds all settings of a [Tarball].
//
// The configuration options can be adjusted using the option pattern style.
// The defaults are designed to prevent exhaustion and path traversal while
// converting foreign archives.
type Config struct {
	// cacheInMemory decides if non-seekable foreign archives are cached in memory
	// instead of a scratch file before conversion
	cacheInMemory bool

	// continueOnUnsupportedFiles skips entries of foreign archives that cannot be
	// converted, e.g. device files
	continueOnUnsupportedFiles bool

	// denySymlinks rejects symlinks in foreign archives
	denySymlinks bool

	// scratchDirMode is the mode for directories created in the scratch directory,
	// which are not defined in the foreign archive
	scratchDirMode fs.FileMode

	// logger stream
	logger logger

	// maxExtractionSize is the maximum size of all member payloads.
	// Set value to -1 to disable the check.
	maxExtractionSize int64

	// maxFiles is the maximum number of members (including folder and symlinks).
	// Set value to -1 to disable the check.
	maxFiles int64

	// maxInputSize is the maximum size of the input
	// Set value to -1 to disable the check.
	maxInputSize int64

	// modTime is the default timestamp for written members
	modTime time.Time

	// scratchDir is the base directory for scratch files and directories.
	// Empty means os.TempDir().
	scratchDir string

	// telemetryHook is called after a tarball was opened
	telemetryHook TelemetryHook
}

// CacheInMemory returns true if non-seekable foreign archives are cached in memory.
//
// If set to false, the cache is stored in a scratch file to avoid memory exhaustion.
func (c *Config) CacheInMemory() bool {
	return c.cacheInMemory
}

// CheckMaxFiles checks if counter exceeds the configured maximum. If the maximum is exceeded,
// a [ErrMaxFilesExceeded] error is returned.
func (c *Config) CheckMaxFiles(counter int64) error {

	// check if disabled
	if c.MaxFiles() == -1 {
		return nil
	}

	// check value
	if counter > c.MaxFiles() {
		return ErrMaxFilesExceeded
	}
	return nil
}

// CheckExtractionSize checks if fileSize exceeds configured maximum. If the maximum is exceeded,
// a [ErrMaxExtractionSizeExceeded] error is returned.
func (c *Config) CheckExtractionSize(fileSize int64) error {

	// check if disabled
	if c.MaxExtractionSize() == -1 {
		return nil
	}

	// check value
	if fileSize > c.MaxExtractionSize() {
		return ErrMaxExtractionSizeExceeded
	}
	return nil
}

// ContinueOnUnsupportedFiles returns true if unsupported entries of foreign
// archives, e.g., FIFO, block or character devices, should be skipped.
//
// If symlinks are denied and a symlink is found, it is considered an unsupported
// file.
func (c *Config) ContinueOnUnsupportedFiles() bool {
	return c.continueOnUnsupportedFiles
}

// DenySymlinks returns true if symlinks in foreign archives are NOT allowed.
func (c *Config) DenySymlinks() bool {
	return c.denySymlinks
}

// Logger returns the logger.
func (c *Config) Logger() logger {
	return c.logger
}

// MaxExtractionSize returns the maximum size over all member payloads.
func (c *Config) MaxExtractionSize() int64 {
	return c.maxExtractionSize
}

// MaxFiles returns the maximum of members (including folder and symlinks) in an archive.
func (c *Config) MaxFiles() int64 {
	return c.maxFiles
}

// MaxInputSize returns the maximum size of the input.
func (c *Config) MaxInputSize() int64 {
	return c.maxInputSize
}

// ModTime returns the default timestamp for written members.
func (c *Config) ModTime() time.Time {
	return c.modTime
}

// ScratchDir returns the base directory for scratch files. An empty value
// means the default directory for temporary files.
func (c *Config) ScratchDir() string {
	return c.scratchDir
}

// ScratchDirMode returns the file mode for directories created during conversion,
// that are not defined in the foreign archive. (respecting umask)
func (c *Config) ScratchDirMode() fs.FileMode {
	return c.scratchDirMode
}

// TelemetryHook returns the telemetry hook.
func (c *Config) TelemetryHook() TelemetryHook {
	if c.telemetryHook == nil {
		return defaultTelemetryHook
	}
	return c.telemetryHook
}

const (
	defaultCacheInMemory              = false         // cache on disk
	defaultContinueOnUnsupportedFiles = false         // stop on unsupported files and return error
	defaultDenySymlinks               = false         // allow symlinks
	defaultScratchDirMode             = 0750          // default directory permissions rwxr-x---
	defaultMaxFiles                   = 100000        // 100k files
	defaultMaxExtractionSize          = 1 << (10 * 3) // 1 Gb
	defaultMaxInputSize               = 1 << (10 * 3) // 1 Gb
)

var (
	// slog to discard
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	// no operation telemetry hook
	defaultTelemetryHook = func(ctx context.Context, d *TelemetryData) {
		// noop
	}
)

// NewConfig is a generator option that takes opts as adjustments of the
// default configuration in an option pattern style. The default timestamp
// is captured when NewConfig is called.
func NewConfig(opts ...ConfigOption) *Config {

	// setup default values
	config := &Config{
		cacheInMemory:              defaultCacheInMemory,
		continueOnUnsupportedFiles: defaultContinueOnUnsupportedFiles,
		denySymlinks:               defaultDenySymlinks,
		scratchDirMode:             defaultScratchDirMode,
		logger:                     defaultLogger,
		maxFiles:                   defaultMaxFiles,
		maxExtractionSize:          defaultMaxExtractionSize,
		maxInputSize:               defaultMaxInputSize,
		modTime:                    now(),
		telemetryHook:              defaultTelemetryHook,
	}

	// Loop through each option
	for _, opt := range opts {
		opt(config)
	}

	return config
}

// WithCacheInMemory options pattern function to enable/disable caching in memory.
// This applies only to foreign archives, which are provided as a stream.
//
// If set to false, the cache is stored in a scratch file to avoid memory exhaustion.
func WithCacheInMemory(cache bool) ConfigOption {
	return func(c *Config) {
		c.cacheInMemory = cache
	}
}

// WithContinueOnUnsupportedFiles options pattern function to
// enable/disable skipping unsupported entries during conversion. If symlinks are
// denied and a symlink is found, it is considered an unsupported file.
func WithContinueOnUnsupportedFiles(ctd bool) ConfigOption {
	return func(c *Config) {
		c.continueOnUnsupportedFiles = ctd
	}
}

// WithDenySymlinks options pattern function to deny symlinks in foreign archives.
func WithDenySymlinks(deny bool) ConfigOption {
	return func(c *Config) {
		c.denySymlinks = deny
	}
}

// WithLogger options pattern function to set a custom logger.
func WithLogger(logger logger) ConfigOption {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithMaxExtractionSize options pattern function to set maximum size over all
// member payloads. (-1 to disable check)
func WithMaxExtractionSize(maxExtractionSize int64) ConfigOption {
	return func(c *Config) {
		c.maxExtractionSize = maxExtractionSize
	}
}

// WithMaxFiles options pattern function to set maximum number of members,
// directories and symlinks. (-1 to disable check)
func WithMaxFiles(maxFiles int64) ConfigOption {
	return func(c *Config) {
		c.maxFiles = maxFiles
	}
}

// WithMaxInputSize options pattern function to set MaxInputSize for the input file. (-1 to disable check)
func WithMaxInputSize(maxInputSize int64) ConfigOption {
	return func(c *Config) {
		c.maxInputSize = maxInputSize
	}
}

// WithModTime options pattern function to set the default timestamp of written
// members. A zero value keeps the timestamp captured by [NewConfig].
func WithModTime(t time.Time) ConfigOption {
	return func(c *Config) {
		if !t.IsZero() {
			c.modTime = t
		}
	}
}

// WithScratchDir options pattern function to set the base directory of
// scratch files and directories used while converting foreign archives.
func WithScratchDir(dir string) ConfigOption {
	return func(c *Config) {
		c.scratchDir = dir
	}
}

// WithScratchDirMode options pattern function to set the file mode
// for directories created during conversion, that are not defined in the archive.
func WithScratchDirMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.scratchDirMode = mode
	}
}

// WithTelemetryHook options pattern function to set a [TelemetryHook], which is called after open.
func WithTelemetryHook(hook TelemetryHook) ConfigOption {
	return func(c *Config) {
		c.telemetryHook = hook
	}
}
