// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// TelemetryData holds all telemetry data of opening a tarball.
type TelemetryData struct {
	// ArchiveType is the detected type of the input, e.g. "tar", "tar.gz" or "zip"
	ArchiveType string `json:"archive_type"`

	// Converted is true if the input was a foreign archive converted to tar
	Converted bool `json:"converted"`

	// ConvertedDirs is the number of directories extracted during conversion
	ConvertedDirs int64 `json:"converted_dirs"`

	// ConvertedFiles is the number of files extracted during conversion
	ConvertedFiles int64 `json:"converted_files"`

	// ConvertedSymlinks is the number of symlinks extracted during conversion
	ConvertedSymlinks int64 `json:"converted_symlinks"`

	// InputSize is the size of the input
	InputSize int64 `json:"input_size"`

	// Members is the number of indexed members
	Members int64 `json:"members"`

	// OpenDuration is the time it took to open and index the archive
	OpenDuration time.Duration `json:"open_duration"`

	// OpenErrors is the number of errors while opening
	OpenErrors int64 `json:"open_errors"`

	// LastOpenError is the last error while opening
	LastOpenError error `json:"last_open_error"`

	// PayloadSize is the summed size of all member payloads
	PayloadSize int64 `json:"payload_size"`

	// UnsupportedFiles is the number of skipped unsupported entries
	UnsupportedFiles int64 `json:"unsupported_files"`

	// LastUnsupportedFile is the last skipped unsupported entry
	LastUnsupportedFile string `json:"last_unsupported_file"`
}

// String returns a string representation of [TelemetryData].
func (m TelemetryData) String() string {
	b, _ := json.Marshal(m)
	return string(b)
}

// MarshalJSON implements the [encoding/json.Marshaler] interface.
func (m TelemetryData) MarshalJSON() ([]byte, error) {
	var lastError string
	if m.LastOpenError != nil {
		lastError = m.LastOpenError.Error()
	}

	type Alias TelemetryData
	return json.Marshal(&struct {
		LastOpenError string `json:"last_open_error"`
		*Alias
	}{
		LastOpenError: lastError,
		Alias:         (*Alias)(&m),
	})
}

// TelemetryHook is a function type that performs operations on [TelemetryData]
// after a tarball was opened, which can be used to submit the [TelemetryData]
// to a telemetry service, for example.
type TelemetryHook func(context.Context, *TelemetryData)

// now is the clock used for default timestamps and durations
var now = time.Now

// captureOpenDuration captures the duration since start
func captureOpenDuration(td *TelemetryData, start time.Time) {
	td.OpenDuration = now().Sub(start)
}

// captureInputSize captures the input size read through ler
func captureInputSize(td *TelemetryData, ler *limitErrorReader) {
	td.InputSize = ler.Count()
}

// handleError increases the error counter and sets the latest error.
func handleError(c *Config, td *TelemetryData, msg string, err error) error {
	td.OpenErrors++
	td.LastOpenError = fmt.Errorf("%s: %w", msg, err)
	c.Logger().Debug(msg, "error", err)
	return td.LastOpenError
}
