// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

// Package tarball simplifies reading and writing tar archives.
//
// A [Tarball] is opened for reading or writing with a conventional mode
// string, e.g. "r", "w" or "w:gz". In read mode, compressed archives are
// detected by their magic bytes, and foreign archives (zip, rar, 7z) are
// transparently converted into a tar archive. In write mode, typed values
// are serialized into members: strings and byte slices as raw bytes, and
// in-memory images as PNG.
//
// Configuration is done using the [Config], which is created with [NewConfig]
// and adjusted with [ConfigOption] functions. Telemetry data about opening an
// archive is passed to a [TelemetryHook].
package tarball
