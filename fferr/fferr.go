// Package fferr defines the shared error taxonomy used across the decode
// and representation engine (spec §6/§7). Callers should compare against
// these sentinels with errors.Is, since concrete errors are usually wrapped
// with additional context via fmt.Errorf("...: %w", ...).
package fferr

import "errors"

var (
	// ErrUnknownFormat indicates a parser could not recognize a container
	// format at all.
	ErrUnknownFormat = errors.New("fluxfox: unknown image format")

	// ErrUnsupportedFormat indicates a recognized but unimplemented format
	// or sub-feature (e.g. SPS-encoded IPF blocks, per spec §9 Open
	// Questions: "do not guess behavior - return UnsupportedFormat").
	ErrUnsupportedFormat = errors.New("fluxfox: unsupported format")

	// ErrImageCorrupt indicates structural corruption surfaced by a parser;
	// never recovered locally (spec §7 kind 1).
	ErrImageCorrupt = errors.New("fluxfox: image corrupt")

	// ErrIncompatibleImage indicates an operation is incompatible with an
	// image's current resolution or geometry.
	ErrIncompatibleImage = errors.New("fluxfox: incompatible image")

	// ErrParameter indicates an invalid argument to an operation (e.g. an
	// empty format fill pattern).
	ErrParameter = errors.New("fluxfox: parameter error")

	// ErrFormatParse indicates a parser-level syntax error in a container
	// file.
	ErrFormatParse = errors.New("fluxfox: format parse error")

	// ErrSectorIDNotFound indicates a read/write/scan operation's requested
	// sector ID was not found on the scanned track (spec §7 kind 2).
	ErrSectorIDNotFound = errors.New("fluxfox: sector id not found")

	// ErrData indicates a write failed its post-write integrity check.
	ErrData = errors.New("fluxfox: data error")

	// ErrResolve indicates a FluxStreamTrack operation was attempted before
	// DecodeRevolutions + AnalyzeRevolutions ran (spec §7 kind 4).
	ErrResolve = errors.New("fluxfox: could not resolve track to a decoded revolution")

	// ErrIO wraps an underlying I/O failure from a parser. The core engine
	// itself performs no I/O; this exists for parsers built on top of it.
	ErrIO = errors.New("fluxfox: io error")
)
