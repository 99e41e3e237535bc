package kpack

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Error kinds. Every error returned by a PackFile matches exactly one of
// these with errors.Is.
var (
	// ErrIO means the file could not be opened, read or written.
	ErrIO = errors.New("i/o error")
	// ErrFormat means the format tag is unknown or the layout is inconsistent
	// with the file size.
	ErrFormat = errors.New("unrecognized format")
	// ErrCorruption means a block failed to decompress or decoded to invalid data.
	ErrCorruption = errors.New("corrupt data")
	// ErrMisuse means the call violates the PackFile contract.
	ErrMisuse = errors.New("invalid use")
	// ErrBusy is returned when contents are released while a load is in flight.
	ErrBusy = fmt.Errorf("%w: load in progress", ErrMisuse)
)

// PackError describes a failed operation on a pack file.
type PackError struct {
	Op   string
	Path string
	Tile int // -1 unless the failure concerns a single grid tile
	Kind error
	Err  error
}

func (e *PackError) Error() string {
	where := e.Op
	if e.Tile >= 0 {
		where += " tile " + strconv.Itoa(e.Tile)
	}
	if e.Path != "" {
		where += " " + e.Path
	}
	return where + ": " + e.Err.Error()
}

func (e *PackError) Unwrap() error {
	return e.Err
}

func (e *PackError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// wrapError attaches the operation and location to err and classifies it.
// Errors that do not match a kind are I/O errors.
func wrapError(op, path string, tile int, err error) error {
	var pe *PackError
	if errors.As(err, &pe) {
		return err
	}
	kind := ErrIO
	for _, k := range []error{ErrMisuse, ErrFormat, ErrCorruption} {
		if errors.Is(err, k) {
			kind = k
			break
		}
	}
	return &PackError{Op: op, Path: path, Tile: tile, Kind: kind, Err: err}
}

func misuse(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrMisuse}, args...)...)
}

func formatError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrFormat}, args...)...)
}

// readErr classifies a failed read: running out of file is a format error.
func readErr(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return formatError("%s truncated", what)
	}
	return fmt.Errorf("reading %s: %w", what, err)
}

// errorKind returns the short label used for metrics. Unclassified errors
// are I/O errors, as in wrapError.
func errorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrFormat):
		return "format"
	case errors.Is(err, ErrCorruption):
		return "corruption"
	case errors.Is(err, ErrMisuse):
		return "misuse"
	default:
		return "io"
	}
}
