package pipeline

import "errors"

// Sentinel errors for pipeline failures. Everything else a stage meets
// is a diagnostic, not an error.
var (
	// ErrInput indicates an input file or directory could not be read.
	ErrInput = errors.New("pipeline: input error")

	// ErrOutput indicates an output file could not be written.
	ErrOutput = errors.New("pipeline: output error")
)
