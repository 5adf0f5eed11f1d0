package config

import (
	"errors"
	"fmt"
)

// Sentinels for rejected benchmark settings. The CLI maps every one of
// them to exit code 1; match with errors.Is.
var (
	// ErrInvalidConfig covers a bad YAML file, an out-of-range threshold,
	// line window or concurrency, a malformed benchmark date and flags
	// that cannot be combined.
	ErrInvalidConfig = errors.New("config: invalid benchmark settings")

	// ErrMissingRequired is a flag the subcommand cannot run without,
	// such as -results for normalize or -o for triage.
	ErrMissingRequired = errors.New("config: required flag not set")

	// ErrInputDir is a -results directory that does not exist or is a
	// regular file.
	ErrInputDir = fmt.Errorf("%w: results directory unusable", ErrInvalidConfig)

	// ErrConflictingInputs is triage given both -results and -findings.
	ErrConflictingInputs = fmt.Errorf("%w: -results and -findings are mutually exclusive", ErrInvalidConfig)
)
