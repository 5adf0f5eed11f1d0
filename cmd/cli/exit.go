package main

import (
	"context"
	"errors"
	"flag"

	"github.com/candyshop-benchmark/candyshop/pkg/config"
	"github.com/candyshop-benchmark/candyshop/pkg/defaults"
	"github.com/candyshop-benchmark/candyshop/pkg/pipeline"
)

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return defaults.ExitSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return defaults.ExitInterrupted
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, config.ErrMissingRequired):
		return defaults.ExitConfigError
	case errors.Is(err, pipeline.ErrInput), errors.Is(err, pipeline.ErrOutput):
		return defaults.ExitIOError
	default:
		return defaults.ExitInternalError
	}
}

// strictCode is the exit code of a completed run.
func strictCode(cfg *config.Config, sum *pipeline.Summary) int {
	if cfg.Strict && sum != nil && len(sum.Diagnostics) > 0 {
		return defaults.ExitDiagnostics
	}
	return defaults.ExitSuccess
}
