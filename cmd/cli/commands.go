package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/candyshop-benchmark/candyshop/pkg/config"
	"github.com/candyshop-benchmark/candyshop/pkg/pipeline"
	"github.com/candyshop-benchmark/candyshop/pkg/telemetry"
	"github.com/candyshop-benchmark/candyshop/pkg/ui"
)

// execute parses flags for cmd, runs it and reports the outcome.
func execute(ctx context.Context, cmd config.Command, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.ParseArgs(cmd, args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			ui.New(stderr, ui.Options{}).Error(err.Error())
			fmt.Fprintf(stderr, "\nRun '%s -h' for usage.\n", cmd)
		}
		return exitCode(err)
	}

	// JSON logs own stderr; the human console stays quiet then.
	con := ui.New(stderr, ui.Options{
		NoColor: cfg.Log.NoColor,
		Silent:  cfg.Log.Silent || cfg.Log.JSON,
	})
	logger := telemetry.NewLogger(stderr, telemetry.LogOptions{
		Verbose: cfg.Log.Verbose,
		Silent:  cfg.Log.Silent || !(cfg.Log.Verbose || cfg.Log.JSON),
		JSON:    cfg.Log.JSON,
	})

	con.Banner()
	con.Config(configLines(cmd, cfg)...)

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithStdout(stdout),
	}
	if cfg.Telemetry.MetricsTextfile != "" {
		rec, err := telemetry.NewRecorder()
		if err != nil {
			con.Error(err.Error())
			return exitCode(err)
		}
		opts = append(opts, pipeline.WithRecorder(rec))
	}
	if cfg.Telemetry.OTelEndpoint != "" {
		tracing, err := telemetry.NewTracing(telemetry.TracingOptions{
			Endpoint: cfg.Telemetry.OTelEndpoint,
			Insecure: cfg.Telemetry.OTelInsecure,
		})
		if err != nil {
			// Tracing is optional; the run goes on without it.
			logger.Warn("tracing disabled", slog.String("endpoint", cfg.Telemetry.OTelEndpoint), slog.Any("error", err))
		} else {
			tracing.Install()
			defer func() {
				if err := tracing.Shutdown(context.Background()); err != nil {
					logger.Warn("trace flush failed", slog.Any("error", err))
				}
			}()
			opts = append(opts, pipeline.WithTracer(tracing.Tracer()))
		}
	}

	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		con.Error(err.Error())
		return exitCode(err)
	}

	var sum *pipeline.Summary
	switch cmd {
	case config.CmdNormalize:
		sum, err = p.RunNormalize(ctx)
	case config.CmdTriage:
		sum, err = p.RunTriage(ctx)
	case config.CmdScore:
		sum, err = p.RunScore(ctx)
	default:
		sum, err = p.Run(ctx)
	}
	if err != nil {
		con.Error(err.Error())
		return exitCode(err)
	}

	report(con, cmd, sum)
	code := strictCode(cfg, sum)
	if code != 0 {
		con.Error(fmt.Sprintf("%d diagnostics recorded (-strict)", len(sum.Diagnostics)))
	}
	return code
}

// report prints the human summary of a finished command.
func report(con *ui.Console, cmd config.Command, sum *pipeline.Summary) {
	if cmd != config.CmdScore {
		con.Success(fmt.Sprintf("%d findings from %d files", sum.Findings, sum.Files))
	}
	if cmd != config.CmdNormalize {
		con.Triage(sum.Clusters, sum.Counts, sum.Missed)
	}
	if sum.Report != nil {
		con.Scorecard(sum.Report)
		con.Comparison(sum.Comparison)
	} else {
		con.Diagnostics(sum.Diagnostics)
	}
	con.Outputs(sum.Outputs)
}

func configLines(cmd config.Command, cfg *config.Config) [][2]string {
	lines := [][2]string{
		{"Command", string(cmd)},
		{"Results", cfg.ResultsDir},
		{"Findings", cfg.FindingsFile},
		{"Triage", cfg.TriageFile},
		{"Ground truth", cfg.GroundTruthDir},
		{"Reviews", strings.Join(cfg.ReviewFiles, ", ")},
		{"Output", cfg.Output},
	}
	if cmd != config.CmdScore {
		lines = append(lines,
			[2]string{"Line window", "±" + strconv.Itoa(cfg.Fingerprint.LineWindow)},
			[2]string{"Concurrency", strconv.Itoa(cfg.Concurrency)},
		)
	}
	if cmd != config.CmdNormalize {
		lines = append(lines, [2]string{"Consensus", strconv.Itoa(cfg.ConsensusThreshold) + " tools"})
	}
	return lines
}
