package config

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// Command names a subcommand and selects the flags it accepts.
type Command string

const (
	CmdNormalize Command = "normalize"
	CmdTriage    Command = "triage"
	CmdScore     Command = "score"
	CmdRun       Command = "run"
)

// ListFlag implements flag.Value for repeated/comma-separated string
// flags. The first Set replaces any value loaded from the config file.
type ListFlag struct {
	dst *[]string
	set bool
}

// NewListFlag binds a list flag to dst.
func NewListFlag(dst *[]string) *ListFlag {
	return &ListFlag{dst: dst}
}

func (l *ListFlag) String() string {
	if l == nil || l.dst == nil {
		return ""
	}
	return strings.Join(*l.dst, ",")
}

func (l *ListFlag) Set(value string) error {
	if !l.set {
		*l.dst = nil
		l.set = true
	}
	for _, v := range strings.Split(value, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			*l.dst = append(*l.dst, v)
		}
	}
	return nil
}

// FlagSet builds the flag set of cmd bound to cfg. Flag defaults are
// the current cfg values.
func FlagSet(cmd Command, cfg *Config, configPath *string) *flag.FlagSet {
	fs := flag.NewFlagSet(string(cmd), flag.ContinueOnError)

	// === INPUT ===
	switch cmd {
	case CmdNormalize, CmdRun:
		fs.StringVar(&cfg.ResultsDir, "results", cfg.ResultsDir, "Results directory with raw scanner output")
	case CmdTriage:
		fs.StringVar(&cfg.ResultsDir, "results", cfg.ResultsDir, "Results directory (normalized first)")
		fs.StringVar(&cfg.FindingsFile, "findings", cfg.FindingsFile, "Normalized findings JSON from 'normalize'")
	case CmdScore:
		fs.StringVar(&cfg.TriageFile, "triage", cfg.TriageFile, "triage.json from 'triage'")
	}
	if cmd == CmdTriage || cmd == CmdRun {
		fs.StringVar(&cfg.GroundTruthDir, "ground-truth", cfg.GroundTruthDir, "Directory of <target>-ground-truth.csv files")
		fs.StringVar(&cfg.GroundTruthDir, "gt", cfg.GroundTruthDir, "Ground truth dir (alias)")
	}
	if cmd != CmdNormalize {
		fs.Var(NewListFlag(&cfg.ReviewFiles), "review", "Review decisions: YAML or <target>-final.csv (repeatable)")
	}
	if cmd == CmdScore || cmd == CmdRun {
		fs.StringVar(&cfg.SpeedFile, "speed", cfg.SpeedFile, "Scan duration CSV (tool,target,duration_seconds)")
		fs.StringVar(&cfg.BaselineFile, "baseline", cfg.BaselineFile, "Previous metrics.json to compare against")
		fs.StringVar(&cfg.TemplateFile, "template", cfg.TemplateFile, "Custom scorecard markdown template")
	}

	// === OUTPUT ===
	if cmd == CmdNormalize {
		fs.StringVar(&cfg.Output, "o", cfg.Output, "Output file (default: stdout)")
		fs.StringVar(&cfg.Format, "format", cfg.Format, "Output format: csv, json")
	} else {
		fs.StringVar(&cfg.Output, "o", cfg.Output, "Output directory")
	}
	fs.StringVar(&cfg.Output, "output", cfg.Output, "Output (alias)")

	// === PIPELINE ===
	fs.StringVar(configPath, "config", *configPath, "YAML config file")
	fs.IntVar(&cfg.Fingerprint.LineWindow, "window", cfg.Fingerprint.LineWindow, "±line tolerance for file locations")
	fs.IntVar(&cfg.ConsensusThreshold, "threshold", cfg.ConsensusThreshold, "Distinct tools needed for consensus")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Parallel adapter workers")
	fs.IntVar(&cfg.Concurrency, "c", cfg.Concurrency, "Concurrency (alias)")
	fs.Var(NewListFlag(&cfg.Targets), "targets", "Known targets (comma-separated)")
	fs.StringVar(&cfg.BenchmarkDate, "date", cfg.BenchmarkDate, "Benchmark date YYYY-MM-DD recorded in outputs")
	fs.BoolVar(&cfg.Strict, "strict", cfg.Strict, "Exit non-zero when diagnostics were recorded")

	// === TELEMETRY ===
	fs.StringVar(&cfg.Telemetry.MetricsTextfile, "metrics-textfile", cfg.Telemetry.MetricsTextfile, "Write Prometheus metrics to this textfile")
	fs.StringVar(&cfg.Telemetry.OTelEndpoint, "otel-endpoint", cfg.Telemetry.OTelEndpoint, "OTLP gRPC endpoint for stage traces")
	fs.BoolVar(&cfg.Telemetry.OTelInsecure, "otel-insecure", cfg.Telemetry.OTelInsecure, "Use an insecure OTLP connection")

	// === CONSOLE ===
	fs.BoolVar(&cfg.Log.Verbose, "verbose", cfg.Log.Verbose, "Verbose output")
	fs.BoolVar(&cfg.Log.Verbose, "v", cfg.Log.Verbose, "Verbose (alias)")
	fs.BoolVar(&cfg.Log.Silent, "silent", cfg.Log.Silent, "Silent mode - warnings only")
	fs.BoolVar(&cfg.Log.Silent, "s", cfg.Log.Silent, "Silent (alias)")
	fs.BoolVar(&cfg.Log.NoColor, "no-color", cfg.Log.NoColor, "Disable colored output")
	fs.BoolVar(&cfg.Log.NoColor, "nc", cfg.Log.NoColor, "No color (alias)")
	fs.BoolVar(&cfg.Log.JSON, "log-json", cfg.Log.JSON, "JSON log lines on stderr")

	return fs
}

// ParseArgs applies defaults, the -config file and args, in that order,
// then validates the result for cmd. It returns flag.ErrHelp unwrapped
// for -h.
func ParseArgs(cmd Command, args []string, usage io.Writer) (*Config, error) {
	// First pass only finds -config.
	var path string
	first := FlagSet(cmd, Default(), &path)
	first.SetOutput(usage)
	if err := first.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fs := FlagSet(cmd, cfg, &path)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments: %s", ErrInvalidConfig, strings.Join(fs.Args(), " "))
	}

	if err := cfg.ValidateFor(cmd); err != nil {
		return nil, err
	}
	return cfg, nil
}
