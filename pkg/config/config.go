// Package config holds run-level settings for the benchmark pipeline.
//
// Values come from three sources, lowest precedence first: the
// constants in pkg/defaults, an optional YAML file (-config) and the
// subcommand's flags. Only flags that were actually given override the
// file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/candyshop-benchmark/candyshop/pkg/defaults"
	"github.com/candyshop-benchmark/candyshop/pkg/fingerprint"
)

// Config holds all pipeline configuration.
type Config struct {
	// Inputs
	ResultsDir     string   `yaml:"results_dir"`
	FindingsFile   string   `yaml:"findings"`
	TriageFile     string   `yaml:"triage"`
	GroundTruthDir string   `yaml:"ground_truth_dir"`
	ReviewFiles    []string `yaml:"review"`
	SpeedFile      string   `yaml:"speed"`
	BaselineFile   string   `yaml:"baseline"`
	TemplateFile   string   `yaml:"template"`

	// Output is a directory, except for normalize where it is a file
	// (empty = stdout).
	Output string `yaml:"output"`
	Format string `yaml:"format"`

	BenchmarkDate string `yaml:"benchmark_date"`

	Fingerprint        FingerprintConfig `yaml:"fingerprint"`
	ConsensusThreshold int               `yaml:"consensus_threshold"`
	Targets            []string          `yaml:"targets"`
	Concurrency        int               `yaml:"concurrency"`

	// Strict makes diagnostics fail the run (exit code 3).
	Strict bool `yaml:"strict"`

	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// FingerprintConfig mirrors fingerprint.Config.
type FingerprintConfig struct {
	LineWindow    int      `yaml:"line_window"`
	RepoRoots     []string `yaml:"repo_roots"`
	IDPattern     string   `yaml:"id_pattern"`
	IDPlaceholder string   `yaml:"id_placeholder"`
	DefaultMethod string   `yaml:"default_method"`
}

// TelemetryConfig selects metric and trace export.
type TelemetryConfig struct {
	MetricsTextfile string `yaml:"metrics_textfile"`
	OTelEndpoint    string `yaml:"otel_endpoint"`
	OTelInsecure    bool   `yaml:"otel_insecure"`
}

// LogConfig selects console logging.
type LogConfig struct {
	Verbose bool `yaml:"verbose"`
	Silent  bool `yaml:"silent"`
	JSON    bool `yaml:"json"`
	NoColor bool `yaml:"no_color"`
}

// Output formats for the normalize command.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// DateLayout is the accepted benchmark date format.
const DateLayout = "2006-01-02"

// Default returns a config filled from pkg/defaults.
func Default() *Config {
	fp := fingerprint.DefaultConfig()
	return &Config{
		Format: FormatCSV,
		Fingerprint: FingerprintConfig{
			LineWindow:    fp.LineWindow,
			RepoRoots:     fp.RepoRoots,
			IDPattern:     fp.IDPattern,
			IDPlaceholder: fp.IDPlaceholder,
			DefaultMethod: fp.DefaultMethod,
		},
		ConsensusThreshold: defaults.ConsensusThreshold,
		Targets:            append([]string(nil), defaults.KnownTargets...),
		Concurrency:        defaults.Concurrency(),
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// Parse decodes YAML config data on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// FingerprintSettings converts the fingerprint section for the engine.
func (c *Config) FingerprintSettings() fingerprint.Config {
	return fingerprint.Config{
		LineWindow:    c.Fingerprint.LineWindow,
		RepoRoots:     append([]string(nil), c.Fingerprint.RepoRoots...),
		IDPattern:     c.Fingerprint.IDPattern,
		IDPlaceholder: c.Fingerprint.IDPlaceholder,
		DefaultMethod: c.Fingerprint.DefaultMethod,
	}
}

// Validate checks the settings every command shares.
func (c *Config) Validate() error {
	if c.ConsensusThreshold < 2 {
		return fmt.Errorf("%w: consensus threshold must be >= 2, got %d", ErrInvalidConfig, c.ConsensusThreshold)
	}
	if c.Fingerprint.LineWindow < 0 {
		return fmt.Errorf("%w: line window must be >= 0, got %d", ErrInvalidConfig, c.Fingerprint.LineWindow)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must be >= 0, got %d", ErrInvalidConfig, c.Concurrency)
	}
	if c.Fingerprint.IDPattern != "" {
		if _, err := regexp.Compile(c.Fingerprint.IDPattern); err != nil {
			return fmt.Errorf("%w: id pattern: %v", ErrInvalidConfig, err)
		}
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("%w: targets", ErrMissingRequired)
	}
	if c.BenchmarkDate != "" {
		if _, err := time.Parse(DateLayout, c.BenchmarkDate); err != nil {
			return fmt.Errorf("%w: benchmark date %q is not YYYY-MM-DD", ErrInvalidConfig, c.BenchmarkDate)
		}
	}
	if c.Format != FormatCSV && c.Format != FormatJSON {
		return fmt.Errorf("%w: format must be csv or json, got %q", ErrInvalidConfig, c.Format)
	}
	if c.Log.Verbose && c.Log.Silent {
		return fmt.Errorf("%w: -verbose and -silent are mutually exclusive", ErrInvalidConfig)
	}
	return nil
}

// ValidateFor checks Validate plus the inputs cmd requires.
func (c *Config) ValidateFor(cmd Command) error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch cmd {
	case CmdNormalize:
		return requireDir("results", c.ResultsDir)
	case CmdTriage:
		if c.ResultsDir == "" && c.FindingsFile == "" {
			return fmt.Errorf("%w: -results or -findings", ErrMissingRequired)
		}
		if c.ResultsDir != "" && c.FindingsFile != "" {
			return ErrConflictingInputs
		}
		if c.ResultsDir != "" {
			if err := requireDir("results", c.ResultsDir); err != nil {
				return err
			}
		}
		return requireSet("o", c.Output)
	case CmdScore:
		if err := requireSet("triage", c.TriageFile); err != nil {
			return err
		}
		return requireSet("o", c.Output)
	case CmdRun:
		if err := requireDir("results", c.ResultsDir); err != nil {
			return err
		}
		return requireSet("o", c.Output)
	}
	return nil
}

func requireSet(flagName, value string) error {
	if value == "" {
		return fmt.Errorf("%w: -%s", ErrMissingRequired, flagName)
	}
	return nil
}

func requireDir(flagName, dir string) error {
	if err := requireSet(flagName, dir); err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: -%s: %v", ErrInputDir, flagName, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: -%s: %s is not a directory", ErrInputDir, flagName, dir)
	}
	return nil
}
