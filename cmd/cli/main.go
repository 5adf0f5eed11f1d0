// Command candyshop benchmarks security scanners against each other:
// it normalizes raw scanner output, clusters findings across tools,
// triages them by consensus and ground truth, and scores every tool.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/candyshop-benchmark/candyshop/pkg/config"
	"github.com/candyshop-benchmark/candyshop/pkg/defaults"
	"github.com/candyshop-benchmark/candyshop/pkg/ui"
)

func main() {
	ui.EnableConsole()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches one invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return defaults.ExitConfigError
	}

	switch args[0] {
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "%s %s\n", defaults.ToolName, defaults.Version)
		return defaults.ExitSuccess
	case "help", "-h", "-help", "--help":
		printUsage(stdout)
		return defaults.ExitSuccess
	}

	cmd := config.Command(args[0])
	switch cmd {
	case config.CmdNormalize, config.CmdTriage, config.CmdScore, config.CmdRun:
		return execute(ctx, cmd, args[1:], stdout, stderr)
	default:
		ui.New(stderr, ui.Options{}).Error(fmt.Sprintf("unknown command %q", args[0]))
		fmt.Fprintln(stderr)
		printUsage(stderr)
		return defaults.ExitConfigError
	}
}

var commandHelp = []struct {
	name, usage, desc string
}{
	{"normalize", "normalize -results DIR [-o FILE] [-format csv|json]", "Parse raw scanner output into normalized findings"},
	{"triage", "triage (-results DIR | -findings FILE) -ground-truth DIR -o DIR", "Cluster findings and classify each cluster"},
	{"score", "score -triage FILE -o DIR [-speed FILE] [-baseline FILE]", "Compute per-tool precision, recall and F1"},
	{"run", "run -results DIR -ground-truth DIR -o DIR", "All stages in one pass"},
	{"version", "version", "Print the version"},
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "%s %s - security scanner benchmark\n\n", defaults.ToolName, defaults.Version)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  %s <command> [flags]\n\n", defaults.ToolName)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commandHelp {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.desc)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	for _, c := range commandHelp[:4] {
		fmt.Fprintf(w, "  %s %s\n", defaults.ToolName, c.usage)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run '%s <command> -h' for the flags of a command.\n", defaults.ToolName)
}
