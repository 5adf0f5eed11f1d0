package defaults

// Exit codes for the CLI. Diagnostics alone never fail a run unless
// -strict is set.
const (
	ExitSuccess       = 0 // Run completed, possibly with diagnostics
	ExitConfigError   = 1 // Invalid arguments or configuration
	ExitIOError       = 2 // Input or output files could not be read or written
	ExitDiagnostics   = 3 // Run completed but -strict and diagnostics were recorded
	ExitInternalError = 4 // Unexpected internal error

	ExitInterrupted = 130 // Cancelled by SIGINT/SIGTERM, 128+SIGINT as shells report it
)
