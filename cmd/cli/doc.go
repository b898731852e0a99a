// Package cli constructs the prbaseline command-line interface, wiring the
// Cobra command hierarchy, configuration loader, and structured logging
// primitives. The process exit code is derived from the number of errors the
// run logged.
package cli
