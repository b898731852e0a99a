// Package execshell provides structured helpers for invoking external tools.
//
// ShellExecutor wraps a CommandRunner with zap logging and lifecycle events,
// OSCommandRunner runs commands through os/exec, and CommandMessageFormatter
// describes the gh git data calls the publisher issues in plain language.
package execshell
