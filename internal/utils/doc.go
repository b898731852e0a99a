// Package utils exposes reusable helpers consumed by the prbaseline commands.
//
// It houses ConfigurationLoader and LoggerFactory abstractions that integrate
// Viper, environment variables, and zap logging for the CLI. LoggerFactory also
// reports how many error entries a run logged, which becomes the process exit code.
package utils
