// Package publisher drives a baseline publication from the command line.
//
// Service collects updated files, reconciles them against the target branch,
// rebuilds and grafts the baseline tree, commits it, and creates or updates the
// pull request identified by its title. CommandBuilder wires the publish Cobra
// command, DefaultRepositoryResolver selects the gh, api or local backend, and
// ActionsReporter publishes step outputs and a summary inside GitHub Actions.
package publisher
