// Package gitrepo parses git remote URLs and owner/name repository identifiers,
// and resolves the identifier of a local clone from its configured remote.
package gitrepo
