// Package gitdata describes the remote repository capability consumed by the
// baseline publisher: recursive tree listings, blob and tree creation, commits,
// branch references, commit comparison, and pull requests.
//
// Backends in githubcli, githubapi, and localrepo implement Repository.
package gitdata
