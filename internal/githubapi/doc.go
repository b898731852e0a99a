// Package githubapi implements gitdata.Repository on the GitHub REST API
// through google/go-github.
package githubapi
