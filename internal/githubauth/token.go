// Package githubauth resolves GitHub tokens for the REST backend.
package githubauth

import (
	"errors"
	"os"
	"strings"
)

// Environment variable names consulted for GitHub authentication, in order of preference.
const (
	EnvGitHubCLIToken = "GH_TOKEN"
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvGitHubAPIToken = "GITHUB_API_TOKEN"

	tokenNotFoundMessageConstant = "github token not found in GH_TOKEN, GITHUB_TOKEN or GITHUB_API_TOKEN"
)

// ErrTokenNotFound indicates none of the supported environment variables holds a token.
var ErrTokenNotFound = errors.New(tokenNotFoundMessageConstant)

var tokenPreference = []string{
	EnvGitHubCLIToken,
	EnvGitHubToken,
	EnvGitHubAPIToken,
}

// EnvironmentLookup reads one environment variable.
type EnvironmentLookup func(key string) (string, bool)

// TokenResolver finds the GitHub token for the current process.
type TokenResolver struct {
	lookupEnvironment EnvironmentLookup
}

// NewTokenResolver constructs a resolver reading the process environment when lookup is nil.
func NewTokenResolver(lookup EnvironmentLookup) TokenResolver {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return TokenResolver{lookupEnvironment: lookup}
}

// Resolve returns the first non-empty token among the supported variables.
func (resolver TokenResolver) Resolve() (string, error) {
	lookup := resolver.lookupEnvironment
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, key := range tokenPreference {
		value, exists := lookup(key)
		if !exists {
			continue
		}
		if trimmedValue := strings.TrimSpace(value); len(trimmedValue) > 0 {
			return trimmedValue, nil
		}
	}
	return "", ErrTokenNotFound
}

// ResolveToken returns the first non-empty token observed in environment, then in the process environment.
func ResolveToken(environment map[string]string) (string, bool) {
	if token, resolveError := NewTokenResolver(mapLookup(environment)).Resolve(); resolveError == nil {
		return token, true
	}
	token, resolveError := NewTokenResolver(nil).Resolve()
	return token, resolveError == nil
}

func mapLookup(environment map[string]string) EnvironmentLookup {
	return func(key string) (string, bool) {
		value, exists := environment[key]
		return value, exists
	}
}
