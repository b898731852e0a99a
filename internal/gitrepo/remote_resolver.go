package gitrepo

import (
	"context"
	"errors"
	"strings"

	"github.com/temirov/prbaseline/internal/execshell"
)

const (
	gitRemoteSubcommandConstant       = "remote"
	gitGetURLSubcommandConstant       = "get-url"
	DefaultRemoteNameConstant         = "origin"
	gitExecutorMissingMessageConstant = "git executor not configured"
)

// ErrGitExecutorNotConfigured indicates the resolver was constructed without a git executor.
var ErrGitExecutorNotConfigured = errors.New(gitExecutorMissingMessageConstant)

// GitExecutor exposes the git invocation used to read remotes.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RemoteResolver derives the GitHub repository identifier from a local clone's remote.
type RemoteResolver struct {
	executor GitExecutor
}

// NewRemoteResolver constructs a RemoteResolver.
func NewRemoteResolver(executor GitExecutor) (*RemoteResolver, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &RemoteResolver{executor: executor}, nil
}

// ResolveRepository reads the URL of remoteName in workingDirectory and parses it.
// An empty remoteName selects origin.
func (resolver *RemoteResolver) ResolveRepository(executionContext context.Context, workingDirectory string, remoteName string) (RepositoryIdentifier, error) {
	selectedRemote := strings.TrimSpace(remoteName)
	if len(selectedRemote) == 0 {
		selectedRemote = DefaultRemoteNameConstant
	}

	executionResult, executionError := resolver.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRemoteSubcommandConstant, gitGetURLSubcommandConstant, selectedRemote},
		WorkingDirectory: workingDirectory,
	})
	if executionError != nil {
		return RepositoryIdentifier{}, executionError
	}

	remoteURL, parseError := ParseRemoteURL(strings.TrimSpace(executionResult.StandardOutput))
	if parseError != nil {
		return RepositoryIdentifier{}, parseError
	}
	return RepositoryIdentifier{Owner: remoteURL.Owner, Name: remoteURL.Repository}, nil
}
