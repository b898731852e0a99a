package publisher

import (
	"context"
	"net/http"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/prbaseline/internal/baseline"
	"github.com/temirov/prbaseline/internal/dependencies"
	"github.com/temirov/prbaseline/internal/gitdata"
	"github.com/temirov/prbaseline/internal/githubapi"
	"github.com/temirov/prbaseline/internal/githubauth"
	"github.com/temirov/prbaseline/internal/githubcli"
	"github.com/temirov/prbaseline/internal/gitrepo"
	"github.com/temirov/prbaseline/internal/localrepo"
)

const (
	repositoryFieldConstant = "repository"
	tokenFieldConstant      = "token"
)

// RepositoryResolver creates the remote repository a publication writes to.
type RepositoryResolver interface {
	Resolve(executionContext context.Context, logger *zap.Logger, configuration Configuration) (gitdata.Repository, error)
}

// DefaultRepositoryResolver builds the backend selected by Configuration.Backend.
type DefaultRepositoryResolver struct {
	CommandExecutor   dependencies.CommandExecutor
	FileSystem        afero.Fs
	HTTPClient        *http.Client
	TokenLookup       githubauth.EnvironmentLookup
	WorkingDirectory  string
	HumanReadableLogs bool
}

// Resolve creates the repository backend using configured collaborators or defaults.
func (resolver *DefaultRepositoryResolver) Resolve(executionContext context.Context, logger *zap.Logger, configuration Configuration) (gitdata.Repository, error) {
	sanitized := configuration.Sanitize()
	backend, backendError := ParseBackend(sanitized.Backend)
	if backendError != nil {
		return nil, backendError
	}

	if backend == BackendLocal {
		localRepository, openError := localrepo.Open(localrepo.Options{
			RepositoryPath: sanitized.Local.RepositoryPath,
			LedgerPath:     sanitized.Local.PullRequestLedger,
			FileSystem:     dependencies.ResolveFileSystem(resolver.FileSystem),
			AuthorName:     sanitized.Local.AuthorName,
			AuthorEmail:    sanitized.Local.AuthorEmail,
		})
		if openError != nil {
			return nil, openError
		}
		return localRepository, nil
	}

	executor, executorError := dependencies.ResolveCommandExecutor(resolver.CommandExecutor, logger, resolver.HumanReadableLogs)
	if executorError != nil {
		return nil, executorError
	}

	identifier, identifierError := dependencies.ResolveRepositoryIdentifier(executionContext, sanitized.Repository, executor, resolver.WorkingDirectory)
	if identifierError != nil {
		return nil, baseline.ConfigError{Field: repositoryFieldConstant, Cause: identifierError}
	}

	if backend == BackendGitHubCLI {
		cliClient, clientError := githubcli.NewClient(executor, identifier.String())
		if clientError != nil {
			return nil, clientError
		}
		return cliClient, nil
	}
	return resolver.resolveAPIClient(sanitized, identifier)
}

func (resolver *DefaultRepositoryResolver) resolveAPIClient(configuration Configuration, identifier gitrepo.RepositoryIdentifier) (gitdata.Repository, error) {
	token, tokenError := githubauth.NewTokenResolver(resolver.TokenLookup).Resolve()
	if tokenError != nil {
		return nil, baseline.ConfigError{Field: tokenFieldConstant, Cause: tokenError}
	}
	apiClient, clientError := githubapi.NewClient(githubapi.Options{
		Repository:     identifier,
		Token:          token,
		BaseURL:        configuration.API.BaseURL,
		RequestTimeout: configuration.API.RequestTimeout,
		HTTPClient:     resolver.HTTPClient,
	})
	if clientError != nil {
		return nil, clientError
	}
	return apiClient, nil
}
