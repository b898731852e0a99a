package dependencies

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/prbaseline/internal/execshell"
	"github.com/temirov/prbaseline/internal/gitrepo"
	"github.com/temirov/prbaseline/internal/ui"
)

// CommandExecutor runs git and gh commands.
type CommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// ResolveCommandExecutor returns the provided executor or constructs a shell-backed default.
// Console output reports each command through the human-readable event logger.
func ResolveCommandExecutor(existing CommandExecutor, logger *zap.Logger, consoleOutput bool) (CommandExecutor, error) {
	if existing != nil {
		return existing, nil
	}

	var executorOptions []execshell.ShellExecutorOption
	if consoleOutput {
		executorOptions = append(executorOptions, execshell.WithCommandEventObserver(ui.NewConsoleCommandEventLogger(logger)))
	}

	shellExecutor, creationError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), executorOptions...)
	if creationError != nil {
		return nil, creationError
	}
	return shellExecutor, nil
}

// ResolveFileSystem returns the provided filesystem or an OS-backed default.
func ResolveFileSystem(existing afero.Fs) afero.Fs {
	if existing != nil {
		return existing
	}
	return afero.NewOsFs()
}

// ResolveClock returns the provided clock or the system clock.
func ResolveClock(existing func() time.Time) func() time.Time {
	if existing != nil {
		return existing
	}
	return time.Now
}

// ResolveRepositoryIdentifier parses configured when present and otherwise reads
// the origin remote of the repository in workingDirectory.
func ResolveRepositoryIdentifier(executionContext context.Context, configured string, executor gitrepo.GitExecutor, workingDirectory string) (gitrepo.RepositoryIdentifier, error) {
	if trimmedValue := strings.TrimSpace(configured); len(trimmedValue) > 0 {
		return gitrepo.ParseRepositoryIdentifier(trimmedValue)
	}

	remoteResolver, resolverError := gitrepo.NewRemoteResolver(executor)
	if resolverError != nil {
		return gitrepo.RepositoryIdentifier{}, resolverError
	}
	return remoteResolver.ResolveRepository(executionContext, workingDirectory, gitrepo.DefaultRemoteNameConstant)
}
