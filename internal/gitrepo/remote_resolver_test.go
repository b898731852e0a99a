package gitrepo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/prbaseline/internal/execshell"
	"github.com/temirov/prbaseline/internal/gitrepo"
)

const (
	testWorkingDirectoryConstant = "/tmp/checkout"
	testResolverHTTPSCase        = "https_origin"
	testResolverSSHCase          = "ssh_named_remote"
	testResolverInvalidCase      = "invalid_remote"
	testResolverFailureCase      = "command_failure"
)

type recordingGitExecutor struct {
	result          execshell.ExecutionResult
	err             error
	recordedDetails []execshell.CommandDetails
}

func (executor *recordingGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recordedDetails = append(executor.recordedDetails, details)
	return executor.result, executor.err
}

func TestRemoteResolverResolveRepository(testInstance *testing.T) {
	commandFailure := execshell.CommandFailedError{
		Command: execshell.ShellCommand{Name: execshell.CommandGit},
		Result:  execshell.ExecutionResult{ExitCode: 2},
	}

	testCases := []struct {
		name               string
		remoteName         string
		executor           *recordingGitExecutor
		expectedRemoteName string
		expectedIdentifier gitrepo.RepositoryIdentifier
		expectFailure      bool
	}{
		{
			name:               testResolverHTTPSCase,
			executor:           &recordingGitExecutor{result: execshell.ExecutionResult{StandardOutput: "https://github.com/owner/example.git\n"}},
			expectedRemoteName: gitrepo.DefaultRemoteNameConstant,
			expectedIdentifier: gitrepo.RepositoryIdentifier{Owner: "owner", Name: "example"},
		},
		{
			name:               testResolverSSHCase,
			remoteName:         "upstream",
			executor:           &recordingGitExecutor{result: execshell.ExecutionResult{StandardOutput: "git@github.com:team/baselines.git"}},
			expectedRemoteName: "upstream",
			expectedIdentifier: gitrepo.RepositoryIdentifier{Owner: "team", Name: "baselines"},
		},
		{
			name:               testResolverInvalidCase,
			executor:           &recordingGitExecutor{result: execshell.ExecutionResult{StandardOutput: "not a remote"}},
			expectedRemoteName: gitrepo.DefaultRemoteNameConstant,
			expectFailure:      true,
		},
		{
			name:               testResolverFailureCase,
			executor:           &recordingGitExecutor{err: commandFailure},
			expectedRemoteName: gitrepo.DefaultRemoteNameConstant,
			expectFailure:      true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			resolver, creationError := gitrepo.NewRemoteResolver(testCase.executor)
			require.NoError(testInstance, creationError)

			identifier, resolveError := resolver.ResolveRepository(context.Background(), testWorkingDirectoryConstant, testCase.remoteName)
			require.Len(testInstance, testCase.executor.recordedDetails, 1)
			require.Equal(testInstance, []string{"remote", "get-url", testCase.expectedRemoteName}, testCase.executor.recordedDetails[0].Arguments)
			require.Equal(testInstance, testWorkingDirectoryConstant, testCase.executor.recordedDetails[0].WorkingDirectory)

			if testCase.expectFailure {
				require.Error(testInstance, resolveError)
				return
			}
			require.NoError(testInstance, resolveError)
			require.Equal(testInstance, testCase.expectedIdentifier, identifier)
		})
	}
}

func TestNewRemoteResolverRequiresExecutor(testInstance *testing.T) {
	resolver, creationError := gitrepo.NewRemoteResolver(nil)
	require.ErrorIs(testInstance, creationError, gitrepo.ErrGitExecutorNotConfigured)
	require.Nil(testInstance, resolver)
}
