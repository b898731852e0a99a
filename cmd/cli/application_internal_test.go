package cli

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/temirov/prbaseline/internal/utils"
)

const (
	exitCodeNoErrorsCaseConstant        = "no errors"
	exitCodeUnloggedFailureCaseConstant = "unlogged failure"
	exitCodeLoggedErrorsCaseConstant    = "logged errors"
	exitCodeCappedCaseConstant          = "capped at maximum"
	publishSucceedsCaseConstant         = "publication succeeds"
	publishMissingBranchCaseConstant    = "missing target branch"
	publishMissingTitleCaseConstant     = "missing title"
	testPublishTitleConstant            = "Update baselines"
	testMountPathConstant               = "eng/baselines"
	testTargetBranchConstant            = "main"
)

func countingLogger(testInstance *testing.T, loggedErrors int) *utils.LogErrorCounter {
	testInstance.Helper()
	outputs, creationError := utils.NewLoggerFactoryWithOutput(io.Discard).CreateLoggerOutputs(utils.LogLevelInfo, utils.LogFormatStructured)
	require.NoError(testInstance, creationError)
	for index := 0; index < loggedErrors; index++ {
		outputs.DiagnosticLogger.Error("failure")
	}
	return outputs.ErrorCounter
}

func TestApplicationExitCode(testInstance *testing.T) {
	testCases := []struct {
		name             string
		loggedErrors     int
		executionError   error
		expectedExitCode int
	}{
		{name: exitCodeNoErrorsCaseConstant, expectedExitCode: 0},
		{name: exitCodeUnloggedFailureCaseConstant, executionError: errors.New("invalid flag"), expectedExitCode: 1},
		{name: exitCodeLoggedErrorsCaseConstant, loggedErrors: 2, executionError: errors.New("publish failed"), expectedExitCode: 2},
		{name: exitCodeCappedCaseConstant, loggedErrors: 130, expectedExitCode: maximumExitCodeConstant},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			application := &Application{errorCounter: countingLogger(subTest, testCase.loggedErrors)}
			require.Equal(subTest, testCase.expectedExitCode, application.ExitCode(testCase.executionError))
		})
	}
}

func seedDiskRepository(testInstance *testing.T, repositoryPath string) {
	testInstance.Helper()

	repository, initError := git.PlainInit(repositoryPath, false)
	require.NoError(testInstance, initError)
	require.NoError(testInstance, os.MkdirAll(filepath.Join(repositoryPath, testMountPathConstant), 0o755))
	require.NoError(testInstance, os.WriteFile(filepath.Join(repositoryPath, testMountPathConstant, "Keep.diff"), []byte("old\n"), 0o644))

	worktree, worktreeError := repository.Worktree()
	require.NoError(testInstance, worktreeError)
	_, addError := worktree.Add(testMountPathConstant + "/Keep.diff")
	require.NoError(testInstance, addError)
	commitHash, commitError := worktree.Commit("seed baselines", &git.CommitOptions{
		Author: &object.Signature{Name: "seed", Email: "seed@example.com", When: time.Now()},
	})
	require.NoError(testInstance, commitError)

	reference := plumbing.NewHashReference(plumbing.NewBranchReferenceName(testTargetBranchConstant), commitHash)
	require.NoError(testInstance, repository.Storer.SetReference(reference))
}

func TestApplicationPublishExitCodes(testInstance *testing.T) {
	testCases := []struct {
		name              string
		seedRepository    bool
		title             string
		expectError       bool
		expectedExitCode  int
		expectedLogSample string
	}{
		{
			name:             publishSucceedsCaseConstant,
			seedRepository:   true,
			title:            testPublishTitleConstant,
			expectedExitCode: 0,
		},
		{
			name:              publishMissingBranchCaseConstant,
			title:             testPublishTitleConstant,
			expectError:       true,
			expectedExitCode:  1,
			expectedLogSample: "publication failed",
		},
		{
			name:             publishMissingTitleCaseConstant,
			seedRepository:   true,
			expectError:      true,
			expectedExitCode: 1,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			subTest.Setenv("GITHUB_ACTIONS", "")
			workspace := subTest.TempDir()
			repositoryPath := filepath.Join(workspace, "repository")
			updatedPath := filepath.Join(workspace, "updated")
			ledgerPath := filepath.Join(workspace, "ledger.yaml")
			require.NoError(subTest, os.MkdirAll(updatedPath, 0o755))
			require.NoError(subTest, os.WriteFile(filepath.Join(updatedPath, "UpdatedKeep.diff"), []byte("new\n"), 0o644))

			arguments := []string{
				"publish",
				"--backend", "local",
				"--pull-request-ledger", ledgerPath,
				"--original-path", testMountPathConstant,
				"--updated-path", updatedPath,
				"--build-id", "7",
				"--target-branch", testTargetBranchConstant,
				"--title", testCase.title,
			}
			if testCase.seedRepository {
				seedDiskRepository(subTest, repositoryPath)
				arguments = append(arguments, "--local-repository", repositoryPath)
			}

			logOutput := &bytes.Buffer{}
			application := newApplication(utils.NewLoggerFactoryWithOutput(logOutput))
			application.SetArguments(arguments)

			executionError := application.Execute()
			if testCase.expectError {
				require.Error(subTest, executionError)
			} else {
				require.NoError(subTest, executionError)
			}
			require.Equal(subTest, testCase.expectedExitCode, application.ExitCode(executionError))
			if len(testCase.expectedLogSample) > 0 {
				require.Contains(subTest, logOutput.String(), testCase.expectedLogSample)
			}

			if testCase.expectError {
				return
			}
			ledgerContent, readError := os.ReadFile(ledgerPath)
			require.NoError(subTest, readError)
			require.Contains(subTest, string(ledgerContent), testPublishTitleConstant)
		})
	}
}
